package common

import (
	"math"
	"strings"
)

func VisitEnv(pairs []string, f func(k, v string) error) (err error) {
	for _, kv := range pairs {
		i := strings.Index(kv, "=")
		if i < 0 {
			continue
		}
		k := kv[:i]
		v := kv[i+1:]
		if err = f(k, v); err != nil {
			return err
		}
	}
	return nil
}

func NewEnvVisitor(pairs []string) KeyValueVisitor {
	return func(cb func(k, v string) error) error {
		return VisitEnv(pairs, cb)
	}
}

func NewMapVisitor(m map[string]string) KeyValueVisitor {
	return func(cb func(k, v string) error) (err error) {
		for k, v := range m {
			if err = cb(k, v); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewPairsVisitor returns a KeyValueVisitor that will iterate over pairs of
// strings in xs. evens are keys odds are values. This visitor preserves the
// order in xs, whereas the MapVisitor does not.
// Panics if len(xs) is not an even number
//
func NewPairsVisitor(xs ...string) KeyValueVisitor {
	if int(math.Mod(float64(len(xs)), 2.0)) != 0 {
		panic("NewPairsVisitor was given an odd number of arguments")
	}

	return func(cb func(k, v string) error) (err error) {
		for i := 0; i < len(xs); i += 2 {
			if err = cb(xs[i], xs[i+1]); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewWrapper returns a visitor that passes each pair of visitor through f
// before handing it on, skipping the pairs f rejects.
func NewWrapper(visitor KeyValueVisitor, f KeyValueRewriter) KeyValueVisitor {
	return func(cb func(k, v string) error) error {
		return visitor(func(k, v string) error {
			if kk, vv, ok := f(k, v); ok {
				return cb(kk, vv)
			}
			return nil
		})
	}
}

// NewPrefixVisitor returns a visitor over the pairs of visitor whose key
// starts with prefix, with the prefix removed and the rest of the key
// lower-cased.
func NewPrefixVisitor(visitor KeyValueVisitor, prefix string) KeyValueVisitor {
	return NewWrapper(visitor, func(k, v string) (string, string, bool) {
		if !strings.HasPrefix(strings.ToLower(k), strings.ToLower(prefix)) {
			return "", "", false
		}
		return strings.ToLower(k[len(prefix):]), v, true
	})
}
