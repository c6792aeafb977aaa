package checks

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type (
	// Registry holds the checks known to the binary in registration order.
	// It is filled once at startup and only read afterwards.
	Registry struct {
		order  []string
		checks map[string]Check
	}

	UnknownCheckError struct {
		Name  string
		Known []string
	}
)

var _ error = (*UnknownCheckError)(nil)

func (e *UnknownCheckError) Error() string {
	return fmt.Sprintf("no check named %#v, known checks are: %s", e.Name, strings.Join(e.Known, ", "))
}

func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

func (r *Registry) Register(c Check) error {
	name := c.Name()
	if name == "" {
		return errors.Errorf("refusing to register a check with no name: %#v", c)
	}
	if _, ok := r.checks[name]; ok {
		return errors.Errorf("a check named %#v is already registered", name)
	}
	r.order = append(r.order, name)
	r.checks[name] = c
	return nil
}

// MustRegister is Register for use while wiring up the binary, where a
// clash is a programming error.
func (r *Registry) MustRegister(cs ...Check) *Registry {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *Registry) Get(name string) (c Check, ok bool) {
	c, ok = r.checks[name]
	return c, ok
}

func (r *Registry) All() []Check {
	list := make([]Check, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.checks[name])
	}
	return list
}

// Select returns the named checks in registration order, whatever order
// the names come in. No names selects everything. Naming a check that
// isn't registered is an error rather than something to skip quietly.
func (r *Registry) Select(names ...string) ([]Check, error) {
	if len(names) == 0 {
		return r.All(), nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n == "" {
			continue
		}
		if _, ok := r.checks[n]; !ok {
			return nil, &UnknownCheckError{Name: n, Known: r.Names()}
		}
		want[n] = true
	}

	list := make([]Check, 0, len(want))
	for _, name := range r.order {
		if want[name] {
			list = append(list, r.checks[name])
		}
	}
	return list, nil
}
