package common

import "io"

type (
	KeyValueVisitorCb func(k, v string) error

	// A function that takes a KeyValueVisitorCb function and
	// calls it with each k,v pair, returning error if `f` returns
	// an error and nil if it doesn't.
	KeyValueVisitor func(f func(k, v string) error) error

	// KeyValueRewriter maps a pair onto a new pair. When ok is false the
	// pair is dropped.
	KeyValueRewriter func(k, v string) (kk, vv string, ok bool)

	LogConfig interface {
		IsDebug() bool
		IsTrace() bool
		IsQuiet() bool
		Output() io.Writer
	}
)
