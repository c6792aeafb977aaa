// Package unwinder lets a command body bail out on the first error with
// u.Check(err) instead of an if after every call.
package unwinder

import "github.com/pkg/errors"

type (
	U struct{}

	// unwound carries an error up the stack to Run
	unwound struct {
		err error
	}
)

// Check unwinds to Run when err is not nil.
func (u *U) Check(err error) {
	if err != nil {
		panic(unwound{err})
	}
}

// Checkf is Check with the error wrapped in a message.
func (u *U) Checkf(err error, format string, args ...interface{}) {
	if err != nil {
		panic(unwound{errors.Wrapf(err, format, args...)})
	}
}

// Errorf forces an unwind of the stack with an error created
// with format string 'str' and args passed to github.com/pkg/errors.Errorf
func (u *U) Errorf(str string, args ...interface{}) {
	panic(unwound{errors.Errorf(str, args...)})
}

// Run calls f and returns the error it unwound with, if any. Other panics
// are not touched.
func Run(f func(u *U)) (err error) {
	defer func() {
		if p := recover(); p != nil {
			uw, ok := p.(unwound)
			if !ok {
				panic(p)
			}
			err = uw.err
		}
	}()

	f(&U{})
	return nil
}
