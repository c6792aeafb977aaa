package common

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

/* this is the dumbest API decision i've seen in a long long time  */
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// LogStack writes the innermost stack trace recorded in err's chain at
// debug level. Pushers only see it when the hook runs with --debug.
func LogStack(err error) {
	var deepest stackTracer
	for e := err; e != nil; {
		if st, ok := e.(stackTracer); ok {
			deepest = st
		}
		c, ok := e.(interface{ Cause() error })
		if !ok {
			break
		}
		e = c.Cause()
	}

	if deepest == nil {
		return
	}
	for _, f := range deepest.StackTrace() {
		log.Debugf("%+s:%d", f, f)
	}
}

func CheckErr(err error) {
	if err == nil {
		return
	}

	LogStack(err)
	log.Fatal(err)
}
