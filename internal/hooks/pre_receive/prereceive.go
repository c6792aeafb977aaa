package pre_receive

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/refs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type (
	PreReceiveConfig struct {
		// Input carries one "<old> <new> <ref>" line per ref update
		Input io.Reader
		// Checks run against every update, in order
		Checks []checks.Check
		// Open is called at most once, and not at all when there are no
		// checks to run.
		Open func() (checks.Backend, error)
		Log  *log.Entry
	}

	// RejectedError is returned when a check fails an update. The check has
	// already told the pusher why.
	RejectedError struct {
		Check  string
		Update refs.RefUpdate
	}

	RepositoryOpenError struct {
		Err error
	}
)

var (
	_ error = (*RejectedError)(nil)
	_ error = (*RepositoryOpenError)(nil)
)

func (e *RejectedError) Error() string {
	return fmt.Sprintf("push of %s rejected by the %s check", e.Update.RefName, e.Check)
}

func (e *RepositoryOpenError) Error() string {
	return fmt.Sprintf("could not open the repository: %s", e.Err)
}

func (e *RepositoryOpenError) Cause() error  { return e.Err }
func (e *RepositoryOpenError) Unwrap() error { return e.Err }

func (c *PreReceiveConfig) logger() *log.Entry {
	if c.Log == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return c.Log
}

// Timed logs msg, runs fn and logs how long it took.
func Timed(l *log.Entry, msg string, fn func() error) error {
	l.Debugf("%s...", msg)
	start := time.Now()
	err := fn()
	l.Debugf("%s took %.3fs", msg, time.Since(start).Seconds())
	return err
}

// Judge runs chain over a single update and returns a RejectedError naming
// the first check that failed it. A failure to classify or diff the update
// is returned as the *checks.BackendError it is.
func Judge(chain []checks.Check, u refs.RefUpdate, b checks.Backend, l *log.Entry) error {
	ctx := checks.NewContext(u, b, l.WithField("ref", u.RefName))
	failed := checks.RunChain(chain, ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed != nil {
		return &RejectedError{Check: failed.Name(), Update: u}
	}
	return nil
}

// Run checks every ref update read from the input and stops at the first
// one that is rejected or can't be read.
func Run(config *PreReceiveConfig) (err error) {
	l := config.logger()

	if len(config.Checks) == 0 {
		l.Info("No checks enabled, accepting the push")
		return nil
	}

	var backend checks.Backend
	if err = Timed(l, "Obtaining git repository", func() (oerr error) {
		backend, oerr = config.Open()
		return oerr
	}); err != nil {
		return &RepositoryOpenError{err}
	}

	return Timed(l, "Processing checks", func() error {
		s := bufio.NewScanner(config.Input)
		for s.Scan() {
			u, err := refs.Parse(s.Text())
			if err != nil {
				return err
			}

			if err = Judge(config.Checks, u, backend, l); err != nil {
				return err
			}
		}
		return errors.Wrap(s.Err(), "failed to read hook input")
	})
}
