// Package checks defines what a push check is, how one is run, and how a
// set of them is selected and chained over a single ref update.
package checks

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type OutcomeStatus int

const (
	Ok OutcomeStatus = iota
	Failed
)

func (s OutcomeStatus) String() string {
	if s == Ok {
		return "ok"
	}
	return "failed"
}

type (
	// Outcome is the verdict of one check on one ref update. Detail is
	// whatever the check wants to hand to its own React; nobody else
	// looks at it.
	Outcome struct {
		Status OutcomeStatus
		Detail interface{}
	}

	// Check is a single validation run against each ref update of a push.
	//
	// Evaluate inspects the update and decides. It may return an error, in
	// which case the update is treated as failing this check. React is
	// always called once afterwards with the outcome that counted and is
	// where a check tells the pusher what it found.
	Check interface {
		Name() string
		Evaluate(ctx *Context) (*Outcome, error)
		React(ctx *Context, outcome *Outcome) error
	}

	// CheckInternalError is logged when a check's Evaluate errors or panics.
	CheckInternalError struct {
		Check string
		Err   error
		Panic interface{}
	}

	// CheckReportingError is logged when a check's React errors or panics.
	CheckReportingError struct {
		Check string
		Err   error
		Panic interface{}
	}
)

func Pass(detail interface{}) *Outcome { return &Outcome{Status: Ok, Detail: detail} }
func Fail(detail interface{}) *Outcome { return &Outcome{Status: Failed, Detail: detail} }

func (o *Outcome) OK() bool { return o != nil && o.Status == Ok }

var _ error = (*CheckInternalError)(nil)
var _ error = (*CheckReportingError)(nil)

func describe(err error, p interface{}) string {
	if p != nil {
		return fmt.Sprintf("panic: %v", p)
	}
	return err.Error()
}

func (e *CheckInternalError) Error() string {
	return fmt.Sprintf("check %#v failed to evaluate: %s", e.Check, describe(e.Err, e.Panic))
}

func (e *CheckReportingError) Error() string {
	return fmt.Sprintf("check %#v failed to report: %s", e.Check, describe(e.Err, e.Panic))
}

// Execute runs one check against ctx and returns the outcome that counts.
//
// Whatever Evaluate does, a caller gets an outcome back: an error, a panic
// or a nil outcome all become Failed with no detail. React then runs
// exactly once with that outcome; its errors and panics are logged and
// dropped.
func Execute(c Check, ctx *Context) (outcome *Outcome) {
	cctx := ctx.ForCheck(c.Name())

	defer func() { react(c, cctx, outcome) }()

	outcome = evaluate(c, cctx)

	if l := cctx.Logger(); l.Logger.IsLevelEnabled(log.TraceLevel) {
		l.Tracef("outcome: %s", spew.Sdump(outcome))
	}

	return outcome
}

func evaluate(c Check, ctx *Context) (outcome *Outcome) {
	defer func() {
		if p := recover(); p != nil {
			logInternal(ctx, &CheckInternalError{Check: c.Name(), Panic: p})
			ctx.Logger().Debugf("%s", debug.Stack())
			outcome = Fail(nil)
		}
	}()

	outcome, err := c.Evaluate(ctx)
	if err != nil {
		var be *BackendError
		if errors.As(err, &be) {
			ctx.Logger().WithError(be).Error("repository query failed")
			return Fail(nil)
		}
		logInternal(ctx, &CheckInternalError{Check: c.Name(), Err: err})
		return Fail(nil)
	}
	if outcome == nil {
		logInternal(ctx, &CheckInternalError{Check: c.Name(), Err: errors.New("no outcome returned")})
		return Fail(nil)
	}
	return outcome
}

func logInternal(ctx *Context, err *CheckInternalError) {
	ctx.Logger().WithError(err).Error("check raised an error, treating it as failed")
}

func react(c Check, ctx *Context, outcome *Outcome) {
	defer func() {
		if p := recover(); p != nil {
			ctx.Logger().WithError(&CheckReportingError{Check: c.Name(), Panic: p}).Warn("ignoring failure to report")
		}
	}()

	if err := c.React(ctx, outcome); err != nil {
		ctx.Logger().WithError(&CheckReportingError{Check: c.Name(), Err: err}).Warn("ignoring failure to report")
	}
}

// RunChain executes the checks in order against ctx, stopping at the first
// one whose outcome is not Ok. It returns that check, or nil when every
// check passed. When the check failed because the update couldn't be
// classified or diffed, ctx.Err() says so.
func RunChain(list []Check, ctx *Context) (failed Check) {
	for _, c := range list {
		if !Execute(c, ctx).OK() {
			return c
		}
	}
	return nil
}

type (
	FileError struct {
		Path string
		Err  error
	}

	// FileErrors is the usual Detail of a content check: the offending
	// files, in diff order.
	FileErrors []FileError
)

func (fe FileErrors) Paths() (paths []string) {
	for _, e := range fe {
		paths = append(paths, e.Path)
	}
	return paths
}

func (fe FileErrors) Error() string {
	msgs := make([]string, 0, len(fe))
	for _, e := range fe {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Path, e.Err))
	}
	return strings.Join(msgs, "; ")
}
