package checks

import (
	"fmt"

	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"git.twitter.biz/focus/rce/receivegate/internal/refs"
	log "github.com/sirupsen/logrus"
)

// Backend is the read-only repository access a check gets.
type Backend interface {
	refs.Backend
	Blob(id string) ([]byte, error)
	BlobSize(id string) (int64, error)
	// FileAt reads path from the tree of rev; ok is false when there is no
	// regular file there.
	FileAt(rev, path string) (data []byte, ok bool, err error)
}

var _ Backend = (*git.Repo)(nil)

type (
	// Context is what a check sees of the ref update it is judging. One
	// Context is built per ref update and shared by every check in the
	// chain.
	Context struct {
		Update  refs.RefUpdate
		Backend Backend
		// Log is optional, the standard logger is used when it is nil.
		Log *log.Entry

		diff *diffMemo
	}

	diffMemo struct {
		entries []git.DiffEntry
		err     error
		done    bool
		// fatal is the first BackendError any check of the chain ran into
		fatal *BackendError
	}

	// BackendError is a failure to classify or diff the update. It isn't
	// the check's fault, and the push can't be judged without it.
	BackendError struct {
		Ref string
		Op  string
		Err error
	}
)

var _ error = (*BackendError)(nil)

func (e *BackendError) Error() string {
	return fmt.Sprintf("could not %s %s: %s", e.Op, e.Ref, e.Err)
}

func (e *BackendError) Cause() error  { return e.Err }
func (e *BackendError) Unwrap() error { return e.Err }

func NewContext(u refs.RefUpdate, b Backend, l *log.Entry) *Context {
	return &Context{Update: u, Backend: b, Log: l, diff: &diffMemo{}}
}

func (c *Context) Logger() *log.Entry {
	if c.Log == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return c.Log
}

// ForCheck returns a copy of the context whose logger names the check.
// The copy shares the diff computed for the update.
func (c *Context) ForCheck(name string) *Context {
	cp := *c
	cp.Log = c.Logger().WithField("check", name)
	cp.diff = c.memo()
	return &cp
}

func (c *Context) memo() *diffMemo {
	if c.diff == nil {
		c.diff = &diffMemo{}
	}
	return c.diff
}

func (c *Context) backendFailed(op string, err error) *BackendError {
	be := &BackendError{Ref: c.Update.RefName, Op: op, Err: err}
	if m := c.memo(); m.fatal == nil {
		m.fatal = be
	}
	return be
}

// Err returns the first BackendError met by any check sharing this
// context, or nil.
func (c *Context) Err() error {
	if m := c.memo(); m.fatal != nil {
		return m.fatal
	}
	return nil
}

// Status classifies the update. It asks the backend every time.
func (c *Context) Status() (refs.Status, error) {
	s, err := refs.Classify(c.Update, c.Backend)
	if err != nil {
		return s, c.backendFailed("classify", err)
	}
	return s, nil
}

// Diff returns the file changes introduced by the update, computing them
// at most once per Context.
func (c *Context) Diff() ([]git.DiffEntry, error) {
	m := c.memo()
	if !m.done {
		m.entries, m.err = refs.Diff(c.Update, c.Backend)
		if m.err != nil {
			m.err = c.backendFailed("diff", m.err)
		}
		m.done = true
	}
	return m.entries, m.err
}
