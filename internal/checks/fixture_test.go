package checks

import (
	"bytes"
	"testing"

	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"git.twitter.biz/focus/rce/receivegate/internal/refs"
	"git.twitter.biz/focus/rce/receivegate/internal/testutils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type (
	Fixture struct {
		*testutils.Fixture
		LogOutput bytes.Buffer
		Log       *log.Entry
	}

	// scripted is a check whose behavior is decided by the test
	scripted struct {
		name      string
		outcome   *Outcome
		err       error
		panicEval interface{}
		reactErr  error
		panicRx   interface{}

		evaluated int
		reacted   []*Outcome
		trail     *[]string
	}

	nullBackend struct {
		diffs   int
		diffErr error
	}

	// differ reads the update's diff and hands back whatever it got
	differ struct{ reacted []*Outcome }
)

func NewFixture(t *testing.T) *Fixture {
	f := &Fixture{Fixture: testutils.NewFixture(t)}
	logger := log.New()
	logger.SetOutput(&f.LogOutput)
	logger.SetLevel(log.DebugLevel)
	f.Log = log.NewEntry(logger)
	return f
}

func (f *Fixture) Context() *Context {
	u := refs.RefUpdate{
		OldRev:  "1111111111111111111111111111111111111111",
		NewRev:  "2222222222222222222222222222222222222222",
		RefName: "refs/heads/main",
	}
	return NewContext(u, &nullBackend{}, f.Log)
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Evaluate(ctx *Context) (*Outcome, error) {
	s.evaluated++
	if s.trail != nil {
		*s.trail = append(*s.trail, s.name)
	}
	if s.panicEval != nil {
		panic(s.panicEval)
	}
	return s.outcome, s.err
}

func (s *scripted) React(ctx *Context, o *Outcome) error {
	s.reacted = append(s.reacted, o)
	if s.panicRx != nil {
		panic(s.panicRx)
	}
	return s.reactErr
}

func (b *nullBackend) CommitsNotIn(rev, exclude string, limit int) ([]string, error) {
	return nil, nil
}
func (b *nullBackend) NewCommits(rev string) ([]string, error)            { return nil, nil }
func (b *nullBackend) FirstParent(rev string) (string, bool, error)       { return "", false, nil }
func (b *nullBackend) Diff(from, to string) ([]git.DiffEntry, error) {
	b.diffs++
	if b.diffErr != nil {
		return nil, b.diffErr
	}
	return []git.DiffEntry{{Path: "a", Kind: git.Added}}, nil
}
func (b *nullBackend) EmptyTree() string                                 { return git.EmptyTreeID }
func (b *nullBackend) Blob(id string) ([]byte, error)                    { return nil, nil }
func (b *nullBackend) BlobSize(id string) (int64, error)                 { return 0, nil }
func (b *nullBackend) FileAt(rev, path string) ([]byte, bool, error)     { return nil, false, nil }

func (d *differ) Name() string { return "differ" }

func (d *differ) Evaluate(ctx *Context) (*Outcome, error) {
	if _, err := ctx.Diff(); err != nil {
		return nil, errors.Wrap(err, "reading the diff")
	}
	return Pass(nil), nil
}

func (d *differ) React(ctx *Context, o *Outcome) error {
	d.reacted = append(d.reacted, o)
	return nil
}
