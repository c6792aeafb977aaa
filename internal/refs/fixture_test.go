package refs

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"git.twitter.biz/focus/rce/receivegate/internal/testutils"
)

type (
	Fixture struct {
		*testutils.Fixture
	}

	// fakeBackend answers from tables and records every call it gets.
	fakeBackend struct {
		notIn   map[string][]string
		fresh   map[string][]string
		parents map[string]string
		diffs   map[string][]git.DiffEntry
		err     error
		calls   []string
	}
)

func NewFixture(t *testing.T) *Fixture {
	return &Fixture{testutils.NewFixture(t)}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		notIn:   map[string][]string{},
		fresh:   map[string][]string{},
		parents: map[string]string{},
		diffs:   map[string][]git.DiffEntry{},
	}
}

func (b *fakeBackend) record(f string, args ...string) {
	b.calls = append(b.calls, fmt.Sprintf("%s(%s)", f, strings.Join(args, ",")))
}

func (b *fakeBackend) CommitsNotIn(rev, exclude string, limit int) ([]string, error) {
	b.record("CommitsNotIn", rev, exclude, strconv.Itoa(limit))
	lost := b.notIn[rev+"^"+exclude]
	if limit > 0 && len(lost) > limit {
		lost = lost[:limit]
	}
	return lost, b.err
}

func (b *fakeBackend) NewCommits(rev string) ([]string, error) {
	b.record("NewCommits", rev)
	return b.fresh[rev], b.err
}

func (b *fakeBackend) FirstParent(rev string) (string, bool, error) {
	b.record("FirstParent", rev)
	p, ok := b.parents[rev]
	return p, ok, b.err
}

func (b *fakeBackend) Diff(from, to string) ([]git.DiffEntry, error) {
	b.record("Diff", from, to)
	return b.diffs[from+".."+to], b.err
}

func (b *fakeBackend) EmptyTree() string { return git.EmptyTreeID }

var _ Backend = (*fakeBackend)(nil)

func oid(c byte) string { return strings.Repeat(string(c), 40) }
