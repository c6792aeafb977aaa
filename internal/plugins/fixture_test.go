package plugins

import (
	"bytes"
	"strings"
	"testing"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
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

	// memBackend serves a fixed diff and blobs out of maps. Every update
	// it sees is a plain fast-forward.
	memBackend struct {
		entries []git.DiffEntry
		blobs   map[string][]byte
		files   map[string][]byte
		reads   []string
	}
)

func NewFixture(t *testing.T) *Fixture {
	f := &Fixture{Fixture: testutils.NewFixture(t)}
	logger := log.New()
	logger.SetOutput(&f.LogOutput)
	logger.SetLevel(log.DebugLevel)
	f.Log = log.NewEntry(logger)
	return f
}

func oid(c byte) string { return strings.Repeat(string(c), 40) }

func fastForward(ref string) refs.RefUpdate {
	return refs.RefUpdate{OldRev: oid('1'), NewRev: oid('2'), RefName: ref}
}

func newMemBackend() *memBackend {
	return &memBackend{blobs: map[string][]byte{}, files: map[string][]byte{}}
}

// add records a changed file with the given content as its post-image.
func (b *memBackend) add(path, content string) *memBackend {
	id := "blob:" + path
	b.blobs[id] = []byte(content)
	b.entries = append(b.entries, git.DiffEntry{
		Path: path, Kind: git.Modified, OldID: oid('a'), NewID: id, OldMode: "100644", NewMode: "100644",
	})
	return b
}

func (b *memBackend) entry(e git.DiffEntry) *memBackend {
	b.entries = append(b.entries, e)
	return b
}

func (b *memBackend) CommitsNotIn(rev, exclude string, limit int) ([]string, error) {
	return nil, nil
}
func (b *memBackend) NewCommits(rev string) ([]string, error)            { return nil, nil }
func (b *memBackend) FirstParent(rev string) (string, bool, error)        { return "", false, nil }
func (b *memBackend) Diff(from, to string) ([]git.DiffEntry, error)       { return b.entries, nil }
func (b *memBackend) EmptyTree() string                                   { return git.EmptyTreeID }

func (b *memBackend) Blob(id string) ([]byte, error) {
	b.reads = append(b.reads, id)
	data, ok := b.blobs[id]
	if !ok {
		return nil, errors.Errorf("no blob %s", id)
	}
	return data, nil
}

func (b *memBackend) BlobSize(id string) (int64, error) {
	data, ok := b.blobs[id]
	if !ok {
		return 0, errors.Errorf("no blob %s", id)
	}
	return int64(len(data)), nil
}

func (b *memBackend) FileAt(rev, path string) ([]byte, bool, error) {
	data, ok := b.files[path]
	return data, ok, nil
}

var _ checks.Backend = (*memBackend)(nil)

func (f *Fixture) Context(u refs.RefUpdate, b checks.Backend) *checks.Context {
	return checks.NewContext(u, b, f.Log)
}

func (f *Fixture) Run(c checks.Check, u refs.RefUpdate, b checks.Backend) *checks.Outcome {
	return checks.Execute(c, f.Context(u, b))
}

// Push commits files on top of main in the test repo without moving main,
// and returns the update a push of that commit to main would be.
func (f *Fixture) Push(files map[string]string) refs.RefUpdate {
	base := f.TestRepo.Head()
	id := f.TestRepo.Dangling(base, "change", files)
	return refs.RefUpdate{OldRev: base, NewRev: id, RefName: "refs/heads/main"}
}

func (f *Fixture) Registry(cfg *domain.Config) *checks.Registry {
	r, err := NewRegistry(Options{Config: cfg, RemoteUser: "alice"})
	f.NoError(err)
	return r
}

func failedPaths(o *checks.Outcome) []string {
	fe, _ := o.Detail.(checks.FileErrors)
	return fe.Paths()
}
