package update

import (
	"testing"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"git.twitter.biz/focus/rce/receivegate/internal/hooks/pre_receive"
	"git.twitter.biz/focus/rce/receivegate/internal/plugins"
	"git.twitter.biz/focus/rce/receivegate/internal/refs"
	"git.twitter.biz/focus/rce/receivegate/internal/testutils"
)

type (
	Fixture struct {
		*testutils.Fixture
	}
)

func NewFixture(t *testing.T) *Fixture {
	return &Fixture{testutils.NewFixture(t)}
}

const nonZeroSHA1 = "0123456789012345678901234567890123456789"

// policyChain is the tags and owner checks with both policies on, as seen
// by remoteUser.
func (f *Fixture) policyChain(remoteUser string) []checks.Check {
	cfg := domain.DefaultConfig()
	cfg.RefPolicy = domain.RefPolicy{CheckOwnerMatches: true, TagCreateOrUpdateForbidden: true}

	r, err := plugins.NewRegistry(plugins.Options{Config: cfg, RemoteUser: remoteUser})
	f.NoError(err)

	chain, err := r.Select("tags", "owner")
	f.NoError(err)
	return chain
}

func (f *Fixture) run(remoteUser, ref, oldRev, newRev string) error {
	return Run(&UpdateHookConfig{
		UpdateHookArgs: UpdateHookArgs{RefName: ref, OldOid: oldRev, NewOid: newRev},
		Checks:         f.policyChain(remoteUser),
		Open:           func() (checks.Backend, error) { return nil, nil },
	})
}

func rejectedBy(err error) string {
	if re, ok := err.(*pre_receive.RejectedError); ok {
		return re.Check
	}
	return ""
}

func TestOwnerMatches(t *testing.T) {
	f := NewFixture(t)
	defer f.Close()

	f.NoError(f.run("alice", "refs/heads/alice/feature", git.ZeroID, nonZeroSHA1))

	err := f.run("bob", "refs/heads/alice/feature", git.ZeroID, nonZeroSHA1)
	f.Equal("owner", rejectedBy(err))
	f.Equal("refs/heads/alice/feature", err.(*pre_receive.RejectedError).Update.RefName)
}

func TestTagsForbidden(t *testing.T) {
	f := NewFixture(t)
	defer f.Close()

	// not a tag
	f.NoError(f.run("alice", "refs/heads/alice/feature", git.ZeroID, nonZeroSHA1))

	// creation
	f.Equal("tags", rejectedBy(f.run("alice", "refs/tags/alice/feature", git.ZeroID, nonZeroSHA1)))

	// update
	f.Equal("tags", rejectedBy(f.run("alice", "refs/tags/alice/feature", nonZeroSHA1[0:39]+"8", nonZeroSHA1)))

	// delete
	f.NoError(f.run("alice", "refs/tags/alice/feature", nonZeroSHA1, git.ZeroID))
}

func TestNewUpdateHookArgs(t *testing.T) {
	f := NewFixture(t)
	defer f.Close()

	a := NewUpdateHookArgs([]string{"refs/heads/abc/xyz", git.ZeroID, nonZeroSHA1})
	f.Equal(&UpdateHookArgs{RefName: "refs/heads/abc/xyz", OldOid: git.ZeroID, NewOid: nonZeroSHA1}, a)

	u, err := a.RefUpdate()
	f.NoError(err)
	f.True(u.IsCreate())
	f.Equal("abc/xyz", u.ShortName())

	_, err = NewUpdateHookArgs([]string{"refs/heads/x"}).RefUpdate()
	f.IsType(&refs.InputFormatError{}, err)
}

func TestRunAgainstRepo(t *testing.T) {
	f := NewFixture(t)
	defer f.Close()
	f.SetupGitTestRepos()

	r, err := plugins.NewRegistry(plugins.Options{})
	f.NoError(err)
	chain, err := r.Select("json")
	f.NoError(err)

	base := f.TestRepo.Head()
	open := func() (checks.Backend, error) { return f.TestRepo.Repo, nil }

	good := f.TestRepo.Dangling(base, "good", map[string]string{"a.json": `{"ok": true}`})
	f.NoError(Run(&UpdateHookConfig{
		UpdateHookArgs: UpdateHookArgs{RefName: "refs/heads/main", OldOid: base, NewOid: good},
		Checks:         chain,
		Open:           open,
	}))

	bad := f.TestRepo.Dangling(base, "bad", map[string]string{"a.json": `{"ok": tru}`})
	err = Run(&UpdateHookConfig{
		UpdateHookArgs: UpdateHookArgs{RefName: "refs/heads/main", OldOid: base, NewOid: bad},
		Checks:         chain,
		Open:           open,
	})
	f.Equal("json", rejectedBy(err))
}
