package config

import (
	"testing"

	"git.twitter.biz/focus/rce/receivegate/internal/domain"
	"git.twitter.biz/focus/rce/receivegate/internal/testutils"
)

type (
	Fixture struct {
		*testutils.Fixture
	}
)

func NewFixture(t *testing.T) (f *Fixture) {
	return &Fixture{
		Fixture: testutils.NewFixture(t),
	}
}

func (f *Fixture) SetupGitTestRepos() *Fixture {
	f.Fixture.SetupGitTestRepos()
	return f
}

func (f *Fixture) UnmarshalConfig() (conf *domain.Config) {
	conf, err := domain.LoadConfigFromYaml(f.ReadProjectRootRelativeFile(f.ConfigPath))
	f.NoError(err)
	return conf
}

// commitAdminRef stores files on an orphan commit and points ref at it,
// leaving the work tree as it was.
func (f *Fixture) commitAdminRef(ref string, files map[string]string) string {
	return f.TestRepo.CommitOrphan(ref, "admin config", files)
}
