package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"git.twitter.biz/focus/rce/receivegate/internal/common"
	"git.twitter.biz/focus/rce/receivegate/internal/config"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"git.twitter.biz/focus/rce/receivegate/internal/plugins"
	"git.twitter.biz/focus/rce/receivegate/internal/testutils"
	"github.com/spf13/cobra"
)

type (
	Fixture struct {
		*testutils.Fixture
	}

	WrappedCommand struct {
		*cobra.Command
		Stdin  bytes.Buffer
		Stdout bytes.Buffer
		Stderr bytes.Buffer
		setup  cmdSetup
	}
)

func (wc *WrappedCommand) SetArgs(args ...string) { wc.Command.SetArgs(args) }

// NewFixture sets up a work tree repo and its bare origin. Commands run
// against the origin, the way hooks do on a server.
func NewFixture(t *testing.T) *Fixture {
	f := NewFixtureNoRepo(t)
	f.SetupGitTestRepos()
	return f
}

func NewFixtureNoRepo(t *testing.T) *Fixture {
	return &Fixture{Fixture: testutils.NewFixture(t)}
}

func (f *Fixture) WrapCommand(constructor func(*cmdSetup) *cobra.Command) *WrappedCommand {
	return f.WrapCommandIn(git.ConstLazyGit(f.TestOrigin.Repo), constructor)
}

func (f *Fixture) WrapCommandIn(repo git.LazyGit, constructor func(*cmdSetup) *cobra.Command) *WrappedCommand {
	wc := &WrappedCommand{}

	wc.setup = cmdSetup{
		Repo:        repo,
		env:         os.Environ(),
		NewRegistry: plugins.NewRegistry,
	}

	config.CLIConfigDefaults(&wc.setup.CLI)
	f.NoError(config.LoadCLIConfigFromEnv(common.NewEnvVisitor(wc.setup.env), &wc.setup.CLI))

	wc.Command = constructor(&wc.setup)

	wc.SetIn(&wc.Stdin)
	wc.SetOut(&wc.Stdout)
	wc.SetErr(&wc.Stderr)
	return wc
}

// WriteConfig writes a hook config file under the temp dir and returns its
// path.
func (f *Fixture) WriteConfig(body string) string {
	path := filepath.Join(f.Temp, "receivegate.yaml")
	f.NoError(os.WriteFile(path, []byte(body), 0o644))
	return path
}

// PreReceive runs 'hook pre-receive' with one stdin line per update.
func (f *Fixture) PreReceive(updates []string, args ...string) (*WrappedCommand, error) {
	wc := f.WrapCommand(RootCmd)
	wc.SetArgs(append([]string{"hook", "pre-receive"}, args...)...)
	for _, u := range updates {
		wc.Stdin.WriteString(u + "\n")
	}
	return wc, wc.Execute()
}

func updateLine(oldRev, newRev, ref string) string {
	return fmt.Sprintf("%s %s %s", oldRev, newRev, ref)
}
