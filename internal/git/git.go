package git

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"git.twitter.biz/focus/rce/receivegate/internal/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// GitBin returns the path of the git executable found in PATH.
func GitBin() (string, error) {
	gitBin, err := exec.LookPath("git")
	if err != nil {
		return "", errors.Wrap(err, "could not locate git binary")
	}
	return gitBin, nil
}

type (
	NotAGitRepo struct {
		Path string
	}

	GitCmd struct {
		*exec.Cmd
		Stdout bytes.Buffer
		Stderr bytes.Buffer
		path   string
	}

	// A function that opens a Repo on first use and returns the same
	// instance (or the same error) each time its called.
	LazyGit func() (*Repo, error)
)

// NewLazyGit returns a memoizing function that opens the repository at
// repoPath the first time it is called.
func NewLazyGit(repoPath string) LazyGit {
	var repo *Repo
	var err error
	var done bool
	return func() (*Repo, error) {
		if !done {
			repo, err = NewRepo(repoPath)
			done = true
		}
		return repo, err
	}
}

// ConstLazyGit wraps an existing git repo in a function so it satisfies the
// LazyGit interface
func ConstLazyGit(repo *Repo) LazyGit {
	return func() (*Repo, error) { return repo, nil }
}

func NewGitCmd(repoPath string) (cmd *GitCmd, err error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert repoPath %#v to an absolute path", repoPath)
	}

	bin, err := GitBin()
	if err != nil {
		return nil, err
	}

	cmd = &GitCmd{
		Cmd:  exec.Command(bin, "-C", abs),
		path: abs,
	}

	// inherits GIT_DIR, GIT_OBJECT_DIRECTORY and GIT_QUARANTINE_PATH from
	// receive-pack so objects of the in-flight push are visible
	cmd.Cmd.Env = os.Environ()
	cmd.Cmd.Stdout = &cmd.Stdout
	cmd.Cmd.Stderr = &cmd.Stderr

	cmd.SetEnv("LC_ALL", "C")

	return cmd, nil
}

func (g *GitCmd) AddArgs(args ...string) *GitCmd {
	g.Cmd.Args = append(g.Cmd.Args, args...)
	return g
}

func (g *GitCmd) AddArgf(f string, opts ...interface{}) *GitCmd {
	return g.AddArgs(fmt.Sprintf(f, opts...))
}

func (g *GitCmd) SetEnv(k, v string) *GitCmd {
	g.Env = append(g.Env, fmt.Sprintf("%s=%s", k, v))
	return g
}

// SetStdin feeds data to the command's standard input.
func (g *GitCmd) SetStdin(data []byte) *GitCmd {
	g.Cmd.Stdin = bytes.NewReader(data)
	return g
}

// CommandLine returns the comand executed as a string for debugging
func (g *GitCmd) CommandLine() string {
	return strings.Join(g.Args, " ")
}

func isNotARepoMessage(emsg string) bool {
	return strings.Contains(emsg, "not a git repository") ||
		strings.Contains(emsg, "fatal: cannot change to")
}

func (g *GitCmd) Run() (err error) {
	err = g.Cmd.Run()

	log.WithFields(log.Fields{
		"cmd":      g.Cmd.String(),
		"exitCode": g.Cmd.ProcessState.ExitCode(),
		"stderr":   g.Stderr.String(),
		"err":      err,
	}).Debug()

	if err != nil {
		if isNotARepoMessage(g.Stderr.String()) {
			return errors.Wrapf(&NotAGitRepo{Path: g.path}, "git command failed")
		}
		if g.ProcessState == nil {
			return errors.Wrapf(err, "failed to start %#v", g.CommandLine())
		}
	}

	return g.Check()
}

func (g *GitCmd) Check() (err error) {
	if g.ProcessState == nil {
		return nil
	}
	if !g.ProcessState.Success() {
		return &CommandFailedError{
			Command:  g.String(),
			ExitCode: g.ProcessState.ExitCode(),
			Stderr:   g.Stderr.String(),
		}
	}
	return nil
}

func (g *GitCmd) Output() (out []byte, err error) {
	if err = g.Run(); err != nil {
		return nil, err
	}
	return g.Stdout.Bytes(), nil
}

func scanLines(r io.Reader) (lines []string) {
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		lines = append(lines, scan.Text())
	}
	return lines
}

/* CommandResult interface */

// OutputLines returns the lines of output from the command as a slice of
// strings with trailing newlines removed
func (g *GitCmd) OutputLines() (lines []string) { return scanLines(bytes.NewReader(g.Stdout.Bytes())) }
func (g *GitCmd) Bytes() []byte                 { return g.Stdout.Bytes() }
func (g *GitCmd) ExitCode() int                 { return g.ProcessState.ExitCode() }
func (g *GitCmd) Command() *GitCmd              { return g }

/* end */

var _ error = &NotAGitRepo{}

func (e *NotAGitRepo) Error() string {
	return fmt.Sprintf("%s is not a git repository", e.Path)
}

// IsNotAGitRepo reports whether err was caused by pointing git at
// something other than a repository.
func IsNotAGitRepo(err error) bool {
	_, ok := errors.Cause(err).(*NotAGitRepo)
	return ok
}

type (
	Repo struct {
		path         string
		gitDir       string
		isBare       bool
		objectFormat string
	}

	CommandResult interface {
		OutputLines() []string
		Bytes() []byte
		ExitCode() int
		Command() *GitCmd
	}

	CommandRunner func(cmd ...string) (CommandResult, error)
)

var _ CommandResult = new(GitCmd)
var _ CommandRunner = new(Repo).Run

func NewRepo(path string) (repo *Repo, err error) {
	if path == "" {
		path = "."
	}

	repo = &Repo{path: filepath.Clean(path)}

	cmd, err := repo.run("rev-parse", "--is-bare-repository", "--git-dir")
	if err != nil {
		return nil, err
	}

	lines := cmd.OutputLines()
	if len(lines) < 2 {
		return nil, errors.Errorf("unexpected output from %#v: %#v", cmd.CommandLine(), lines)
	}

	repo.isBare = lines[0] == "true"

	gitDir := strings.TrimSpace(lines[1])
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(repo.path, gitDir)
	}
	repo.gitDir = filepath.Clean(gitDir)

	// older gits don't know about --show-object-format, they only do sha1
	repo.objectFormat = "sha1"
	if cmd, err = repo.run("rev-parse", "--show-object-format"); err == nil {
		if out := cmd.OutputLines(); len(out) > 0 && out[0] == "sha256" {
			repo.objectFormat = "sha256"
		}
	}

	return repo, nil
}

// Run takes a list of arguments (not including 'git') to run in this repo
// executes the command, and returns the GitCmd for further inspection.
// We return the GitCmd whether or not err is nil, so that the
// caller may inspect Stderr for clues.
func (r *Repo) Run(args ...string) (cr CommandResult, err error) {
	return r.run(args...)
}

func (r *Repo) run(args ...string) (cr *GitCmd, err error) {
	if len(args) > 1 && args[0] == "git" {
		return nil, errors.Errorf(
			"invalid command, argument to Run's first value should not be \"git\". "+
				"args: %#v",
			args,
		)
	}

	cmd, err := r.Cmd()
	if err != nil {
		return nil, err
	}
	cmd.AddArgs(args...)
	err = cmd.Run()
	return cmd, err
}

// Cmd returns a GitCmd struct set up to execute git subcommands in this
// repository.
func (r *Repo) Cmd() (cmd *GitCmd, err error) {
	if cmd, err = NewGitCmd(r.path); err != nil {
		return nil, err
	}

	return cmd, nil
}

func (r *Repo) Path() string         { return r.path }
func (r *Repo) GitDir() string       { return r.gitDir }
func (r *Repo) IsBare() bool         { return r.isBare }
func (r *Repo) ObjectFormat() string { return r.objectFormat }

// return a path relative to the top level of this repository. This method will panic
// if IsBare returns true.
func (r *Repo) RelPath(ps ...string) string {
	if r.isBare {
		panic("Tried to call RelPath on a bare repository: " + r.path)
	}
	return filepath.Join(append([]string{r.path}, ps...)...)
}

type CommandFailedError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf(
		"the command %#v exited with exitstatus %#v. stderr was: %#v",
		e.Command, e.ExitCode, e.Stderr,
	)
}

// CatFileBlob returns the contents of the repository relative path at the given
// ref. The ref does not need to be a literal reference, rather it needs to
// "spell a commit". For more info see gitrevisions(7).
func (r *Repo) CatFileBlob(ref, path string) (data []byte, err error) {
	cmd, err := r.Cmd()
	if err != nil {
		return nil, err
	}

	cmd.AddArgs("cat-file", "blob").AddArgf("%s:%s", ref, path)
	if err = cmd.Run(); err != nil {
		return nil, err
	}

	return cmd.Stdout.Bytes(), nil
}

type (
	Config struct {
		repo  *Repo
		scope string
	}
)

var _ common.KeyValueVisitor = new(Config).Visit

func (r *Repo) Config() *Config {
	return &Config{r, ""}
}

// Local returns a Config instance with '--local' scope set
func (c *Config) Local() *Config { return &Config{c.repo, "--local"} }

func (c *Config) mkArgs() (args []string) {
	args = append(args, "config")
	if c.scope != "" {
		args = append(args, c.scope)
	}
	return args
}

func (c *Config) Visit(f func(k, v string) error) (err error) {
	cmd, err := c.repo.Cmd()
	if err != nil {
		return err
	}
	cmd.AddArgs(c.mkArgs()...).AddArgs("--list")

	if err = cmd.Run(); err != nil {
		return err
	}

	for _, line := range cmd.OutputLines() {
		line = strings.TrimSpace(line)
		q := strings.Index(line, "=")
		if q < 0 {
			log.Warnf("malformed line from git config: %#v", line)
			continue
		}

		if err = f(line[:q], line[q+1:]); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the value for 'key' for the currently defined git config scope.
// For a missing key, this function returns val="", ok=false, error=nil.
func (c *Config) Get(key string) (val string, ok bool, err error) {
	cmd, err := c.repo.Cmd()
	if err != nil {
		return "", false, err
	}
	cmd.AddArgs(c.mkArgs()...).AddArgs("--get", key)

	if err = cmd.Run(); err != nil {
		if cfe, ok := err.(*CommandFailedError); ok {
			// this is what git does when we try to get a missing key
			if cfe.ExitCode == 1 && cfe.Stderr == "" {
				return "", false, nil
			}
		}

		return "", false, err
	}

	lines := cmd.OutputLines()
	if len(lines) < 1 {
		return "", true, nil
	}

	return strings.TrimSpace(lines[0]), true, nil
}

func (c *Config) Set(key, val string) (err error) {
	cmd, err := c.repo.Cmd()
	if err != nil {
		return err
	}

	// Run calls Check so this will do the right thing
	return cmd.AddArgs(c.mkArgs()...).AddArgs(key, val).Run()
}
