package testutils

import (
	"os"
	"runtime"
	"strings"
	"testing"

	"git.twitter.biz/focus/rce/receivegate/internal/common"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
	log "github.com/sirupsen/logrus"

	fpath "path/filepath"

	r "github.com/stretchr/testify/require"
)

type (
	Fixture struct {
		*r.Assertions
		T          *testing.T
		origEnv    []string
		ConfigPath string
		Temp       string
		TestRepo   *TestRepo
		TestOrigin *TestRepo
	}

	TestRepo struct {
		*git.Repo
		r *r.Assertions
	}
)

// set these values in the process environment to make git work right
var gitEnv = []string{
	"PAGER=cat",
	"EDITOR=:",
	"GIT_AUTHOR_NAME=Capt Spaulding",
	"GIT_AUTHOR_EMAIL=captspaulding@scotland-yard.co.uk",
	"GIT_COMMITTER_NAME=Roscoe W Chandler",
	"GIT_COMMITTER_EMAIL=abey@thefishman.gov",
}

func NewTestRepo(g *git.Repo, r *r.Assertions) *TestRepo {
	return &TestRepo{g, r}
}

// Writes the contents at the relative path given. If the contents are
// blank then just write the relative path as the contents of the file
func (t *TestRepo) WriteFile(relpath, content string) {
	path := t.RelPath(relpath)
	t.r.NoError(os.MkdirAll(fpath.Dir(path), 0755))

	if content == "" {
		content = relpath
	}
	t.r.NoError(os.WriteFile(path, []byte(content), 0644))
}

func (t *TestRepo) RemoveFile(relpath string) {
	t.r.NoError(os.Remove(t.RelPath(relpath)))
}

// Git runs a git command in the repo, fails the test if it doesn't succeed
// and returns stdout with surrounding whitespace removed.
func (t *TestRepo) Git(args ...string) string {
	cr, err := t.Run(args...)
	t.r.NoError(err, "git %s", strings.Join(args, " "))
	return strings.TrimSpace(string(cr.Bytes()))
}

// Commit writes files (path -> content), stages everything in the work tree
// and commits it. Returns the new commit id.
func (t *TestRepo) Commit(msg string, files map[string]string) string {
	for p, content := range files {
		t.WriteFile(p, content)
	}
	t.Git("add", "-A")
	t.Git("commit", "--allow-empty", "--no-verify", "-q", "-m", msg)
	return t.Head()
}

func (t *TestRepo) Head() string { return t.Git("rev-parse", "HEAD") }

// Dangling commits files on a throwaway branch forked from base and deletes
// the branch again. The returned commit is reachable from no ref, which is
// the state a pushed commit is in while pre-receive runs. The work tree is
// left on the branch that was checked out before.
func (t *TestRepo) Dangling(base, msg string, files map[string]string) string {
	orig := t.Git("symbolic-ref", "--short", "HEAD")
	t.Git("checkout", "-q", "-b", "scratch", base)
	id := t.Commit(msg, files)
	t.Git("checkout", "-q", "-f", orig)
	t.Git("branch", "-q", "-D", "scratch")
	return id
}

// CommitOrphan commits files on a commit with no parent and points ref at
// it. Nothing else in the repository changes.
func (t *TestRepo) CommitOrphan(ref, msg string, files map[string]string) string {
	orig := t.Git("symbolic-ref", "--short", "HEAD")
	t.Git("checkout", "-q", "--orphan", "orphan-scratch")
	t.Git("rm", "-q", "-rf", "--cached", ".")
	t.Git("clean", "-q", "-fdx")
	id := t.Commit(msg, files)
	t.Git("update-ref", ref, id)
	t.Git("checkout", "-q", "-f", orig)
	t.Git("branch", "-q", "-D", "orphan-scratch")
	return id
}

func NewFixture(t *testing.T) (fix *Fixture) {
	f := &Fixture{
		Assertions: r.New(t),
		T:          t,
		origEnv:    os.Environ(),
		Temp:       t.TempDir(),
	}

	f.ResetEnv()

	f.ConfigPath = "config/receivegate.yaml"
	return f
}

// put the env back exactly the way we found it
func (f *Fixture) cleanEnv() {
	os.Clearenv()
	common.VisitEnv(f.origEnv, os.Setenv)
}

// clean the env but set a few special vars
func (f *Fixture) ResetEnv() {
	f.cleanEnv()
	os.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	// setting this prevents git from finding ~/.gitconfig and messing up tests
	os.Setenv("HOME", f.Temp)
	os.Setenv("GIT_CEILING_DIRECTORIES", f.Temp)
	os.Setenv("RECEIVEGATE_TEST", "true")
	common.VisitEnv(gitEnv, os.Setenv)
}

// Sets os.Environ back to what it was when NewFixture was called
func (f *Fixture) Close() {
	f.cleanEnv()
}

func (f *Fixture) GetProjectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := fpath.Clean(fpath.Join(fpath.Dir(filename), "../.."))
	_, err := os.Stat(fpath.Join(dir, "go.mod"))
	log.Debugf("Project root is: %s", dir)
	f.NoError(err, "could not determine top level directory")
	return dir
}

func (f *Fixture) RootRelativeJoin(args ...string) string {
	return fpath.Join(append([]string{f.GetProjectRoot()}, args...)...)
}

// Reads a file relative to the project root (the directory that contains
// this package's go.mod file). Failure to read the file will be recorded
// on the test instance given in the constructor.
func (f *Fixture) ReadProjectRootRelativeFile(args ...string) (data []byte) {
	path := f.RootRelativeJoin(args...)
	data, err := os.ReadFile(path)
	f.NoError(err, "failed to read file: %#v", path)
	return data
}

func (f *Fixture) initRepo(args ...string) {
	cmd, err := git.NewGitCmd(f.Temp)
	f.NoError(err)
	f.NoError(cmd.AddArgs(args...).Run(), "git %s", strings.Join(args, " "))
}

// SetupGitTestRepos creates a work tree at $Temp/repo holding one commit on
// main, and a bare clone of it at $Temp/origin.git. The bare clone is the
// kind of repository server side hooks run in.
func (f *Fixture) SetupGitTestRepos() *Fixture {
	testRepoPath := fpath.Join(f.Temp, "repo")
	testOriginPath := fpath.Join(f.Temp, "origin.git")

	f.initRepo("init", "-q", testRepoPath)

	tr, err := git.NewRepo(testRepoPath)
	f.NoError(err)
	f.TestRepo = NewTestRepo(tr, f.Assertions)

	f.TestRepo.Git("symbolic-ref", "HEAD", "refs/heads/main")
	f.TestRepo.Commit("initial commit", map[string]string{"README.md": "# test repo\n"})

	f.initRepo("clone", "-q", "--bare", testRepoPath, testOriginPath)

	to, err := git.NewRepo(testOriginPath)
	f.NoError(err)
	f.TestOrigin = NewTestRepo(to, f.Assertions)

	return f
}

// Stage copies commit id and everything it needs into the origin without
// leaving a ref to it. That is how a pushed commit looks to a pre-receive
// hook running in the origin.
func (f *Fixture) Stage(id string) string {
	f.TestRepo.Git("push", "-q", f.TestOrigin.Path(), id+":refs/staging/tmp")
	f.TestOrigin.Git("update-ref", "-d", "refs/staging/tmp")
	return id
}

// Publish pushes ref from the work tree repo to the origin.
func (f *Fixture) Publish(ref string) {
	f.TestRepo.Git("push", "-q", "-f", f.TestOrigin.Path(), ref+":"+ref)
}

func (f *Fixture) RefMustExist(r *git.Repo, name string) {
	cr, err := r.Run("show-ref", "--verify", "--quiet", "--", name)
	f.NoError(err)
	f.Equal(0, cr.ExitCode())
}
