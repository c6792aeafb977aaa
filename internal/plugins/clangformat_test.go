package plugins

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
)

// squeezes runs of spaces, which is all the formatting our stand-in for
// clang-format knows about
const fakeClangFormat = `#!/bin/sh
echo "$@" >> "$FAKE_CLANG_FORMAT_ARGS"
if [ -n "$FAKE_CLANG_FORMAT_SLEEP" ]; then exec sleep 5; fi
if [ -n "$FAKE_CLANG_FORMAT_FAIL" ]; then echo "bad style" >&2; exit 3; fi
[ -f ../.clang-format ] || { echo "no style file" >&2; exit 4; }
for last; do :; done
tr -s ' ' < "$last"
`

type clangFixture struct {
	*Fixture
	argsLog string
	cfg     domain.ClangFormat
}

func newClangFixture(t *testing.T) *clangFixture {
	f := NewFixture(t)
	f.SetupGitTestRepos()

	bin := filepath.Join(f.Temp, "fake-clang-format")
	f.NoError(os.WriteFile(bin, []byte(fakeClangFormat), 0o755))

	cf := &clangFixture{Fixture: f, argsLog: filepath.Join(f.Temp, "args.log")}
	os.Setenv("FAKE_CLANG_FORMAT_ARGS", cf.argsLog)

	cf.cfg = domain.Defaults().ClangFormat
	cf.cfg.Binary = bin
	return cf
}

func (cf *clangFixture) check() *clangFormatCheck {
	c, err := newClangFormatCheck(cf.cfg, domain.Files{})
	cf.NoError(err)
	return c
}

func (cf *clangFixture) args() string {
	data, err := os.ReadFile(cf.argsLog)
	if os.IsNotExist(err) {
		return ""
	}
	cf.NoError(err)
	return string(data)
}

func (cf *clangFixture) run(files map[string]string) *checks.Outcome {
	return cf.Run(cf.check(), cf.Push(files), cf.TestRepo.Repo)
}

func TestClangFormatFlagsChangedLines(t *testing.T) {
	f := newClangFixture(t)
	defer f.Close()

	o := f.run(map[string]string{
		".clang-format": "BasedOnStyle: LLVM\n",
		"src/main.cpp":  "int  x = 1;\nint y;\n",
		"src/ok.h":      "int z;\n",
	})

	f.Equal(checks.Failed, o.Status)
	violations, ok := o.Detail.([]FormatViolation)
	f.True(ok)
	f.Len(violations, 1)
	f.Equal("src/main.cpp", violations[0].Path)
	f.Equal("@@ line 1\n-int  x = 1;\n+int x = 1;\n", violations[0].Diff)

	f.Contains(f.args(), "-style=file -lines=1:2 ")
	f.Contains(f.args(), "main.cpp")
	f.Contains(f.LogOutput.String(), "File 'src/main.cpp' is not formatted according to .clang-format")
}

func TestClangFormatOnlyAddedLines(t *testing.T) {
	f := newClangFixture(t)
	defer f.Close()

	f.TestRepo.Commit("base", map[string]string{
		".clang-format": "BasedOnStyle: LLVM\n",
		"a.c":           "int a;\nint b;\nint c;\n",
	})

	o := f.run(map[string]string{"a.c": "int a;\nint b;\nint c;\nint d;\n"})
	f.True(o.OK())
	f.Contains(f.args(), "-lines=4:4 ")
}

func TestClangFormatSkips(t *testing.T) {
	f := newClangFixture(t)
	defer f.Close()

	// nothing it cares about
	f.True(f.run(map[string]string{"notes.md": "a  b\n"}).OK())
	f.Empty(f.args())

	// no style file in the pushed tree
	f.True(f.run(map[string]string{"x.cpp": "int  x;\n"}).OK())
	f.Empty(f.args())
	f.Contains(f.LogOutput.String(), "No clang-format style file .clang-format found")
}

func TestClangFormatFailures(t *testing.T) {
	f := newClangFixture(t)
	defer f.Close()

	f.TestRepo.Commit("style", map[string]string{".clang-format": "BasedOnStyle: LLVM\n"})

	os.Setenv("FAKE_CLANG_FORMAT_FAIL", "1")
	o := f.run(map[string]string{"x.cpp": "int x;\n"})
	f.Equal(checks.Failed, o.Status)
	f.Nil(o.Detail)
	f.Contains(f.LogOutput.String(), "clang-format failed on x.cpp")
	f.Contains(f.LogOutput.String(), "bad style")
	os.Unsetenv("FAKE_CLANG_FORMAT_FAIL")

	os.Setenv("FAKE_CLANG_FORMAT_SLEEP", "1")
	f.cfg.Timeout = 200 * time.Millisecond
	o = f.run(map[string]string{"y.cpp": "int y;\n"})
	f.Equal(checks.Failed, o.Status)
	f.Contains(f.LogOutput.String(), "timed out after 200ms")
	os.Unsetenv("FAKE_CLANG_FORMAT_SLEEP")

	f.cfg.Binary = filepath.Join(f.Temp, "no-such-binary")
	o = f.run(map[string]string{"z.cpp": "int z;\n"})
	f.Equal(checks.Failed, o.Status)
}

func TestClangFormatRenderColor(t *testing.T) {
	f := newClangFixture(t)
	defer f.Close()

	f.cfg.Color = true
	out := f.check().render("a  b\nsame\n", "a b\nsame\n")
	f.Contains(out, "\x1b[31m-a  b")
	f.Contains(out, "\x1b[32m+a b")

	f.cfg.Color = false
	f.Equal("@@ line 2\n-x\n+y\n", f.check().render("same\nx\n", "same\ny\n"))
}
