package plugins

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
)

type (
	// FormatViolation is a file whose added lines clang-format would
	// change, with the change it suggests.
	FormatViolation struct {
		Path string
		Diff string
	}

	ClangFormatError struct {
		Path   string
		Err    error
		Stderr string
	}

	// clangFormatCheck runs clang-format over the lines each update adds,
	// using the style file found in the pushed tree.
	clangFormatCheck struct {
		cfg    domain.ClangFormat
		filter *fileFilter
	}
)

var (
	_ checks.Check = (*clangFormatCheck)(nil)
	_ error        = (*ClangFormatError)(nil)
)

func (e *ClangFormatError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("clang-format failed on %s: %s: %s", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("clang-format failed on %s: %s", e.Path, e.Err)
}

func newClangFormatCheck(cfg domain.ClangFormat, files domain.Files) (*clangFormatCheck, error) {
	ff, err := newFileFilter(cfg.Patterns, files)
	if err != nil {
		return nil, err
	}
	return &clangFormatCheck{cfg: cfg, filter: ff}, nil
}

func (c *clangFormatCheck) Name() string { return "clang-format" }

func (c *clangFormatCheck) Evaluate(ctx *checks.Context) (*checks.Outcome, error) {
	entries, err := c.filter.selected(ctx)
	if err != nil {
		return nil, err
	}

	var todo []git.DiffEntry
	for _, e := range entries {
		if len(e.AddedLines()) > 0 {
			todo = append(todo, e)
		}
	}
	if len(todo) == 0 {
		return checks.Pass(nil), nil
	}

	style, ok, err := ctx.Backend.FileAt(ctx.Update.NewRev, c.cfg.StyleFile)
	if err != nil {
		return nil, err
	}
	if !ok {
		ctx.Logger().Warnf("No clang-format style file %s found, skipping", c.cfg.StyleFile)
		return checks.Pass(nil), nil
	}

	workdir, err := os.MkdirTemp("", "receivegate-clang-format-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scratch directory")
	}
	defer os.RemoveAll(workdir)

	if err = os.WriteFile(filepath.Join(workdir, ".clang-format"), style, 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write style file")
	}

	var violations []FormatViolation
	for i := range todo {
		v, err := c.formatOne(ctx, workdir, i, &todo[i])
		if err != nil {
			return nil, err
		}
		if v != nil {
			violations = append(violations, *v)
		}
	}

	if len(violations) > 0 {
		return checks.Fail(violations), nil
	}
	return checks.Pass(nil), nil
}

func (c *clangFormatCheck) formatOne(
	ctx *checks.Context, workdir string, n int, e *git.DiffEntry,
) (*FormatViolation, error) {
	data, err := ctx.Backend.Blob(e.NewID)
	if err != nil {
		return nil, err
	}

	// a directory per file keeps the name, which clang-format uses to pick
	// the language, and still finds the style file one level up
	dir := filepath.Join(workdir, strconv.Itoa(n))
	if err = os.Mkdir(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create scratch directory")
	}
	src := filepath.Join(dir, filepath.Base(e.Path))
	if err = os.WriteFile(src, data, 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", src)
	}

	args := []string{"-style=file"}
	for _, r := range e.AddedLines() {
		args = append(args, fmt.Sprintf("-lines=%d:%d", r.Start, r.End))
	}
	args = append(args, src)

	runCtx := context.Background()
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, c.cfg.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, c.cfg.Binary, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	ctx.Logger().Debugf("Running %s %s", c.cfg.Binary, strings.Join(args, " "))

	if err = cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			err = errors.Errorf("timed out after %s", c.cfg.Timeout)
		}
		return nil, &ClangFormatError{Path: e.Path, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}

	if bytes.Equal(stdout.Bytes(), data) {
		return nil, nil
	}
	return &FormatViolation{Path: e.Path, Diff: c.render(string(data), stdout.String())}, nil
}

// render shows the lines clang-format would change, grouped under the
// line number in the pushed file where each change starts.
func (c *clangFormatCheck) render(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)
	header := color.New(color.FgCyan)
	for _, col := range []*color.Color{removed, added, header} {
		if c.cfg.Color {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}

	var out strings.Builder
	line, inHunk := 1, false
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		count := strings.Count(d.Text, "\n")
		if !strings.HasSuffix(d.Text, "\n") {
			count++
		}

		if d.Type == diffmatchpatch.DiffEqual {
			line += count
			inHunk = false
			continue
		}

		if !inHunk {
			out.WriteString(header.Sprintf("@@ line %d", line))
			out.WriteByte('\n')
			inHunk = true
		}

		prefix, col := "+", added
		if d.Type == diffmatchpatch.DiffDelete {
			prefix, col = "-", removed
			line += count
		}
		for _, l := range strings.Split(text, "\n") {
			out.WriteString(col.Sprint(prefix + l))
			out.WriteByte('\n')
		}
	}

	return out.String()
}

func (c *clangFormatCheck) React(ctx *checks.Context, o *checks.Outcome) error {
	if o.OK() {
		return nil
	}

	violations, _ := o.Detail.([]FormatViolation)
	for _, v := range violations {
		ctx.Logger().Errorf("File '%s' is not formatted according to %s, suggested change:\n%s",
			v.Path, c.cfg.StyleFile, v.Diff)
	}
	return nil
}
