package plugins

import (
	"strings"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"github.com/dustin/go-humanize"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/src-d/enry/v2"
)

// fileFilter picks the changed files a content check reads.
type fileFilter struct {
	globs        []glob.Glob
	ignoreCase   bool
	skipVendored bool
	maxBytes     uint64
}

func newFileFilter(p domain.Patterns, files domain.Files) (*fileFilter, error) {
	ff := &fileFilter{
		ignoreCase:   p.IgnoreCase,
		skipVendored: files.SkipVendored,
		maxBytes:     files.MaxBlobBytes(),
	}

	for _, pat := range p.Patterns {
		g, err := ff.compile(pat)
		if err != nil {
			return nil, errors.Wrapf(err, "bad file pattern %#v", pat)
		}
		ff.globs = append(ff.globs, g)
	}

	return ff, nil
}

// fold lower-cases s when the filter ignores case. Patterns and paths both
// go through it before matching.
func (ff *fileFilter) fold(s string) string {
	if ff.ignoreCase {
		return strings.ToLower(s)
	}
	return s
}

func (ff *fileFilter) compile(pattern string) (glob.Glob, error) {
	return glob.Compile(ff.fold(pattern), '/')
}

func (ff *fileFilter) matchPath(path string) bool {
	path = ff.fold(path)
	for _, g := range ff.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// wants reports whether the post-image of e should be looked at. Removed
// files, submodules and symlinks have no content to check.
func (ff *fileFilter) wants(e *git.DiffEntry) bool {
	switch {
	case e.IsDeleted(), e.IsGitlink(), e.IsSymlink(), e.NewID == "":
		return false
	case !ff.matchPath(e.Path):
		return false
	case ff.skipVendored && enry.IsVendor(e.Path):
		return false
	}
	return true
}

// selected returns the entries of the update's diff the filter wants.
func (ff *fileFilter) selected(ctx *checks.Context) ([]git.DiffEntry, error) {
	entries, err := ctx.Diff()
	if err != nil {
		return nil, err
	}

	var out []git.DiffEntry
	for i := range entries {
		if ff.wants(&entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out, nil
}

// forEachBlob reads every wanted file of the update and hands it to fn.
// What fn returns is collected per file. An error reading the repository
// stops the walk and is returned as is.
func (ff *fileFilter) forEachBlob(
	ctx *checks.Context,
	fn func(e *git.DiffEntry, data []byte) error,
) (bad checks.FileErrors, err error) {
	entries, err := ff.selected(ctx)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		e := &entries[i]

		if ff.maxBytes > 0 {
			size, err := ctx.Backend.BlobSize(e.NewID)
			if err != nil {
				return nil, err
			}
			if uint64(size) > ff.maxBytes {
				ctx.Logger().Warnf("Not checking '%s': %s is over the %s limit",
					e.Path, humanize.IBytes(uint64(size)), humanize.IBytes(ff.maxBytes))
				continue
			}
		}

		data, err := ctx.Backend.Blob(e.NewID)
		if err != nil {
			return nil, err
		}

		ctx.Logger().Debugf("Checking '%s'", e.Path)

		if verr := fn(e, data); verr != nil {
			bad = append(bad, checks.FileError{Path: e.Path, Err: verr})
		}
	}

	return bad, nil
}
