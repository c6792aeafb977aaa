package git

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// ZeroID is what receive-pack hands hooks for a ref that does not exist
	// on one side of an update.
	ZeroID = "0000000000000000000000000000000000000000"

	// EmptyTreeID names the tree with no entries in a sha1 repository.
	EmptyTreeID = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

	// EmptyTreeIDSHA256 is the same tree in a sha256 repository.
	EmptyTreeIDSHA256 = "6ef19b41225c5369f1c104d45d8d85efa9b057b53b14b4b9b939dd74decc5321"

	ModeGitlink = "160000"
	ModeSymlink = "120000"
)

var zeroIDRE = regexp.MustCompile(`^0{40}(0{24})?$`)

// IsZeroID reports whether id is the all-zero object name of either hash
// length.
func IsZeroID(id string) bool {
	return zeroIDRE.MatchString(id)
}

type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Deleted
	Renamed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

type (
	// DiffEntry is one changed path between two trees. Path is where the
	// content lives after the change, except for deletions where it names
	// the removed file. OldPath is set for renames and deletions.
	DiffEntry struct {
		Path    string
		OldPath string
		Kind    ChangeKind
		OldID   string
		NewID   string
		OldMode string
		NewMode string
		// Patch is the zero-context unified diff of this entry alone,
		// starting at its "diff --git" header.
		Patch []byte
	}

	// LineRange is an inclusive, 1-based span of lines.
	LineRange struct {
		Start int
		End   int
	}
)

func (d *DiffEntry) IsDeleted() bool { return d.Kind == Deleted }
func (d *DiffEntry) IsGitlink() bool { return d.NewMode == ModeGitlink }
func (d *DiffEntry) IsSymlink() bool { return d.NewMode == ModeSymlink }

var hunkHeaderRE = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// AddedLines returns the post-image line ranges touched by each hunk of the
// patch. Hunks that only remove lines are skipped.
func (d *DiffEntry) AddedLines() (ranges []LineRange) {
	for _, line := range bytes.Split(d.Patch, []byte("\n")) {
		m := hunkHeaderRE.FindSubmatch(line)
		if m == nil {
			continue
		}

		start, _ := strconv.Atoi(string(m[1]))
		count := 1
		if len(m[2]) > 0 {
			count, _ = strconv.Atoi(string(m[2]))
		}
		if count == 0 {
			continue
		}

		ranges = append(ranges, LineRange{Start: start, End: start + count - 1})
	}
	return ranges
}

// EmptyTree returns the object name of the empty tree for this repository's
// hash algorithm.
func (r *Repo) EmptyTree() string {
	if r.objectFormat == "sha256" {
		return EmptyTreeIDSHA256
	}
	return EmptyTreeID
}

func (r *Repo) revList(args ...string) (ids []string, err error) {
	cmd, err := r.run(append([]string{"rev-list"}, args...)...)
	if err != nil {
		return nil, errors.Wrap(err, "rev-list failed")
	}
	for _, line := range cmd.OutputLines() {
		if line = strings.TrimSpace(line); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

// CommitsNotIn lists commits reachable from rev that are not reachable from
// exclude, newest first. At most limit ids are returned when limit > 0.
func (r *Repo) CommitsNotIn(rev, exclude string, limit int) ([]string, error) {
	args := []string{rev, "^" + exclude, "--"}
	if limit > 0 {
		args = append([]string{"-n", strconv.Itoa(limit)}, args...)
	}
	return r.revList(args...)
}

// NewCommits lists commits reachable from rev but from no existing ref,
// newest first. While a pre-receive hook runs the pushed refs have not been
// moved yet, so this is exactly the set of commits the push introduces.
func (r *Repo) NewCommits(rev string) ([]string, error) {
	return r.revList(rev, "--not", "--all")
}

// FirstParent returns the first parent of rev. ok is false for a root commit.
func (r *Repo) FirstParent(rev string) (parent string, ok bool, err error) {
	ids, err := r.revList("--parents", "-n", "1", rev, "--")
	if err != nil {
		return "", false, err
	}
	if len(ids) == 0 {
		return "", false, errors.Errorf("rev-list returned nothing for %#v", rev)
	}

	fields := strings.Fields(ids[0])
	if len(fields) < 2 {
		return "", false, nil
	}
	return fields[1], true, nil
}

// Diff computes the changes from the tree of `from` to the tree of `to`,
// recursing into subtrees and detecting renames. Each entry carries its own
// zero-context patch.
func (r *Repo) Diff(from, to string) (entries []DiffEntry, err error) {
	raw, err := r.run("diff-tree", "-r", "-z", "-M", "--raw", "--no-abbrev", from, to, "--")
	if err != nil {
		return nil, errors.Wrapf(err, "diff-tree --raw %s %s failed", from, to)
	}

	if entries, err = parseRawDiff(raw.Bytes()); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	patch, err := r.run(
		"diff-tree", "-r", "-p", "-U0", "-M", "--no-color", "--no-ext-diff",
		"--no-textconv", "--full-index", from, to, "--")
	if err != nil {
		return nil, errors.Wrapf(err, "diff-tree -p %s %s failed", from, to)
	}

	patches := splitPatch(patch.Bytes())
	if len(patches) != len(entries) {
		return nil, errors.Errorf(
			"diff-tree returned %d raw entries but %d patches for %s..%s",
			len(entries), len(patches), from, to)
	}

	for i := range entries {
		entries[i].Patch = patches[i]
	}

	return entries, nil
}

func normalizeID(id string) string {
	if IsZeroID(id) {
		return ""
	}
	return id
}

func normalizeMode(mode string) string {
	if strings.Trim(mode, "0") == "" {
		return ""
	}
	return mode
}

// parseRawDiff reads `git diff-tree -z --raw` output:
//   :<old mode> <new mode> <old id> <new id> <status>\0<path>\0[<new path>\0]
func parseRawDiff(out []byte) (entries []DiffEntry, err error) {
	fields := strings.Split(strings.TrimSuffix(string(out), "\x00"), "\x00")

	for i := 0; i < len(fields); i++ {
		meta := fields[i]
		if meta == "" {
			continue
		}
		if !strings.HasPrefix(meta, ":") {
			return nil, errors.Errorf("malformed diff-tree record: %#v", meta)
		}

		parts := strings.Fields(meta[1:])
		if len(parts) != 5 {
			return nil, errors.Errorf("malformed diff-tree record: %#v", meta)
		}

		e := DiffEntry{
			OldMode: normalizeMode(parts[0]),
			NewMode: normalizeMode(parts[1]),
			OldID:   normalizeID(parts[2]),
			NewID:   normalizeID(parts[3]),
		}

		status := parts[4][0]
		paths := 1
		if status == 'R' || status == 'C' {
			paths = 2
		}
		if i+paths >= len(fields) {
			return nil, errors.Errorf("truncated diff-tree record: %#v", meta)
		}
		for _, p := range fields[i+1 : i+1+paths] {
			if p == "" {
				return nil, errors.Errorf("empty path in diff-tree record: %#v", meta)
			}
		}

		switch status {
		case 'A':
			e.Kind = Added
			e.Path = fields[i+1]
		case 'M', 'T':
			e.Kind = Modified
			e.Path = fields[i+1]
		case 'D':
			e.Kind = Deleted
			e.Path = fields[i+1]
			e.OldPath = fields[i+1]
		case 'R':
			e.Kind = Renamed
			e.OldPath = fields[i+1]
			e.Path = fields[i+2]
		case 'C':
			// a copy is new content as far as anyone reading the result cares
			e.Kind = Added
			e.Path = fields[i+2]
		default:
			return nil, errors.Errorf("unknown diff-tree status %q for %#v", status, fields[i+1])
		}

		entries = append(entries, e)
		i += paths
	}

	return entries, nil
}

var patchHeader = []byte("diff --git ")

// splitPatch cuts a multi-file patch at each "diff --git" header line.
func splitPatch(out []byte) (patches [][]byte) {
	var start = -1
	for off := 0; off < len(out); {
		end := bytes.IndexByte(out[off:], '\n')
		if end < 0 {
			end = len(out)
		} else {
			end += off + 1
		}

		if bytes.HasPrefix(out[off:], patchHeader) {
			if start >= 0 {
				patches = append(patches, out[start:off])
			}
			start = off
		}
		off = end
	}
	if start >= 0 {
		patches = append(patches, out[start:])
	}
	return patches
}

// Blob returns the contents of the blob with the given id.
func (r *Repo) Blob(id string) ([]byte, error) {
	cmd, err := r.run("cat-file", "blob", id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read blob %s", id)
	}
	return cmd.Bytes(), nil
}

// BlobSize returns the size in bytes of the object with the given id.
func (r *Repo) BlobSize(id string) (int64, error) {
	cmd, err := r.run("cat-file", "-s", id)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to stat blob %s", id)
	}
	return strconv.ParseInt(strings.TrimSpace(string(cmd.Bytes())), 10, 64)
}

// FileAt returns the contents of path in the tree of rev. ok is false when
// there is no regular file at that path.
func (r *Repo) FileAt(rev, path string) (data []byte, ok bool, err error) {
	cmd, err := r.run("ls-tree", "-z", "--full-tree", rev, "--", path)
	if err != nil {
		return nil, false, errors.Wrapf(err, "ls-tree %s %s failed", rev, path)
	}

	rec := strings.TrimRight(string(cmd.Bytes()), "\x00")
	if rec == "" {
		return nil, false, nil
	}

	// <mode> SP <type> SP <object> TAB <file>
	tab := strings.IndexByte(rec, '\t')
	if tab < 0 {
		return nil, false, errors.Errorf("malformed ls-tree output: %#v", rec)
	}
	meta := strings.Fields(rec[:tab])
	if len(meta) != 3 || meta[1] != "blob" || meta[0] == ModeSymlink {
		return nil, false, nil
	}

	if data, err = r.Blob(meta[2]); err != nil {
		return nil, false, err
	}
	return data, true, nil
}
