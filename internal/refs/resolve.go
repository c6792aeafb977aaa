package refs

import (
	"fmt"

	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"github.com/pkg/errors"
)

type Status int

const (
	Deleted Status = iota
	Created
	Updated
	ForceUpdated
)

func (s Status) String() string {
	switch s {
	case Deleted:
		return "deleted"
	case Created:
		return "created"
	case Updated:
		return "updated"
	case ForceUpdated:
		return "force-updated"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Backend is the read-only view of the repository needed to classify a ref
// update and compute its diff. *git.Repo implements it.
type Backend interface {
	// CommitsNotIn lists commits reachable from rev but not from exclude,
	// no more than limit of them when limit > 0.
	CommitsNotIn(rev, exclude string, limit int) ([]string, error)
	// NewCommits lists commits reachable from rev and from no existing
	// ref, newest first.
	NewCommits(rev string) ([]string, error)
	FirstParent(rev string) (parent string, ok bool, err error)
	Diff(from, to string) ([]git.DiffEntry, error)
	EmptyTree() string
}

var _ Backend = (*git.Repo)(nil)

// Classify decides how the ref moves. A deletion never touches the
// backend. An update that leaves commits behind which the new tip can't
// reach is a force update, checked before creation so a non-zero old rev
// never classifies as created.
func Classify(u RefUpdate, b Backend) (Status, error) {
	if u.IsDelete() {
		return Deleted, nil
	}

	if !u.IsCreate() {
		lost, err := b.CommitsNotIn(u.OldRev, u.NewRev, 1)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to classify %s", u.RefName)
		}
		if len(lost) > 0 {
			return ForceUpdated, nil
		}
		return Updated, nil
	}

	return Created, nil
}

// Diff returns the file changes a ref update introduces.
//
// Deleted refs have none. Updated refs diff old against new. Created and
// force-updated refs diff new against the parent of the oldest commit the
// push brings in, or against the empty tree when that commit starts a new
// history or the push brings in no commits at all.
func Diff(u RefUpdate, b Backend) ([]git.DiffEntry, error) {
	status, err := Classify(u, b)
	if err != nil {
		return nil, err
	}

	var from string

	switch status {
	case Deleted:
		return []git.DiffEntry{}, nil
	case Updated:
		from = u.OldRev
	case Created, ForceUpdated:
		if from, err = baseOfNewHistory(u, b); err != nil {
			return nil, err
		}
	}

	entries, err := b.Diff(from, u.NewRev)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to diff %s", u.RefName)
	}
	if entries == nil {
		entries = []git.DiffEntry{}
	}
	return entries, nil
}

func baseOfNewHistory(u RefUpdate, b Backend) (string, error) {
	fresh, err := b.NewCommits(u.NewRev)
	if err != nil {
		return "", errors.Wrapf(err, "failed to list new commits of %s", u.RefName)
	}
	if len(fresh) == 0 {
		return b.EmptyTree(), nil
	}

	oldest := fresh[len(fresh)-1]
	parent, ok, err := b.FirstParent(oldest)
	if err != nil {
		return "", errors.Wrapf(err, "failed to find parent of %s", oldest)
	}
	if !ok {
		return b.EmptyTree(), nil
	}
	return parent, nil
}
