// Package refs models the ref updates a push asks for and works out what each
// one does to the repository: how the ref moves and which files change.
package refs

import (
	"fmt"
	"strings"

	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"git.twitter.biz/focus/rce/receivegate/internal/validation"
	"github.com/go-playground/validator/v10"
)

type (
	// RefUpdate is one "<old> <new> <ref>" line handed to a pre-receive hook.
	RefUpdate struct {
		OldRev  string `v:"required,oid"`
		NewRev  string `v:"required,oid"`
		RefName string `v:"required"`
	}

	InputFormatError struct {
		Line   string
		Reason string
	}
)

var vv *validator.Validate = validation.NewValidator()

var _ error = (*InputFormatError)(nil)

func (e *InputFormatError) Error() string {
	return fmt.Sprintf("malformed ref update %#v: %s", e.Line, e.Reason)
}

// Parse reads a single hook input line. The line must hold exactly three
// whitespace separated fields.
func Parse(line string) (u RefUpdate, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return RefUpdate{}, &InputFormatError{
			Line:   line,
			Reason: fmt.Sprintf("expected 3 fields but found %d", len(fields)),
		}
	}

	u = RefUpdate{OldRev: fields[0], NewRev: fields[1], RefName: fields[2]}
	if err = vv.Struct(&u); err != nil {
		return RefUpdate{}, &InputFormatError{
			Line:   line,
			Reason: strings.Join(validation.FormatValidationErrors(err, nil), "; "),
		}
	}

	return u, nil
}

// New builds a RefUpdate from the argument triple of the update hook.
func New(refName, oldRev, newRev string) (RefUpdate, error) {
	return Parse(strings.Join([]string{oldRev, newRev, refName}, " "))
}

func (u RefUpdate) String() string {
	return fmt.Sprintf("%s %s %s", u.OldRev, u.NewRev, u.RefName)
}

// IsCreate is true when the ref did not exist before the push.
func (u RefUpdate) IsCreate() bool { return git.IsZeroID(u.OldRev) }

// IsDelete is true when the push removes the ref.
func (u RefUpdate) IsDelete() bool { return git.IsZeroID(u.NewRev) }

func (u RefUpdate) IsBranch() bool { return strings.HasPrefix(u.RefName, "refs/heads/") }
func (u RefUpdate) IsTag() bool    { return strings.HasPrefix(u.RefName, "refs/tags/") }

// ShortName strips refs/heads/ or refs/tags/ from the ref name.
func (u RefUpdate) ShortName() string {
	switch {
	case u.IsBranch():
		return strings.TrimPrefix(u.RefName, "refs/heads/")
	case u.IsTag():
		return strings.TrimPrefix(u.RefName, "refs/tags/")
	}
	return u.RefName
}
