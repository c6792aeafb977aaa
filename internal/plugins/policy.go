package plugins

import (
	"fmt"
	"strings"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/refs"
	"github.com/pkg/errors"
)

type (
	NotYourRefError struct {
		RefName    string
		RemoteUser string
		Owner      string
	}

	TagCreateOrUpdateForbiddenError struct {
		RefName string
	}

	// ownerCheck only lets a user move branches under refs/heads/<user>/.
	// Branches without a slash in their short name belong to nobody and
	// anyone may push them.
	ownerCheck struct {
		enabled    bool
		remoteUser string
	}

	// tagCheck refuses creating or moving tags. Deleting one is fine.
	tagCheck struct {
		enabled bool
	}
)

var (
	_ error        = (*NotYourRefError)(nil)
	_ error        = (*TagCreateOrUpdateForbiddenError)(nil)
	_ checks.Check = (*ownerCheck)(nil)
	_ checks.Check = (*tagCheck)(nil)
)

func (e *NotYourRefError) Error() string {
	return fmt.Sprintf(
		"Remote user %#v tried to update ref %#v which may only be updated by user %#v",
		e.RemoteUser, e.RefName, e.Owner,
	)
}

func (e *TagCreateOrUpdateForbiddenError) Error() string {
	return fmt.Sprintf("Tags are not stored in this repo, rejecting %#v", e.RefName)
}

// Owner is the first path component of a branch name, "" for tags, other
// refs and branches without a slash.
func Owner(u refs.RefUpdate) string {
	if !u.IsBranch() {
		return ""
	}
	short := u.ShortName()
	if i := strings.Index(short, "/"); i > 0 {
		return short[:i]
	}
	return ""
}

func (c *ownerCheck) Name() string { return "owner" }

func (c *ownerCheck) Evaluate(ctx *checks.Context) (*checks.Outcome, error) {
	if !c.enabled {
		return checks.Pass(nil), nil
	}
	if c.remoteUser == "" {
		return nil, errors.New("the owner check is enabled but REMOTE_USER is not set")
	}

	if owner := Owner(ctx.Update); owner != "" && owner != c.remoteUser {
		return checks.Fail(&NotYourRefError{ctx.Update.RefName, c.remoteUser, owner}), nil
	}
	return checks.Pass(nil), nil
}

func (c *ownerCheck) React(ctx *checks.Context, o *checks.Outcome) error {
	return reactWithError(ctx, o)
}

func (c *tagCheck) Name() string { return "tags" }

func (c *tagCheck) Evaluate(ctx *checks.Context) (*checks.Outcome, error) {
	u := ctx.Update
	if c.enabled && u.IsTag() && !u.IsDelete() {
		return checks.Fail(&TagCreateOrUpdateForbiddenError{u.RefName}), nil
	}
	return checks.Pass(nil), nil
}

func (c *tagCheck) React(ctx *checks.Context, o *checks.Outcome) error {
	return reactWithError(ctx, o)
}

func reactWithError(ctx *checks.Context, o *checks.Outcome) error {
	if o.OK() {
		return nil
	}
	if err, ok := o.Detail.(error); ok {
		ctx.Logger().Error(err.Error())
	}
	return nil
}
