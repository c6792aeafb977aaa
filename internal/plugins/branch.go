package plugins

import (
	"regexp"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
	"github.com/pkg/errors"
)

// branchCheck rejects ref names that don't match the configured pattern.
// Deleting a ref is always allowed, whatever its name.
type branchCheck struct {
	pattern *regexp.Regexp
}

var _ checks.Check = (*branchCheck)(nil)

func newBranchCheck(cfg domain.Branch) (*branchCheck, error) {
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "bad branch pattern %#v", cfg.Pattern)
	}
	return &branchCheck{pattern: re}, nil
}

func (c *branchCheck) Name() string { return "branch" }

func (c *branchCheck) Evaluate(ctx *checks.Context) (*checks.Outcome, error) {
	u := ctx.Update
	if u.IsDelete() || c.pattern.MatchString(u.RefName) {
		return checks.Pass(nil), nil
	}
	return checks.Fail(u.RefName), nil
}

func (c *branchCheck) React(ctx *checks.Context, o *checks.Outcome) error {
	if o.OK() {
		return nil
	}

	if c.pattern.String() == domain.DefaultBranchPattern {
		ctx.Logger().Errorf("Invalid symbols in ref/branch name: '%s', only [a-zA-Z0-9_./#] allowed",
			ctx.Update.RefName)
		return nil
	}

	ctx.Logger().Errorf("Ref name '%s' does not match the allowed pattern %s",
		ctx.Update.RefName, c.pattern)
	return nil
}
