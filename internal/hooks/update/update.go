package update

import (
	"strings"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/hooks/pre_receive"
	"git.twitter.biz/focus/rce/receivegate/internal/refs"
	log "github.com/sirupsen/logrus"
)

type (
	// UpdateHookArgs are the arguments git passes to the update hook, in
	// the order it passes them.
	UpdateHookArgs struct {
		RefName string
		OldOid  string
		NewOid  string
	}

	UpdateHookConfig struct {
		UpdateHookArgs
		Checks []checks.Check
		Open   func() (checks.Backend, error)
		Log    *log.Entry
	}
)

// NewUpdateHookArgs takes the hook's argv, minus the program name.
func NewUpdateHookArgs(args []string) *UpdateHookArgs {
	a := &UpdateHookArgs{}
	for i, p := range []*string{&a.RefName, &a.OldOid, &a.NewOid} {
		if i < len(args) {
			*p = args[i]
		}
	}
	return a
}

// RefUpdate validates the arguments.
func (a *UpdateHookArgs) RefUpdate() (refs.RefUpdate, error) {
	return refs.New(a.RefName, a.OldOid, a.NewOid)
}

// Run checks the single ref the update hook was called for, exactly as the
// pre-receive hook would check it.
func Run(c *UpdateHookConfig) error {
	u, err := c.RefUpdate()
	if err != nil {
		return err
	}

	return pre_receive.Run(&pre_receive.PreReceiveConfig{
		Input:  strings.NewReader(u.String() + "\n"),
		Checks: c.Checks,
		Open:   c.Open,
		Log:    c.Log,
	})
}
