package cmd

import (
	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/hooks/pre_receive"
	"git.twitter.biz/focus/rce/receivegate/internal/hooks/update"
	"git.twitter.biz/focus/rce/receivegate/internal/unwinder"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const hookConfigHelp = `
Configuration is read from the file given with --config (or RECEIVEGATE_CONFIG),
or else from receivegate.yaml on the refs/admin/receivegate ref of the
repository. The ref and path can be changed with the git config keys
receivegate.admin.ref and receivegate.admin.blobPath. Without either, every
check runs with its defaults.

The checks to run are the ones named as arguments, or else the ones listed
in RECEIVEGATE_CHECKS, or else the 'checks' list of the config. An empty
list means every check. 'receivegate checks' lists them.

Two ref policies are off unless turned on in the config, with the git config
keys receivegate.refPolicy.checkOwnerMatches and
receivegate.refPolicy.tagCreateOrUpdateForbidden, or with the env vars
RECEIVEGATE_CHECK_OWNER_MATCHES and RECEIVEGATE_TAG_CREATE_OR_UPDATE_FORBIDDEN:

* checkOwnerMatches only lets REMOTE_USER push branches named
  refs/heads/<REMOTE_USER>/...

* tagCreateOrUpdateForbidden rejects creating or moving tags. They may still
  be deleted.

When a check rejects an update it says why on stderr, which git shows to
the pusher.
`

// hookChain loads the config and picks the checks a hook runs.
func hookChain(setup *cmdSetup, args []string) (chain []checks.Check, err error) {
	err = pre_receive.Timed(log.NewEntry(log.StandardLogger()), "Discovering checks", func() error {
		loaded, err := setup.LoadMainConfigFile()
		if err != nil {
			return err
		}

		r, err := setup.Registry(loaded.Config)
		if err != nil {
			return err
		}

		chain, err = setup.SelectChecks(r, loaded.Config, args)
		return err
	})
	return chain, err
}

func (c *cmdSetup) openBackend() (checks.Backend, error) {
	repo, err := c.Repo()
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"gitDir":       repo.GitDir(),
		"bare":         repo.IsBare(),
		"objectFormat": repo.ObjectFormat(),
	}).Debug("Opened repository")
	return repo, nil
}

func preReceiveHookCmd(setup *cmdSetup) *cobra.Command {
	return &cobra.Command{
		Use:   "pre-receive [check...]",
		Short: "checks every ref update of a push, see githooks(5)",
		Long: `
from githooks(5):

	This hook is invoked by git-receive-pack(1) when it reacts to git push
	and updates reference(s) in its repository. Just before starting to
	update refs on the remote repository, the pre-receive hook is invoked.
	Its exit status determines the success or failure of the update.

	If the hook exits with non-zero status, none of the refs will be
	updated.

The updates are read from stdin, one "<old-oid> <new-oid> <ref-name>" line
each, and checked in order. The first check that fails an update rejects
the whole push.
` + hookConfigHelp,
		RunE: func(cc *cobra.Command, args []string) error {
			return unwinder.Run(func(u *unwinder.U) {
				chain, err := hookChain(setup, args)
				u.Check(err)

				u.Check(pre_receive.Run(&pre_receive.PreReceiveConfig{
					Input:  cc.InOrStdin(),
					Checks: chain,
					Open:   setup.openBackend,
					Log:    log.NewEntry(log.StandardLogger()),
				}))
			})
		},
	}
}

func updateHookCmd(setup *cmdSetup) *cobra.Command {
	return &cobra.Command{
		Use:   "update ref-name old-obj new-obj",
		Short: "called on the server side for each ref update",
		Long: `
from githooks(5):

	This hook is invoked by git-receive-pack(1) when it reacts to git push
	and updates reference(s) in its repository. Just before updating the
	ref on the remote repository, the update hook is invoked. Its exit
	status determines the success or failure of the ref update.

	A zero exit from the update hook allows the ref to be updated. Exiting
	with a non-zero status prevents git receive-pack from updating that
	ref.

The same checks as pre-receive are run, but only against the one ref, so a
rejection only affects that ref.
` + hookConfigHelp,
		Args: cobra.ExactArgs(3),
		RunE: func(cc *cobra.Command, args []string) error {
			return unwinder.Run(func(u *unwinder.U) {
				chain, err := hookChain(setup, nil)
				u.Check(err)

				u.Check(update.Run(&update.UpdateHookConfig{
					UpdateHookArgs: *update.NewUpdateHookArgs(args),
					Checks:         chain,
					Open:           setup.openBackend,
					Log:            log.NewEntry(log.StandardLogger()),
				}))
			})
		},
	}
}

func HookCmd(setup *cmdSetup) *cobra.Command {
	hookCmd := &cobra.Command{
		Use:              "hook",
		Short:            "implementation of githooks(5)",
		PersistentPreRun: setup.LogSetupHook(),
	}

	hookCmd.AddCommand(
		preReceiveHookCmd(setup),
		updateHookCmd(setup),
	)

	return hookCmd
}
