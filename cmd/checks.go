package cmd

import (
	"fmt"

	"git.twitter.biz/focus/rce/receivegate/internal/unwinder"
	"github.com/spf13/cobra"
)

func ChecksCmd(setup *cmdSetup) *cobra.Command {
	return &cobra.Command{
		Use:              "checks",
		Short:            "list the available checks, in the order they run",
		Long:             "Checks that the hook would run without arguments are marked with '*'.",
		Args:             cobra.NoArgs,
		PersistentPreRun: setup.LogSetupHook(),
		RunE: func(cc *cobra.Command, args []string) error {
			return unwinder.Run(func(u *unwinder.U) {
				loaded, err := setup.LoadMainConfigFile()
				u.Check(err)

				r, err := setup.Registry(loaded.Config)
				u.Check(err)

				chain, err := setup.SelectChecks(r, loaded.Config, nil)
				u.Check(err)

				enabled := make(map[string]bool, len(chain))
				for _, c := range chain {
					enabled[c.Name()] = true
				}

				for _, name := range r.Names() {
					mark := " "
					if enabled[name] {
						mark = "*"
					}
					_, err = fmt.Fprintf(cc.OutOrStdout(), "%s %s\n", mark, name)
					u.Check(err)
				}
			})
		},
	}
}
