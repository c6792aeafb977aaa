package cmd

import (
	"fmt"

	"git.twitter.biz/focus/rce/receivegate/internal/unwinder"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func ConfigCmd(cset *cmdSetup) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "inspect the hook configuration",
		Long: `For convenience, the hook config usually lives in the repo itself, on
an orphan branch, which is a ref that doesn't share history with the
mainline of the repo. Pushing to that ref is how the config is changed.
The subcommands of 'config' show what the hook will use.
		`,
		PersistentPreRun: cset.LogSetupHook(),
	}

	var raw bool

	var configShowCmd = &cobra.Command{
		Use:     "show",
		Aliases: []string{"cat"},
		Short:   "show the currently active config",
		Long: `The configuration can be set with the --config flag on the command
line or with the RECEIVEGATE_CONFIG environment variable. Otherwise it's
read from the admin ref of the repository.

The show command will load the config, validate it, and display it on
stdout with every default filled in. With --raw the text is shown as it was
found instead.
	`,
		Args: cobra.NoArgs,
		RunE: func(cc *cobra.Command, args []string) error {
			return unwinder.Run(func(unwind *unwinder.U) {
				loaded, err := cset.LoadMainConfigFile()
				unwind.Check(err)

				cset.Sayln(cc, "# config from", loaded.Source)

				if raw {
					_, err = fmt.Fprint(cc.OutOrStdout(), loaded.String())
					unwind.Check(err)
					return
				}

				enc := yaml.NewEncoder(cc.OutOrStdout())
				enc.SetIndent(2)
				unwind.Checkf(enc.Encode(map[string]interface{}{"receivegate": loaded.Config}), "failed to write config")
				unwind.Check(enc.Close())
			})
		},
	}

	configShowCmd.Flags().BoolVar(&raw, "raw", raw, "show the config text as it was read")

	configCmd.AddCommand(configShowCmd)

	return configCmd
}
