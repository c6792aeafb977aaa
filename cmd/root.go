package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func RootCmd(setup *cmdSetup) *cobra.Command {
	if setup == nil {
		setup = newCmdSetup(os.Environ())
	}

	rootCmd := &cobra.Command{
		Use:           "receivegate",
		Short:         "server side git hooks that check what is being pushed",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&setup.CLI.Debug, "debug", "D", setup.CLI.Debug, "increase verboseness")
	rootCmd.PersistentFlags().BoolVar(&setup.CLI.Trace, "trace", setup.CLI.Trace, "highest level of verbosity")
	rootCmd.PersistentFlags().BoolVarP(&setup.CLI.Quiet, "quiet", "q", setup.CLI.Quiet, "operate silently if there are no errors")
	setup.ConfigFlag(rootCmd)

	cmds := []*cobra.Command{
		HookCmd(setup),
		ChecksCmd(setup),
		ConfigCmd(setup),
	}

	rootCmd.AddCommand(cmds...)

	return rootCmd
}
