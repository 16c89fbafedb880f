package cli

import (
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X stacksight/internal/cli.Version=...".
var Version = "dev"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "stacksight",
		Short:   "Track investment account balances month by month",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			LoadEnvFile()
		},
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newHashPasswordCommand(),
		newEventsCommand(),
	)

	return rootCmd
}
