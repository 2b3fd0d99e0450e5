package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type rootOptions struct {
	configPath string
	token      string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "bridge",
		Short:         "Brain Bridge client: book sessions and courses, browse listings, reconcile payments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("BRIDGE_CONFIG_PATH"), "path to config file")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "auth token (overrides auth.token)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides logging.level)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newBookCmd(opts))
	root.AddCommand(newListingsCmd(opts))
	root.AddCommand(newLedgerCmd(opts))
	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newServeCmd(opts))

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bridge %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
