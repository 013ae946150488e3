package main

import (
	"github.com/spf13/cobra"
	"github.com/upb/emergency-console/config"
	"go.uber.org/zap"
)

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "consolectl",
		Short: "Operator tools for the emergency console",
		Long: `consolectl bundles the operator tasks of the emergency console:
hashing seed passwords, minting session tokens for local testing,
inspecting the role table and applying database migrations.

Configuration is read from the same environment variables (and .env file)
as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	cmd.AddCommand(
		newHashPasswordCmd(),
		newIssueTokenCmd(),
		newRolesCmd(),
		newMigrateCmd(opts),
	)
	return cmd
}

func (o *rootOptions) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.New(cmd.Context())
}
