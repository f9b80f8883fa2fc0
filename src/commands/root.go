package commands

import (
	"context"
	"fmt"

	"Backend-Volunteer-Hours/src/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type globalFlags struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the volunteer command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "volunteer",
		Short: "Volunteer attendance from the terminal",
		Long: `volunteer checks volunteers in and out against the hour-record service,
backfills past sessions and closes forgotten ones automatically.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", DefaultSettingsPath(), "config file")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newCheckinCmd(flags),
		newCheckoutCmd(flags),
		newEntryCmd(flags),
		newStatusCmd(flags),
		newConfigCmd(flags),
		newWatchCmd(flags),
		newVersionCmd(),
	)
	return root
}

// withRuntime loads settings and wires the client around fn.
func withRuntime(flags *globalFlags, fn func(cmd *cobra.Command, args []string, rt *runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		settings, err := LoadSettings(flags.configPath)
		if err != nil {
			return err
		}

		logger := zap.NewNop()
		if flags.verbose {
			if logger, err = utils.NewLogger("development"); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		rt, err := openRuntime(ctx, settings, logger)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd, args, rt)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "volunteer %s (%s, %s)\n", version, commit, date)
		},
	}
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
