package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/ttlkv/kvs"
)

// RootOptions holds global flags for all commands.
// Values are resolved through viper, so each flag can also come from a
// TTLKV_* environment variable or a .env file.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	DB             string
	Dir            string
	SizeLimit      int64
	LockTimeout    time.Duration
	CommitInterval time.Duration
	SweepInterval  time.Duration

	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ttlkv CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "ttlkv",
		Short: "ttlkv - embedded key-value store with expiring rows",
		Long: `ttlkv operates on a single-file key-value store.

Each command opens the data file, takes its exclusivity lock, runs and
closes it again. Values are JSON documents. Rows created with --ttl
disappear once that many seconds have passed.

Every global flag can also be set through the environment, e.g.
TTLKV_DB=/var/lib/app/cache.db or TTLKV_SIZE_LIMIT=1048576. Variables
are also read from .env and .env.local in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.resolve(v, cmd); err != nil {
				return err
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.Logger = newLogger(opts.Verbose, cmd.ErrOrStderr())
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.DB, "db", "ttlkv.db", "data file name or path")
	flags.StringVar(&opts.Dir, "dir", "", "directory the data file is resolved against (default: working directory)")
	flags.Int64Var(&opts.SizeLimit, "size-limit", kvs.DefaultSizeLimit, "refuse creates once the store holds this many bytes")
	flags.DurationVar(&opts.LockTimeout, "lock-timeout", kvs.DefaultLockTimeout, "how long to wait for another process to release the store")
	flags.DurationVar(&opts.CommitInterval, "commit-interval", kvs.DefaultCommitInterval, "periodic commit interval (negative disables)")
	flags.DurationVar(&opts.SweepInterval, "sweep-interval", kvs.DefaultSweepInterval, "periodic expiry sweep interval (negative disables)")

	// Add subcommands
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewFillCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the OutputFormatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
