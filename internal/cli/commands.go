package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/ttlkv/internal/jsonval"
	"github.com/roach88/ttlkv/kvs"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	TTL    int
	String bool
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <key> <value>",
		Short: "Store a value under a new key",
		Long: `Store a JSON value under a key that does not exist yet.

The value is parsed as JSON unless --string is given, in which case it is
stored as a JSON string.

Examples:
  ttlkv create user:1 '{"name":"ada"}'
  ttlkv create session:9 '"token"' --ttl 3600
  ttlkv create note hello --string`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[1], opts.String)
			if err != nil {
				return err
			}
			return opts.withSession(cmd, func(s *session) error {
				if err := s.handle.Create(args[0], value, opts.TTL); err != nil {
					return err
				}
				if opts.Format == "json" {
					return s.out.Success(map[string]any{"key": args[0], "ttl": opts.TTL})
				}
				return s.out.Success(fmt.Sprintf("created %s", args[0]))
			})
		},
	}

	cmd.Flags().IntVar(&opts.TTL, "ttl", kvs.NoExpiry, "seconds until the row expires (-1: never)")
	cmd.Flags().BoolVar(&opts.String, "string", false, "store the value as a string instead of parsing JSON")

	return cmd
}

// parseValue turns a command-line argument into a value to store.
func parseValue(arg string, asString bool) (any, error) {
	if asString {
		return arg, nil
	}
	value, err := jsonval.Decode([]byte(arg))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "value is not valid JSON (use --string to store text)", err)
	}
	return value, nil
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				value, err := s.handle.Read(args[0])
				if err != nil {
					return err
				}
				return s.out.Success(value)
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				if err := s.handle.Delete(args[0]); err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return s.out.Success(map[string]any{"key": args[0]})
				}
				return s.out.Success(fmt.Sprintf("deleted %s", args[0]))
			})
		},
	}
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List keys that have not expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				keys, err := s.handle.Keys()
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return s.out.Success(keys)
				}
				if len(keys) == 0 {
					return nil
				}
				return s.out.Success(strings.Join(keys, "\n"))
			})
		},
	}
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove every expired row now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				n, err := s.handle.Sweep()
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return s.out.Success(map[string]any{"removed": n})
				}
				return s.out.Success(fmt.Sprintf("removed %d expired rows", n))
			})
		},
	}
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Compact the data file",
		Long: `Compact the data file, returning the space of deleted and expired
rows to the filesystem. The store is unavailable while this runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				before, err := s.handle.Stats()
				if err != nil {
					return err
				}
				if err := s.handle.Optimize(); err != nil {
					return err
				}
				after, err := s.handle.Stats()
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return s.out.Success(map[string]any{
						"file_bytes_before": before.FileBytes,
						"file_bytes_after":  after.FileBytes,
					})
				}
				return s.out.Success(numbers.Sprintf("optimized %s: %d -> %d bytes", after.Path, before.FileBytes, after.FileBytes))
			})
		},
	}
}

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Metrics bool
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show row count and storage size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(s *session) error {
				stats, err := s.handle.Stats()
				if err != nil {
					return err
				}
				if opts.Metrics {
					s.registry.WriteMetrics(cmd.OutOrStdout())
					return nil
				}
				if opts.Format == "json" {
					return s.out.Success(stats)
				}
				return s.out.Success(formatStats(stats))
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print counters in Prometheus text format instead")

	return cmd
}

// numbers groups digits in text-mode output. JSON output is left ungrouped.
var numbers = message.NewPrinter(language.English)

func formatStats(s kvs.Stats) string {
	var b strings.Builder
	numbers.Fprintf(&b, "path:        %s\n", s.Path)
	numbers.Fprintf(&b, "rows:        %d\n", s.Rows)
	numbers.Fprintf(&b, "used bytes:  %d of %d\n", s.UsedBytes, s.SizeLimit)
	numbers.Fprintf(&b, "file bytes:  %d\n", s.FileBytes)
	numbers.Fprintf(&b, "uncommitted: %d mutations, %d bytes", s.UncommittedCount, s.UncommittedBytes)
	return b.String()
}

// FillOptions holds flags for the fill command.
type FillOptions struct {
	*RootOptions
	Count int
	TTL   int
}

// NewFillCommand creates the fill command.
func NewFillCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FillOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Insert generated rows",
		Long: `Insert --count rows under random keys. Stops early, without failing,
when the store reaches its size limit. Useful for exercising the size
limit and optimize.

Example:
  ttlkv fill --count 10000 --size-limit 1048576`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Count <= 0 {
				return NewExitError(ExitCommandError, "--count must be positive")
			}
			return opts.withSession(cmd, func(s *session) error {
				created, stopped, err := fill(s.handle, opts.Count, opts.TTL)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					data := map[string]any{"created": created}
					if stopped != "" {
						data["stopped"] = stopped
					}
					return s.out.Success(data)
				}
				msg := fmt.Sprintf("created %d rows", created)
				if stopped != "" {
					msg += " (stopped: " + stopped + ")"
				}
				return s.out.Success(msg)
			})
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", 1000, "number of rows to insert")
	cmd.Flags().IntVar(&opts.TTL, "ttl", kvs.NoExpiry, "ttl of every inserted row in seconds")

	return cmd
}

// fill inserts up to count generated rows. It stops at the size limit and
// reports the code name it stopped on.
func fill(h *kvs.Handle, count, ttl int) (created int, stopped string, err error) {
	for i := 0; i < count; i++ {
		id := uuid.New()
		key := strings.ReplaceAll(id.String(), "-", "")
		value := map[string]any{
			"id":  id.String(),
			"seq": i,
		}
		if err := h.Create(key, value, ttl); err != nil {
			if kvs.CodeOf(err) == kvs.CodeCapacityExceeded {
				return created, kvs.CodeCapacityExceeded.String(), nil
			}
			return created, "", err
		}
		created++
	}
	return created, "", nil
}
