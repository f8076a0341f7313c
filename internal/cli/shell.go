package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ttlkv/kvs"
)

const shellHelp = `commands:
  create <key> [ttl=<seconds>] <json>   store a value under a new key
  read <key>                            print a value
  delete <key>                          remove a key
  keys                                  list live keys
  sweep                                 remove expired rows
  flush                                 commit pending writes
  optimize                              compact the data file
  stats                                 show row count and size
  help                                  show this text
  exit                                  leave the shell`

// errShellExit ends the read loop.
var errShellExit = errors.New("exit")

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session on one store",
		Long: `Open the store once and run commands read from standard input, one per
line. The store stays locked for the whole session and its periodic commit
and sweep loops run in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				return runShell(s, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

// runShell reads commands from in until EOF or exit. Store errors are
// reported and the loop continues.
func runShell(s *session, in io.Reader, prompt io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(prompt, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(prompt)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		err := shellCommand(s, line)
		if errors.Is(err, errShellExit) {
			return nil
		}
		if err != nil {
			var kvErr *kvs.Error
			if errors.As(err, &kvErr) {
				_ = s.out.StoreError(err)
				continue
			}
			_ = s.out.Error("usage", err.Error(), nil)
		}
	}
}

func shellCommand(s *session, line string) error {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	h := s.handle

	switch name {
	case "create":
		key, ttl, raw, err := parseShellCreate(rest)
		if err != nil {
			return err
		}
		value, err := parseValue(raw, false)
		if err != nil {
			return err
		}
		if err := h.Create(key, value, ttl); err != nil {
			return err
		}
		return s.out.Success("ok")

	case "read":
		if rest == "" {
			return errors.New("read needs a key")
		}
		value, err := h.Read(rest)
		if err != nil {
			return err
		}
		return s.out.Success(value)

	case "delete":
		if rest == "" {
			return errors.New("delete needs a key")
		}
		if err := h.Delete(rest); err != nil {
			return err
		}
		return s.out.Success("ok")

	case "keys":
		keys, err := h.Keys()
		if err != nil {
			return err
		}
		return s.out.Success(keys)

	case "sweep":
		n, err := h.Sweep()
		if err != nil {
			return err
		}
		return s.out.Success(fmt.Sprintf("removed %d", n))

	case "flush":
		if err := h.Flush(); err != nil {
			return err
		}
		return s.out.Success("ok")

	case "optimize":
		if err := h.Optimize(); err != nil {
			return err
		}
		return s.out.Success("ok")

	case "stats":
		stats, err := h.Stats()
		if err != nil {
			return err
		}
		return s.out.Success(formatStats(stats))

	case "help":
		return s.out.Success(shellHelp)

	case "exit", "quit":
		return errShellExit

	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}
}

// parseShellCreate splits "<key> [ttl=<seconds>] <json>".
func parseShellCreate(args string) (key string, ttl int, value string, err error) {
	key, rest, ok := strings.Cut(args, " ")
	if !ok || key == "" {
		return "", 0, "", errors.New("create needs a key and a value")
	}
	rest = strings.TrimSpace(rest)

	ttl = kvs.NoExpiry
	if strings.HasPrefix(rest, "ttl=") {
		field, tail, _ := strings.Cut(rest, " ")
		ttl, err = strconv.Atoi(strings.TrimPrefix(field, "ttl="))
		if err != nil {
			return "", 0, "", fmt.Errorf("bad ttl %q", field)
		}
		rest = strings.TrimSpace(tail)
	}
	if rest == "" {
		return "", 0, "", errors.New("create needs a value")
	}
	return key, ttl, rest, nil
}
