package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/ttlkv/kvs"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "ttlkv"

// envFiles are loaded in order; variables already set are never overridden.
var envFiles = []string{".env", ".env.local"}

// resolve fills o from flags, environment and .env files, in that order of
// precedence.
func (o *RootOptions) resolve(v *viper.Viper, cmd *cobra.Command) error {
	for _, f := range envFiles {
		_ = godotenv.Load(f) // missing files are fine
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return WrapExitError(ExitCommandError, "failed to bind flags", err)
	}

	o.Verbose = v.GetBool("verbose")
	o.Format = v.GetString("format")
	o.DB = v.GetString("db")
	o.Dir = v.GetString("dir")
	o.SizeLimit = v.GetInt64("size-limit")
	o.LockTimeout = v.GetDuration("lock-timeout")
	o.CommitInterval = v.GetDuration("commit-interval")
	o.SweepInterval = v.GetDuration("sweep-interval")
	return nil
}

// storeConfig translates the resolved options into a kvs.Config.
func (o *RootOptions) storeConfig() kvs.Config {
	return kvs.Config{
		Directory:      o.Dir,
		SizeLimit:      o.SizeLimit,
		LockTimeout:    o.LockTimeout,
		CommitInterval: o.CommitInterval,
		SweepInterval:  o.SweepInterval,
		Logger:         o.logger(),
	}
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// newLogger logs warnings to w, or everything down to debug when verbose.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
