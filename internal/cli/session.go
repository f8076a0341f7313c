package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/ttlkv/kvs"
)

// session is one opened store plus the output it reports to.
type session struct {
	registry *kvs.Registry
	handle   *kvs.Handle
	out      *OutputFormatter
}

// withSession opens the configured data file, runs fn and closes the store.
// kvs errors returned by fn are reported through the formatter.
func (o *RootOptions) withSession(cmd *cobra.Command, fn func(s *session) error) error {
	out := o.formatter(cmd)
	reg := kvs.NewRegistry(o.storeConfig())

	h, err := reg.Open(o.DB, "")
	if err != nil {
		_ = reg.Close()
		return out.StoreError(err)
	}
	out.VerboseLog("opened %s", h.Path())

	runErr := fn(&session{registry: reg, handle: h, out: out})
	closeErr := reg.Close()

	if runErr != nil {
		return report(out, runErr)
	}
	if closeErr != nil {
		return out.StoreError(closeErr)
	}
	return nil
}

// report passes ExitErrors through and reports everything else as a
// store error.
func report(out *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return out.StoreError(err)
}
