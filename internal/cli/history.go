package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/esfilter/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit       int
	Fingerprint string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded compilations from the audit log",
		Long: `Show the compilations count and search recorded in the audit log,
oldest first. --fingerprint selects every run of one compiled query.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "show the most recent N entries (0 for all)")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "only entries with this query fingerprint")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	sess, err := openSession(opts.RootOptions, out, "", true)
	if err != nil {
		return err
	}
	defer sess.Close()

	if sess.store == nil {
		return report(out, ErrCodeAudit, ExitCommandError, "audit log is disabled", nil)
	}

	var entries []store.Compilation
	if opts.Fingerprint != "" {
		entries, err = sess.store.ByFingerprint(cmd.Context(), opts.Fingerprint)
	} else {
		entries, err = sess.store.List(cmd.Context(), opts.Limit)
	}
	if err != nil {
		return report(out, ErrCodeAudit, ExitFailure, "reading audit log", err)
	}

	if out.JSON() {
		if entries == nil {
			entries = []store.Compilation{}
		}
		return out.Success(entries, "")
	}

	if len(entries) == 0 {
		fmt.Fprintln(out.Writer, "No recorded compilations")
		return nil
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			strconv.FormatInt(e.Seq, 10),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Layer,
			e.Operation,
			out.mark(e.FullySupported),
			strconv.FormatInt(e.Hits, 10),
			short(e.Fingerprint),
		}
	}
	return out.Table([]string{"Seq", "Time", "Layer", "Op", "Native", "Hits", "Fingerprint"}, rows)
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
