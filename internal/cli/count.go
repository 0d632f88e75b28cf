package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/esfilter/internal/source"
)

// CountOptions holds flags for the count command.
type CountOptions struct {
	*RootOptions
	QueryOptions
	Approximate bool
}

// CountOutput is the count command's result.
type CountOutput struct {
	Layer string `json:"layer"`
	Count int    `json:"count"`
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the features a filter selects",
		Long: `Count the features a filter selects within the --offset/--limit window.

A fully supported filter is counted by the backend. An approximated filter
needs its hits re-tested locally; without --approximate that fails, with it
the hits of the wider query are counted as they are.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(opts, cmd)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&opts.Approximate, "approximate", false, "accept the approximated superset for partially supported filters")

	return cmd
}

func runCount(opts *CountOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	sess, err := openSession(opts.RootOptions, out, opts.Layer, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	q, err := sess.query(&opts.QueryOptions, cmd.InOrStdin())
	if err != nil {
		return err
	}

	src, err := sess.source(evaluator(opts.Approximate))
	if err != nil {
		return err
	}

	n, err := src.Count(cmd.Context(), q)
	if err != nil {
		return sess.failed(err)
	}

	result := CountOutput{Layer: opts.Layer, Count: n}
	return out.Success(result, fmt.Sprintf("%d\n", n))
}

func evaluator(approximate bool) source.Evaluator {
	if approximate {
		return source.Advisory
	}
	return nil
}
