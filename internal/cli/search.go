package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	QueryOptions
	Approximate bool
}

// SearchHit is one returned feature.
type SearchHit struct {
	ID     string          `json:"id"`
	Score  float64         `json:"score"`
	Source json.RawMessage `json:"source,omitempty"`
}

// SearchOutput is the search command's result.
type SearchOutput struct {
	Layer string      `json:"layer"`
	Hits  []SearchHit `json:"hits"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Fetch the features a filter selects",
		Long: `Fetch the features a filter selects, in sort order. Text output lists
hit IDs and scores; JSON output includes each hit's source document.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&opts.Approximate, "approximate", false, "accept the approximated superset for partially supported filters")

	return cmd
}

func runSearch(opts *SearchOptions, cmd *cobra.Command) error {
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

	hits, err := src.Features(cmd.Context(), q)
	if err != nil {
		return sess.failed(err)
	}

	result := SearchOutput{Layer: opts.Layer, Hits: make([]SearchHit, len(hits))}
	for i, h := range hits {
		result.Hits[i] = SearchHit{ID: h.ID, Score: h.Score, Source: h.Source}
	}

	if out.JSON() {
		return out.Success(result, "")
	}

	fmt.Fprintf(out.Writer, "%d hit(s)\n\n", len(hits))
	if len(hits) == 0 {
		return nil
	}
	rows := make([][]string, len(hits))
	for i, h := range hits {
		rows[i] = []string{h.ID, strconv.FormatFloat(h.Score, 'g', -1, 64)}
	}
	return out.Table([]string{"ID", "Score"}, rows)
}
