package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/esfilter/internal/compiler"
	"github.com/roach88/esfilter/internal/dsl"
	"github.com/roach88/esfilter/internal/source"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	QueryOptions
}

// CompileOutput is the compile command's result.
type CompileOutput struct {
	Layer          string          `json:"layer"`
	Index          string          `json:"index"`
	FullySupported bool            `json:"fully_supported"`
	Fingerprint    string          `json:"fingerprint"`
	Query          json.RawMessage `json:"query"`
	PostFilter     json.RawMessage `json:"post_filter"`
	Gaps           []compiler.Gap  `json:"gaps"`
	Request        json.RawMessage `json:"request"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a filter to query DSL without contacting the backend",
		Long: `Compile a CQL2-JSON filter against a layer's schema and print the
query, the post filter, any approximation gaps and the search request body
that count and search would send.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}
	opts.bind(cmd)

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	sess, err := openSession(opts.RootOptions, out, opts.Layer, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	q, err := sess.query(&opts.QueryOptions, cmd.InOrStdin())
	if err != nil {
		return err
	}

	src := source.New(nil, *sess.layer, source.WithLogger(sess.logger))
	result, req, err := src.Prepare(q)
	if err != nil {
		return sess.failed(err)
	}

	output, err := newCompileOutput(sess, result, req)
	if err != nil {
		return sess.failed(err)
	}
	out.VerboseLog("compiled %s: %d gap(s)", output.Layer, len(output.Gaps))

	if out.JSON() {
		return out.Success(output, "")
	}
	return out.Success(nil, compileText(out, output))
}

func newCompileOutput(sess *session, r *compiler.Result, req *source.SearchRequest) (*CompileOutput, error) {
	query, err := dsl.Marshal(r.Query)
	if err != nil {
		return nil, err
	}
	postFilter, err := dsl.Marshal(r.PostFilter)
	if err != nil {
		return nil, err
	}
	fp, err := dsl.Fingerprint(r.Query, r.PostFilter)
	if err != nil {
		return nil, err
	}
	body, err := req.Body()
	if err != nil {
		return nil, err
	}

	return &CompileOutput{
		Layer:          sess.layer.Name,
		Index:          sess.layer.Index,
		FullySupported: r.FullySupported,
		Fingerprint:    fp,
		Query:          query,
		PostFilter:     postFilter,
		Gaps:           r.Gaps,
		Request:        body,
	}, nil
}

func compileText(out *OutputFormatter, c *CompileOutput) string {
	var b strings.Builder
	if c.FullySupported {
		fmt.Fprintf(&b, "%s Compiled %s: fully supported\n", out.mark(true), c.Layer)
	} else {
		fmt.Fprintf(&b, "%s Compiled %s: approximated, %d gap(s)\n", out.mark(false), c.Layer, len(c.Gaps))
	}
	fmt.Fprintf(&b, "Index: %s\n", c.Index)
	fmt.Fprintf(&b, "Fingerprint: %s\n\n", c.Fingerprint)

	section(&b, "Query", c.Query)
	section(&b, "Post filter", c.PostFilter)

	if len(c.Gaps) > 0 {
		b.WriteString("Gaps:\n")
		for _, g := range c.Gaps {
			if g.Field != "" {
				fmt.Fprintf(&b, "  %s on %s: %s\n", g.Node, g.Field, g.Reason)
			} else {
				fmt.Fprintf(&b, "  %s: %s\n", g.Node, g.Reason)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func section(b *strings.Builder, title string, raw json.RawMessage) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "  ", "  "); err != nil {
		pretty.Write(raw)
	}
	fmt.Fprintf(b, "%s:\n  %s\n\n", title, pretty.String())
}
