package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/esfilter/internal/backend"
	"github.com/roach88/esfilter/internal/compiler"
	"github.com/roach88/esfilter/internal/config"
	"github.com/roach88/esfilter/internal/filter"
	"github.com/roach88/esfilter/internal/schema"
	"github.com/roach88/esfilter/internal/source"
	"github.com/roach88/esfilter/internal/store"
)

// QueryOptions holds the flags shared by commands that run a filter.
type QueryOptions struct {
	Layer  string
	Filter string   // JSON, @file, or - for stdin
	Sort   []string // property[:asc|desc]
	Offset int
	Limit  int
	ViewQ  string
	ViewF  string
}

func (q *QueryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&q.Layer, "layer", "l", "", "layer name (required)")
	cmd.Flags().StringVarP(&q.Filter, "filter", "f", "", "CQL2-JSON filter, @file, or - for stdin (default: include all)")
	cmd.Flags().StringSliceVar(&q.Sort, "sort", nil, "sort keys as property[:asc|desc]; :desc alone reverses natural order")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "index of the first feature")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum number of features (default from search.max_features)")
	cmd.Flags().StringVar(&q.ViewQ, "view-q", "", "query DSL JSON ANDed onto the query")
	cmd.Flags().StringVar(&q.ViewF, "view-f", "", "query DSL JSON ANDed onto the post filter")
	_ = cmd.MarkFlagRequired("layer")
}

// session is the state one command invocation works with.
type session struct {
	cfg    *config.Config
	layer  *schema.Layer
	store  *store.Store // nil when auditing is off or not needed
	logger *slog.Logger
	out    *OutputFormatter
}

// openSession loads configuration and the named layer. When audit is set
// and auditing is enabled, the audit store is opened too. Failures are
// reported through out.
func openSession(opts *RootOptions, out *OutputFormatter, layerName string, audit bool) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, report(out, ErrCodeConfig, ExitCommandError, "loading config", err)
	}
	out.VerboseLog("backend %s, layers %s", cfg.Backend.URL, cfg.Layers.Path)

	s := &session{cfg: cfg, logger: newLogger(out), out: out}

	if layerName != "" {
		catalog, err := schema.LoadFile(cfg.Layers.Path)
		if err != nil {
			return nil, report(out, ErrCodeLayer, ExitCommandError, "loading layers", err)
		}
		s.layer, err = catalog.Layer(layerName)
		if err != nil {
			return nil, report(out, ErrCodeLayer, ExitCommandError, "selecting layer", err)
		}
	}

	if audit && cfg.Audit.Enabled {
		s.store, err = store.Open(cfg.Audit.Path)
		if err != nil {
			return nil, report(out, ErrCodeAudit, ExitFailure, "opening audit log", err)
		}
		out.VerboseLog("recording to %s", cfg.Audit.Path)
	}
	return s, nil
}

func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// source returns a Source over the configured backend. A nil evaluator
// leaves partially supported filters failing with EVALUATOR_REQUIRED.
func (s *session) source(evaluator source.Evaluator) (*source.Source, error) {
	b := s.cfg.Backend
	bopts := []backend.Option{
		backend.WithGzip(b.Gzip),
		backend.WithHTTPClient(&http.Client{Timeout: b.Timeout}),
		backend.WithLogger(s.logger),
	}
	if b.APIKey != "" {
		bopts = append(bopts, backend.WithHeader("Authorization", "ApiKey "+b.APIKey))
	}
	client, err := backend.New(b.URL, bopts...)
	if err != nil {
		return nil, report(s.out, ErrCodeConfig, ExitCommandError, "configuring backend", err)
	}
	return source.New(client, *s.layer, s.sourceOptions(evaluator)...), nil
}

func (s *session) sourceOptions(evaluator source.Evaluator) []source.Option {
	opts := []source.Option{source.WithLogger(s.logger)}
	if evaluator != nil {
		opts = append(opts, source.WithEvaluator(evaluator))
	}
	if s.store != nil {
		opts = append(opts, source.WithRecorder(s.store))
	}
	return opts
}

// query builds the source query from flags.
func (s *session) query(q *QueryOptions, stdin io.Reader) (source.Query, error) {
	p, err := readFilter(q.Filter, stdin)
	if err != nil {
		return source.Query{}, report(s.out, ErrCodeFilter, ExitCommandError, "reading filter", err)
	}

	sortBy, err := parseSort(q.Sort)
	if err != nil {
		return source.Query{}, report(s.out, ErrCodeFilter, ExitCommandError, "parsing sort", err)
	}

	limit := q.Limit
	if limit == 0 {
		limit = s.cfg.Search.MaxFeatures
	}

	view := compiler.ViewParams{}
	if q.ViewQ != "" {
		view[compiler.ViewQuery] = q.ViewQ
	}
	if q.ViewF != "" {
		view[compiler.ViewFilter] = q.ViewF
	}

	return source.Query{
		Filter:      p,
		Sort:        sortBy,
		StartIndex:  q.Offset,
		MaxFeatures: limit,
		View:        view,
	}, nil
}

// readFilter decodes the --filter value. Empty selects everything.
func readFilter(arg string, stdin io.Reader) (filter.Predicate, error) {
	var data []byte
	var err error
	switch {
	case arg == "":
		return &filter.Include{}, nil
	case arg == "-":
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(arg[1:])
	default:
		data = []byte(arg)
	}
	if err != nil {
		return nil, err
	}
	return filter.Decode(data)
}

// parseSort reads property[:order] keys. An empty property names the
// natural order.
func parseSort(keys []string) ([]source.SortBy, error) {
	var out []source.SortBy
	for _, key := range keys {
		prop, order, _ := strings.Cut(key, ":")
		sb := source.SortBy{Property: prop, Order: source.Ascending}
		switch strings.ToLower(order) {
		case "", "asc":
		case "desc":
			sb.Order = source.Descending
		default:
			return nil, fmt.Errorf("sort key %q: order must be asc or desc", key)
		}
		if prop == "" && order == "" {
			return nil, fmt.Errorf("empty sort key")
		}
		out = append(out, sb)
	}
	return out, nil
}

// failed reports a compile or run error and maps it to an exit code.
func (s *session) failed(err error) error {
	var decodeErr *filter.DecodeError
	var compileErr *compiler.Error
	switch {
	case errors.As(err, &decodeErr):
		return report(s.out, ErrCodeFilter, ExitCommandError, "invalid filter", err)
	case errors.As(err, &compileErr):
		return report(s.out, ErrCodeCompile, ExitCommandError, "compile failed", err)
	case source.IsEvaluatorRequired(err):
		return report(s.out, ErrCodeEvaluatorRequired, ExitFailure,
			"filter needs local re-filtering; rerun with --approximate to accept the wider result", err)
	case source.IsBackendError(err):
		return report(s.out, ErrCodeBackend, ExitFailure, "backend request failed", err)
	default:
		return report(s.out, ErrCodeBackend, ExitFailure, "request failed", err)
	}
}

// report writes the error through out and returns the matching ExitError.
func report(out *OutputFormatter, code string, exit int, message string, err error) error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	_ = out.Error(code, msg, nil)
	return WrapExitError(exit, code+": "+message, err)
}

func newLogger(out *OutputFormatter) *slog.Logger {
	level := slog.LevelWarn
	if out.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(out.GetErrWriter(), &slog.HandlerOptions{Level: level}))
}
