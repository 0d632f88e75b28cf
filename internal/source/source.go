// Package source runs compiled filters against a search backend.
//
// A Source serves one layer. Each Count or Features call compiles the
// query's filter afresh, builds one backend request and, when the filter
// was not fully supported, re-tests every fetched hit with the configured
// Evaluator. Calls share no per-request state and may run concurrently.
package source

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/esfilter/internal/compiler"
	"github.com/roach88/esfilter/internal/dsl"
	"github.com/roach88/esfilter/internal/filter"
	"github.com/roach88/esfilter/internal/schema"
	"github.com/roach88/esfilter/internal/store"
)

// Operation names recorded in the audit log.
const (
	OpCount    = "count"
	OpFeatures = "features"
)

// Backend executes search requests.
type Backend interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
}

// Evaluator re-tests a predicate against one fetched document.
type Evaluator interface {
	Evaluate(p filter.Predicate, hit Hit) (bool, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(p filter.Predicate, hit Hit) (bool, error)

func (f EvaluatorFunc) Evaluate(p filter.Predicate, hit Hit) (bool, error) {
	return f(p, hit)
}

// Advisory accepts every hit. It turns an approximated filter's superset
// into the answer, for callers that prefer over-inclusion to an error.
var Advisory = EvaluatorFunc(func(filter.Predicate, Hit) (bool, error) { return true, nil })

// Recorder receives one entry per request cycle.
type Recorder interface {
	Record(ctx context.Context, c store.Compilation) error
}

// Source serves one layer.
type Source struct {
	backend   Backend
	layer     schema.Layer
	evaluator Evaluator
	recorder  Recorder
	ids       IDGenerator
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Source.
type Option func(*Source)

// WithEvaluator sets the Evaluator used for partially supported filters.
func WithEvaluator(e Evaluator) Option {
	return func(s *Source) { s.evaluator = e }
}

// WithRecorder records every request cycle.
func WithRecorder(r Recorder) Option {
	return func(s *Source) { s.recorder = r }
}

// WithIDGenerator overrides the UUIDv7 request IDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Source) { s.ids = g }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithClock overrides the record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// New returns a Source for layer.
func New(backend Backend, layer schema.Layer, opts ...Option) *Source {
	s := &Source{
		backend: backend,
		layer:   layer,
		ids:     UUIDv7Generator{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Layer returns the layer s serves.
func (s *Source) Layer() schema.Layer {
	return s.layer
}

// cycle is one compile-and-execute pass.
type cycle struct {
	id     string
	op     string
	query  Query
	result *compiler.Result
	req    *SearchRequest
}

// Prepare compiles q and builds its request without contacting the backend.
func (s *Source) Prepare(q Query) (*compiler.Result, *SearchRequest, error) {
	c, err := s.prepare(OpFeatures, q)
	if err != nil {
		return nil, nil, err
	}
	return c.result, c.req, nil
}

func (s *Source) prepare(op string, q Query) (*cycle, error) {
	r, err := compiler.Compile(s.layer.Schema, q.predicate(), q.View)
	if err != nil {
		return nil, err
	}

	c := &cycle{
		id:     s.ids.Generate(),
		op:     op,
		query:  q,
		result: r,
		req:    BuildRequest(s.layer.Index, s.layer.DocType, q, r),
	}

	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("compiled filter",
			"request_id", c.id,
			"layer", s.layer.Name,
			"query", dsl.MustMarshal(r.Query),
			"post_filter", dsl.MustMarshal(r.PostFilter),
		)
	}
	if !r.FullySupported {
		s.logger.Info("filter is not fully supported; hits will be re-filtered locally",
			"request_id", c.id,
			"layer", s.layer.Name,
			"gaps", len(r.Gaps),
		)
	}
	return c, nil
}

// Count returns the number of features q selects within its window.
//
// For a fully supported filter this is the backend's total clamped to the
// window, max(0, min(total-offset, size)). Otherwise the window is fetched
// and its re-filtered hits are counted.
func (s *Source) Count(ctx context.Context, q Query) (int, error) {
	c, err := s.prepare(OpCount, q)
	if err != nil {
		return 0, err
	}

	if !c.result.FullySupported {
		hits, err := s.fetch(ctx, c)
		if err != nil {
			return 0, err
		}
		s.record(ctx, c, int64(len(hits)))
		return len(hits), nil
	}

	size, from := c.req.Size, c.req.From
	countReq := *c.req
	countReq.Size = 0
	countReq.From = 0
	countReq.Sort = nil
	countReq.TrackTotalHits = true

	resp, err := s.search(ctx, &countReq)
	if err != nil {
		return 0, err
	}

	n := clamp(resp.Total, from, size)
	s.record(ctx, c, int64(n))
	return n, nil
}

// Features returns the hits q selects, in sort order.
func (s *Source) Features(ctx context.Context, q Query) ([]Hit, error) {
	c, err := s.prepare(OpFeatures, q)
	if err != nil {
		return nil, err
	}

	hits, err := s.fetch(ctx, c)
	if err != nil {
		return nil, err
	}
	s.record(ctx, c, int64(len(hits)))
	return hits, nil
}

// fetch runs the cycle's request and re-filters when needed.
func (s *Source) fetch(ctx context.Context, c *cycle) ([]Hit, error) {
	if !c.result.FullySupported && s.evaluator == nil {
		return nil, &Error{
			Code:    ErrCodeEvaluatorRequired,
			Layer:   s.layer.Name,
			Message: "filter is not fully supported and no evaluator is configured",
		}
	}

	resp, err := s.search(ctx, c.req)
	if err != nil {
		return nil, err
	}
	if c.result.FullySupported {
		return resp.Hits, nil
	}

	p := c.query.predicate()
	kept := make([]Hit, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		ok, err := s.evaluator.Evaluate(p, h)
		if err != nil {
			return nil, &Error{Code: ErrCodeEvaluation, Layer: s.layer.Name, Message: "evaluate hit " + h.ID, Cause: err}
		}
		if ok {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

func (s *Source) search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	resp, err := s.backend.Search(ctx, req)
	if err != nil {
		return nil, &Error{Code: ErrCodeBackend, Layer: s.layer.Name, Message: "search failed", Cause: err}
	}
	return resp, nil
}

// record writes the cycle to the recorder. Failures are logged and do not
// fail the request.
func (s *Source) record(ctx context.Context, c *cycle, hits int64) {
	if s.recorder == nil {
		return
	}

	fp, err := dsl.Fingerprint(c.result.Query, c.result.PostFilter)
	if err != nil {
		s.logger.Warn("fingerprint failed", "request_id", c.id, "error", err)
		return
	}

	entry := store.Compilation{
		ID:             c.id,
		Layer:          s.layer.Name,
		Operation:      c.op,
		Fingerprint:    fp,
		Query:          dsl.MustMarshal(c.result.Query),
		PostFilter:     dsl.MustMarshal(c.result.PostFilter),
		FullySupported: c.result.FullySupported,
		Gaps:           c.result.Gaps,
		Hits:           hits,
		CreatedAt:      s.now(),
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Warn("record compilation failed", "request_id", c.id, "error", err)
	}
}

func clamp(total int64, from, size int) int {
	n := total - int64(from)
	if n > int64(size) {
		n = int64(size)
	}
	if n < 0 {
		n = 0
	}
	return int(n)
}
