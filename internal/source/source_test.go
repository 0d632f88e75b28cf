package source

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/esfilter/internal/dsl"
	"github.com/roach88/esfilter/internal/filter"
	"github.com/roach88/esfilter/internal/store"
	"github.com/roach88/esfilter/internal/testutil"
)

var roads = testutil.Roads()

// fakeBackend returns a canned response and remembers every request.
type fakeBackend struct {
	mu       sync.Mutex
	requests []*SearchRequest
	resp     *SearchResponse
	err      error
}

func (b *fakeBackend) Search(_ context.Context, req *SearchRequest) (*SearchResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, b.err
	}
	return b.resp, nil
}

func (b *fakeBackend) last(t *testing.T) *SearchRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.requests)
	return b.requests[len(b.requests)-1]
}

type memRecorder struct {
	mu      sync.Mutex
	entries []store.Compilation
	err     error
}

func (r *memRecorder) Record(_ context.Context, c store.Compilation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, c)
	return r.err
}

func hits(ids ...string) []Hit {
	out := make([]Hit, len(ids))
	for i, id := range ids {
		out[i] = Hit{ID: id, Score: 1, Source: []byte(`{}`)}
	}
	return out
}

// partial has no native form and always needs re-evaluation.
var partial = &filter.Like{Property: "lanes", Pattern: "2*"}

func TestCount_Clamp(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		from  int
		size  int
		want  int
	}{
		{"window smaller than total", 100, 10, 20, 20},
		{"tail of results", 25, 10, 20, 15},
		{"offset past end", 5, 10, 20, 0},
		{"unbounded window", 20000, 0, 0, DefaultMaxFeatures},
		{"unbounded small total", 7, 0, 0, 7},
		{"empty", 0, 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{resp: &SearchResponse{Total: tt.total}}
			s := New(b, roads)

			n, err := s.Count(context.Background(), Query{StartIndex: tt.from, MaxFeatures: tt.size})
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			req := b.last(t)
			assert.Equal(t, 0, req.Size)
			assert.True(t, req.TrackTotalHits)
		})
	}
}

func TestCount_PartialFilterCountsRefilteredHits(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{Total: 99, Hits: hits("a", "b", "c", "d")}}

	keepEven := EvaluatorFunc(func(_ filter.Predicate, h Hit) (bool, error) {
		return h.ID == "b" || h.ID == "d", nil
	})
	s := New(b, roads, WithEvaluator(keepEven))

	n, err := s.Count(context.Background(), Query{Filter: partial})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The full window is fetched rather than the native total trusted.
	assert.Equal(t, DefaultMaxFeatures, b.last(t).Size)
}

func TestFeatures_PartialFilterWithoutEvaluator(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{Hits: hits("a")}}
	s := New(b, roads)

	_, err := s.Features(context.Background(), Query{Filter: partial})
	require.Error(t, err)
	assert.True(t, IsEvaluatorRequired(err))
	assert.False(t, IsBackendError(err))
	assert.Empty(t, b.requests)

	_, err = s.Count(context.Background(), Query{Filter: partial})
	assert.True(t, IsEvaluatorRequired(err))
}

func TestFeatures_EvaluatorSeesOriginalPredicate(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{Hits: hits("a", "b")}}

	var seen []filter.Predicate
	s := New(b, roads, WithEvaluator(EvaluatorFunc(func(p filter.Predicate, _ Hit) (bool, error) {
		seen = append(seen, p)
		return true, nil
	})))

	got, err := s.Features(context.Background(), Query{Filter: partial})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, seen, 2)
	assert.Same(t, partial, seen[0])
}

func TestFeatures_EvaluatorError(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{Hits: hits("a")}}
	s := New(b, roads, WithEvaluator(EvaluatorFunc(func(filter.Predicate, Hit) (bool, error) {
		return false, errors.New("bad document")
	})))

	_, err := s.Features(context.Background(), Query{Filter: partial})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeEvaluation, se.Code)
}

func TestFeatures_FullySupportedSkipsEvaluator(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{Total: 2, Hits: hits("a", "b")}}
	s := New(b, roads, WithEvaluator(EvaluatorFunc(func(filter.Predicate, Hit) (bool, error) {
		t.Error("evaluator called for a fully supported filter")
		return false, nil
	})))

	got, err := s.Features(context.Background(), Query{Filter: filter.Cmp("name", filter.OpEqual, "A1")})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearch_BackendErrorIsNotUnsupported(t *testing.T) {
	cause := errors.New("connection refused")
	b := &fakeBackend{err: cause}
	s := New(b, roads, WithEvaluator(Advisory))

	_, err := s.Count(context.Background(), Query{})
	require.Error(t, err)
	assert.True(t, IsBackendError(err))
	assert.ErrorIs(t, err, cause)

	_, err = s.Features(context.Background(), Query{Filter: partial})
	assert.True(t, IsBackendError(err))
}

func TestCompileErrorsPropagate(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{}}
	s := New(b, roads)

	_, err := s.Count(context.Background(), Query{Filter: filter.Cmp("lanes", filter.OpEqual, "two")})
	require.Error(t, err)
	assert.False(t, IsBackendError(err))
	assert.Empty(t, b.requests)
}

func TestFeatures_RequestShape(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{}}
	s := New(b, roads)

	_, err := s.Features(context.Background(), Query{
		Filter:      filter.Cmp("name", filter.OpEqual, "A1"),
		Sort:        []SortBy{{Property: "lanes", Order: Descending}},
		StartIndex:  5,
		MaxFeatures: 50,
	})
	require.NoError(t, err)

	req := b.last(t)
	assert.Equal(t, "gis", req.Index)
	assert.Equal(t, "road", req.DocType)
	assert.Equal(t, 50, req.Size)
	assert.Equal(t, 5, req.From)
	assert.Equal(t, []SortKey{{"lanes", Descending}, {TiebreakerField, Ascending}}, req.Sort)
	assert.Equal(t, `{"term":{"name":"A1"}}`, dsl.MustMarshal(req.Query))
	assert.Equal(t, `{"bool":{"must":[{"term":{"name":"A1"}},{"term":{"name":"A1"}}]}}`, dsl.MustMarshal(req.PostFilter))
}

func TestRecorder(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{Total: 3, Hits: hits("a", "b", "c")}}
	rec := &memRecorder{}
	at := time.UnixMilli(1_700_000_000_000)
	clock := testutil.NewStepClock(at, time.Second)

	s := New(b, roads,
		WithRecorder(rec),
		WithEvaluator(Advisory),
		WithIDGenerator(NewFixedGenerator("req-1", "req-2")),
		WithClock(clock.Now),
	)

	_, err := s.Count(context.Background(), Query{})
	require.NoError(t, err)
	_, err = s.Features(context.Background(), Query{Filter: partial})
	require.NoError(t, err)

	require.Len(t, rec.entries, 2)

	first := rec.entries[0]
	assert.Equal(t, "req-1", first.ID)
	assert.Equal(t, "roads", first.Layer)
	assert.Equal(t, OpCount, first.Operation)
	assert.True(t, first.FullySupported)
	assert.Equal(t, int64(3), first.Hits)
	assert.Equal(t, `{"match_all":{}}`, first.Query)
	assert.Equal(t, at, first.CreatedAt)

	fp, err := dsl.Fingerprint(&dsl.MatchAll{}, &dsl.MatchAll{})
	require.NoError(t, err)
	assert.Equal(t, fp, first.Fingerprint)

	second := rec.entries[1]
	assert.Equal(t, "req-2", second.ID)
	assert.Equal(t, OpFeatures, second.Operation)
	assert.Equal(t, at.Add(time.Second), second.CreatedAt)
	assert.False(t, second.FullySupported)
	require.Len(t, second.Gaps, 1)
	assert.Equal(t, "like", second.Gaps[0].Node)
}

func TestRecorder_StoreKeepsFirstOfDuplicateIDs(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	b := &fakeBackend{resp: &SearchResponse{Total: 5}}
	s := New(b, roads, WithRecorder(st), WithIDGenerator(testutil.NewConstantIDs("dup")))

	_, err = s.Count(context.Background(), Query{})
	require.NoError(t, err)
	_, err = s.Count(context.Background(), Query{Filter: filter.Cmp("name", filter.OpEqual, "A1")})
	require.NoError(t, err)

	entries, err := st.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dup", entries[0].ID)
	assert.Equal(t, `{"match_all":{}}`, entries[0].Query)
	assert.Equal(t, int64(5), entries[0].Hits)
}

func TestRecorderFailureDoesNotFailRequest(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{Total: 1}}
	rec := &memRecorder{err: errors.New("disk full")}
	s := New(b, roads, WithRecorder(rec))

	n, err := s.Count(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, rec.entries, 1)
}

func TestConcurrentCountAndFeatures(t *testing.T) {
	b := &fakeBackend{resp: &SearchResponse{Total: 4, Hits: hits("a", "b", "c", "d")}}
	s := New(b, roads, WithEvaluator(EvaluatorFunc(func(_ filter.Predicate, h Hit) (bool, error) {
		return h.ID == "a", nil
	})))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n, err := s.Count(context.Background(), Query{Filter: filter.Cmp("name", filter.OpEqual, "A1")})
			assert.NoError(t, err)
			assert.Equal(t, 4, n)
		}()
		go func() {
			defer wg.Done()
			got, err := s.Features(context.Background(), Query{Filter: partial})
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()
}

func TestPrepare(t *testing.T) {
	s := New(&fakeBackend{}, roads)

	r, req, err := s.Prepare(Query{Filter: partial})
	require.NoError(t, err)
	assert.False(t, r.FullySupported)
	assert.Equal(t, DefaultMaxFeatures, req.Size)
}
