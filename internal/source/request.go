package source

import (
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/roach88/esfilter/internal/compiler"
	"github.com/roach88/esfilter/internal/dsl"
	"github.com/roach88/esfilter/internal/filter"
)

// DefaultMaxFeatures is the window size used when a query asks for an
// unbounded number of features.
const DefaultMaxFeatures = 10000

// TiebreakerField is appended to every sort so that paging is stable.
const TiebreakerField = "_uid"

// SortOrder is a sort direction.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// SortBy orders results by one property. An empty Property sets the
// natural order, which is the direction of the tiebreaker.
type SortBy struct {
	Property string
	Order    SortOrder
}

// Query is one logical request against a layer.
type Query struct {
	// Filter selects features. Nil selects everything.
	Filter filter.Predicate

	Sort []SortBy

	// StartIndex is the offset of the first feature returned.
	StartIndex int

	// MaxFeatures bounds the window. Zero or negative means unbounded.
	MaxFeatures int

	// View carries raw backend query text for this request.
	View compiler.ViewParams
}

func (q Query) size() int {
	if q.MaxFeatures > 0 {
		return q.MaxFeatures
	}
	return DefaultMaxFeatures
}

func (q Query) from() int {
	if q.StartIndex > 0 {
		return q.StartIndex
	}
	return 0
}

func (q Query) predicate() filter.Predicate {
	if q.Filter == nil {
		return &filter.Include{}
	}
	return q.Filter
}

// SortKey is one entry of a request's sort clause.
type SortKey struct {
	Field string
	Order SortOrder
}

// SearchRequest is the backend request built from a compiled filter.
type SearchRequest struct {
	Index   string
	DocType string

	Query      dsl.Query
	PostFilter dsl.Query
	Sort       []SortKey
	Size       int
	From       int

	// TrackTotalHits asks the backend for an exact total rather than a
	// lower bound.
	TrackTotalHits bool
}

// BuildRequest assembles the backend request for q from its compiled
// filter. The scored query is the compiled query half; the post filter
// requires both halves.
func BuildRequest(index, docType string, q Query, r *compiler.Result) *SearchRequest {
	natural := Ascending
	sort := make([]SortKey, 0, len(q.Sort)+1)
	for _, s := range q.Sort {
		order := s.Order
		if order != Descending {
			order = Ascending
		}
		if s.Property == "" {
			natural = order
			continue
		}
		sort = append(sort, SortKey{Field: s.Property, Order: order})
	}
	sort = append(sort, SortKey{Field: TiebreakerField, Order: natural})

	return &SearchRequest{
		Index:      index,
		DocType:    docType,
		Query:      r.Query,
		PostFilter: &dsl.Bool{Must: []dsl.Query{r.Query, r.PostFilter}},
		Sort:       sort,
		Size:       q.size(),
		From:       q.from(),
	}
}

// Body renders the request as a _search body.
func (r *SearchRequest) Body() ([]byte, error) {
	a := arenaPool.Get()
	defer arenaPool.Put(a)

	body := a.NewObject()
	if r.Query != nil {
		q, err := dsl.Value(a, r.Query)
		if err != nil {
			return nil, fmt.Errorf("encode query: %w", err)
		}
		body.Set("query", q)
	}
	if r.PostFilter != nil {
		f, err := dsl.Value(a, r.PostFilter)
		if err != nil {
			return nil, fmt.Errorf("encode post_filter: %w", err)
		}
		body.Set("post_filter", f)
	}

	if len(r.Sort) > 0 {
		sort := a.NewArray()
		for i, k := range r.Sort {
			order := a.NewObject()
			order.Set("order", a.NewString(string(k.Order)))
			key := a.NewObject()
			key.Set(k.Field, order)
			sort.SetArrayItem(i, key)
		}
		body.Set("sort", sort)
	}

	body.Set("size", a.NewNumberInt(r.Size))
	body.Set("from", a.NewNumberInt(r.From))
	if r.TrackTotalHits {
		body.Set("track_total_hits", a.NewTrue())
	}

	return body.MarshalTo(nil), nil
}

var arenaPool fastjson.ArenaPool

// Hit is one document returned by the backend.
type Hit struct {
	ID     string
	Score  float64
	Source []byte
}

// SearchResponse is the part of a backend response the source reads.
type SearchResponse struct {
	Total int64
	Hits  []Hit
}
