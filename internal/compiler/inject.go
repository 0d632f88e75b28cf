package compiler

import "github.com/roach88/esfilter/internal/dsl"

// View parameter keys.
const (
	// ViewQuery adds backend-native text to the scored query.
	ViewQuery = "q"

	// ViewFilter adds backend-native text to the post filter.
	ViewFilter = "f"
)

// ViewParams carries raw backend query text supplied with one request.
// Only the ViewQuery and ViewFilter keys are read.
type ViewParams map[string]string

// Inject merges params into r and returns the merged result; r itself is
// not modified.
//
// A "q" fragment is ANDed onto the query. An "f" fragment replaces a bare
// match_all post filter and is ANDed onto anything else. Fragments are
// carried base64-encoded in wrapper nodes.
func Inject(r *Result, params ViewParams) *Result {
	out := *r
	out.Gaps = make([]Gap, len(r.Gaps))
	copy(out.Gaps, r.Gaps)

	if q, ok := params[ViewQuery]; ok && q != "" {
		out.Query = &dsl.Bool{Must: []dsl.Query{r.Query, dsl.NewWrapper(q)}}
	}

	if f, ok := params[ViewFilter]; ok && f != "" {
		w := dsl.NewWrapper(f)
		if dsl.IsMatchAll(r.PostFilter) {
			out.PostFilter = w
		} else {
			out.PostFilter = &dsl.Bool{Must: []dsl.Query{r.PostFilter, w}}
		}
	}

	return &out
}
