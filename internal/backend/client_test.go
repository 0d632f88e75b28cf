package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/esfilter/internal/dsl"
	"github.com/roach88/esfilter/internal/source"
	"github.com/roach88/esfilter/internal/testutil"
)

type captured struct {
	method   string
	path     string
	header   http.Header
	body     string
	encoding string
}

// server answers every request with status and reply, recording what it
// received.
func server(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.header = r.Header.Clone()
		got.encoding = r.Header.Get("Content-Encoding")

		var body io.Reader = r.Body
		if got.encoding == "gzip" {
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				t.Errorf("gzip reader: %v", err)
				return
			}
			body = zr
		}
		data, _ := io.ReadAll(body)
		got.body = string(data)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func request() *source.SearchRequest {
	return &source.SearchRequest{
		Index:      "gis",
		Query:      &dsl.MatchAll{},
		PostFilter: &dsl.Bool{Must: []dsl.Query{&dsl.MatchAll{}, &dsl.MatchAll{}}},
		Sort:       []source.SortKey{{Field: source.TiebreakerField, Order: source.Ascending}},
		Size:       10,
	}
}

const replyTotalObject = `{
	"took": 3,
	"hits": {
		"total": {"value": 2, "relation": "eq"},
		"hits": [
			{"_id": "a", "_score": 1.5, "_source": {"name": "A1", "lanes": 2}},
			{"_id": "b", "_score": 0.5, "_source": {"name": "B2"}}
		]
	}
}`

func TestSearch_DecodesResponse(t *testing.T) {
	srv, got := server(t, http.StatusOK, replyTotalObject)

	c, err := New(srv.URL)
	require.NoError(t, err)

	resp, err := c.Search(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/gis/_search", got.path)
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Empty(t, got.encoding)
	assert.Equal(t,
		`{"query":{"match_all":{}},"post_filter":{"bool":{"must":[{"match_all":{}},{"match_all":{}}]}},"sort":[{"_uid":{"order":"asc"}}],"size":10,"from":0}`,
		got.body)

	assert.Equal(t, int64(2), resp.Total)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, "a", resp.Hits[0].ID)
	assert.Equal(t, 1.5, resp.Hits[0].Score)
	assert.JSONEq(t, `{"name":"A1","lanes":2}`, string(resp.Hits[0].Source))
	assert.Equal(t, "b", resp.Hits[1].ID)
}

func TestSearch_NumericTotal(t *testing.T) {
	srv, _ := server(t, http.StatusOK, `{"hits":{"total":42,"hits":[]}}`)

	c, err := New(srv.URL)
	require.NoError(t, err)

	resp, err := c.Search(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.Total)
	assert.Empty(t, resp.Hits)
}

func TestSearch_DocTypeInPath(t *testing.T) {
	srv, got := server(t, http.StatusOK, `{"hits":{"total":0,"hits":[]}}`)

	c, err := New(srv.URL + "/prefix/")
	require.NoError(t, err)

	req := request()
	req.DocType = "road"
	_, err = c.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "/prefix/gis/road/_search", got.path)
}

func TestSearch_GzipRequest(t *testing.T) {
	srv, got := server(t, http.StatusOK, `{"hits":{"total":0,"hits":[]}}`)

	c, err := New(srv.URL, WithGzip(true), WithHeader("Authorization", "ApiKey abc"))
	require.NoError(t, err)

	_, err = c.Search(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "gzip", got.encoding)
	assert.Contains(t, got.body, `"size":10`)
	assert.Equal(t, "ApiKey abc", got.header.Get("Authorization"))
}

func TestSearch_GzipResponse(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_id":"z"}]}}`))
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	resp, err := c.Search(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "z", resp.Hits[0].ID)
}

func TestSearch_ErrorStatus(t *testing.T) {
	srv, _ := server(t, http.StatusBadRequest, `{"error":{"type":"parsing_exception"}}`)

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Search(context.Background(), request())
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.StatusCode)
	assert.Contains(t, be.Body, "parsing_exception")
}

func TestSearch_ErrorBodyTruncated(t *testing.T) {
	srv, _ := server(t, http.StatusInternalServerError, strings.Repeat("x", 2*maxErrorBody))

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Search(context.Background(), request())
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Len(t, be.Body, maxErrorBody)
}

func TestSearch_MalformedResponse(t *testing.T) {
	tests := []string{
		`not json`,
		`{"took":1}`,
		`{"hits":{"total":"many","hits":[]}}`,
	}
	for _, reply := range tests {
		t.Run(reply, func(t *testing.T) {
			srv, _ := server(t, http.StatusOK, reply)
			c, err := New(srv.URL)
			require.NoError(t, err)

			_, err = c.Search(context.Background(), request())
			assert.Error(t, err)
		})
	}
}

func TestSearch_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Search(ctx, request())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	_, err = New("://bad")
	assert.Error(t, err)
}

func TestSearch_WithSource(t *testing.T) {
	srv, _ := server(t, http.StatusOK, `{"hits":{"total":{"value":120},"hits":[]}}`)

	c, err := New(srv.URL)
	require.NoError(t, err)

	s := source.New(c, testutil.Roads())
	n, err := s.Count(context.Background(), source.Query{StartIndex: 100, MaxFeatures: 50})
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}
