// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package openalex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/proxima/internal/httputil"
	"github.com/pdiddy/proxima/internal/textnorm"
	"github.com/pdiddy/proxima/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const sampleResponse = `{
  "meta": {"count": 2, "per_page": 30, "page": 1},
  "results": [
    {
      "id": "https://openalex.org/W1",
      "display_name": "Sparse Attention",
      "doi": "https://doi.org/10.1000/sparse",
      "publication_year": 2021,
      "abstract_inverted_index": {"hello": [0], "world": [1]},
      "authorships": [{"author": {"display_name": "Ada Lovelace"}}, {"author": {"display_name": ""}}],
      "concepts": [{"id": "C1", "display_name": "Machine learning"}, {"display_name": "Attention"}],
      "topics": [{"display_name": "Transformers"}, {"display_name": "Efficient inference"}],
      "cited_by_count": 42,
      "referenced_works": ["https://openalex.org/W9", "https://openalex.org/W8"],
      "relevance_score": 12.5,
      "primary_location": {"source": {"display_name": "NeurIPS", "url": "https://neurips.cc"}},
      "best_oa_location": {"url": "https://arxiv.org/abs/1"},
      "open_access": {"is_oa": true, "oa_status": "green"}
    },
    {
      "id": "https://openalex.org/W2",
      "title": "Fallback Title",
      "abstract": "Plain abstract text.",
      "host_venue": {"display_name": "Journal of Tests", "url": "https://jot.example"}
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	logger := zaptest.NewLogger(t)
	return New(
		WithBaseURL(ts.URL),
		WithMailto("team@example.org"),
		WithUserAgent("proxima-test"),
		WithLogger(logger),
		WithRetrier(httputil.NewRetrier(ts.Client(), 2, logger)),
	)
}

func TestSearch_ParsesWorks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proxima-test", r.Header.Get("User-Agent"))
		fmt.Fprint(w, sampleResponse)
	})

	works, err := c.Search(context.Background(), types.SearchRequest{Query: "sparse attention"})
	require.NoError(t, err)
	require.Len(t, works, 2)

	w := works[0]
	assert.Equal(t, "https://openalex.org/W1", w.ID)
	assert.Equal(t, "W1", w.ShortID())
	assert.Equal(t, "Sparse Attention", w.Title)
	assert.Equal(t, "hello world", w.Abstract)
	assert.Equal(t, "10.1000/sparse", w.DOI)
	assert.Equal(t, 2021, w.Year)
	assert.Equal(t, []string{"Ada Lovelace"}, w.Authors)
	assert.Equal(t, []string{"Machine learning", "Attention"}, w.Concepts)
	assert.Equal(t, []string{"Transformers", "Efficient inference"}, w.Topics)
	assert.Equal(t, 42, w.CitedByCount)
	assert.Equal(t, 2, w.ReferencedWorksCount)
	assert.InDelta(t, 12.5, w.RelevanceScore, 1e-9)
	assert.Equal(t, "NeurIPS", w.Venue)
	assert.Equal(t, "https://arxiv.org/abs/1", w.URL)
	assert.Equal(t, types.OpenAccess{IsOA: true, Status: "green", URL: "https://arxiv.org/abs/1"}, w.OpenAccess)

	w = works[1]
	assert.Equal(t, "Fallback Title", w.Title)
	assert.Equal(t, "Plain abstract text.", w.Abstract)
	assert.Equal(t, "Journal of Tests", w.Venue)
	assert.Equal(t, "https://jot.example", w.URL)
}

func TestSearch_KeepsAllConcepts(t *testing.T) {
	var names, entries []string
	for i := 0; i < 15; i++ {
		name := fmt.Sprintf("Concept %c", 'A'+i)
		names = append(names, name)
		entries = append(entries, fmt.Sprintf(`{"id": "C%d", "display_name": %q}`, i, name))
	}
	body := `{"results": [{"id": "https://openalex.org/W7", "title": "Many concepts", "concepts": [` +
		strings.Join(entries, ",") + `]}]}`

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	})

	works, err := c.Search(context.Background(), types.SearchRequest{Query: "x"})
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, names, works[0].Concepts)
	assert.Equal(t, strings.Join(names, "; "), works[0].ConceptText())
}

func TestSearch_QueryParameters(t *testing.T) {
	tests := []struct {
		name string
		req  types.SearchRequest
		want map[string]string
	}{
		{
			name: "defaults",
			req:  types.SearchRequest{Query: "  graph networks "},
			want: map[string]string{
				"search":   "graph networks",
				"filter":   "language:en,has_abstract:true",
				"per_page": "30",
				"sort":     "relevance_score:desc",
				"mailto":   "team@example.org",
			},
		},
		{
			name: "date bounds and concepts",
			req: types.SearchRequest{
				Query:    "folding",
				PerPage:  50,
				From:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
				To:       time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC),
				Concepts: []string{"C41008148", "C154945302"},
			},
			want: map[string]string{
				"filter":   "language:en,has_abstract:true,from_publication_date:2020-01-01,to_publication_date:2022-12-31,concepts.id:C41008148|C154945302",
				"per_page": "50",
			},
		},
		{
			name: "per page clamped",
			req:  types.SearchRequest{Query: "x", PerPage: 1000},
			want: map[string]string{"per_page": "200"},
		},
		{
			name: "custom sort",
			req:  types.SearchRequest{Query: "x", Sort: "cited_by_count:desc"},
			want: map[string]string{"sort": "cited_by_count:desc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				got = map[string]string{}
				for k := range r.URL.Query() {
					got[k] = r.URL.Query().Get(k)
				}
				fmt.Fprint(w, `{"results": []}`)
			})

			works, err := c.Search(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Empty(t, works)
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], "param %s", k)
			}
		})
	}
}

func TestSearch_EmptyQueryOmitsSearchParam(t *testing.T) {
	var hasSearch bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasSearch = r.URL.Query()["search"]
		fmt.Fprint(w, `{"results": []}`)
	})

	_, err := c.Search(context.Background(), types.SearchRequest{})
	require.NoError(t, err)
	assert.False(t, hasSearch)
}

func TestSearch_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "invalid filter")
	})

	_, err := c.Search(context.Background(), types.SearchRequest{Query: "x"})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Error(), "invalid filter")
}

func TestSearch_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, sampleResponse)
	})

	works, err := c.Search(context.Background(), types.SearchRequest{Query: "x"})
	require.NoError(t, err)
	assert.Len(t, works, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSearch_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results": [`)
	})

	_, err := c.Search(context.Background(), types.SearchRequest{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing OpenAlex response")
}

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{"nil map", nil, ""},
		{"empty map", map[string][]int{}, ""},
		{"two words", map[string][]int{"hello": {0}, "world": {1}}, "hello world"},
		{"repeated word", map[string][]int{"the": {0, 3}, "cat": {1}, "saw": {2}, "dog": {4}}, "the cat saw the dog"},
		{"out of order positions", map[string][]int{"c": {2}, "a": {0}, "b": {1}}, "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReconstructAbstract(tt.index))
		})
	}
}

func TestReconstructAbstract_Normalizes(t *testing.T) {
	text := ReconstructAbstract(map[string][]int{"hello": {0}, "world": {1}})
	assert.Equal(t, "hello world", textnorm.Normalize(text))
}
