package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

type stubProvider struct {
	name    string
	results []domain.SearchResult
	err     error
	calls   int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(_ context.Context, _ string) ([]domain.SearchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func stubResults(source string, n int) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.SearchResult{
			Source:  source,
			Title:   fmt.Sprintf("%s result %d", source, i),
			URL:     fmt.Sprintf("https://example.com/%s/%d", source, i),
			Snippet: "snippet",
		})
	}
	return out
}

func newTestClient(providers ...Provider) *Client {
	return NewClient(defaultMaxQueries, time.Millisecond, providers...)
}

func TestSerpAPISearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "quantum batteries", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "google", r.URL.Query().Get("engine"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"organic_results":[
			{"title":"First","link":"https://a.example","snippet":"one"},
			{"title":"Second","link":"https://b.example","snippet":"two"},
			{"title":"Third","link":"https://c.example","snippet":"three"},
			{"title":"Fourth","link":"https://d.example","snippet":"four"}
		]}`)
	}))
	defer srv.Close()

	p := NewSerpAPI("test-key")
	p.baseURL = srv.URL

	results, err := p.Search(context.Background(), "quantum batteries")
	require.NoError(t, err)
	require.Len(t, results, serpResultLimit)
	assert.Equal(t, "serpapi", results[0].Source)
	assert.Equal(t, "First", results[0].Title)
	assert.Equal(t, "https://a.example", results[0].URL)
	assert.Equal(t, "one", results[0].Snippet)
}

func TestSerpAPISearchErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		p := NewSerpAPI("")
		_, err := p.Search(context.Background(), "anything")
		require.Error(t, err)
	})

	t.Run("api error payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"error":"Invalid API key"}`)
		}))
		defer srv.Close()

		p := NewSerpAPI("bad-key")
		p.baseURL = srv.URL

		_, err := p.Search(context.Background(), "anything")
		require.ErrorContains(t, err, "Invalid API key")
	})

	t.Run("http status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		p := NewSerpAPI("test-key")
		p.baseURL = srv.URL

		_, err := p.Search(context.Background(), "anything")
		require.ErrorContains(t, err, "502")
	})
}

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <title>Quantum
      Battery   Charging</title>
    <summary>  We study charging
      protocols.  </summary>
    <published>2024-01-05T00:00:00Z</published>
    <author><name>A. Volta</name></author>
    <author><name>M. Faraday</name></author>
    <link href="http://arxiv.org/abs/2401.00001v1" rel="alternate" type="text/html"/>
    <link href="http://arxiv.org/pdf/2401.00001v1" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all:quantum batteries", r.URL.Query().Get("search_query"))
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		assert.Equal(t, "relevance", r.URL.Query().Get("sortBy"))

		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFeed)
	}))
	defer srv.Close()

	p := NewArxiv()
	p.baseURL = srv.URL

	results, err := p.Search(context.Background(), "quantum batteries")
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "arxiv", r.Source)
	assert.Equal(t, "Quantum Battery Charging", r.Title)
	assert.Equal(t, "We study charging protocols.", r.Snippet)
	assert.Equal(t, "http://arxiv.org/abs/2401.00001v1", r.URL)
	assert.Equal(t, []string{"A. Volta", "M. Faraday"}, r.Authors)
	assert.Equal(t, 2024, r.Published.Year())
}

func TestClientCachesRepeatedQueries(t *testing.T) {
	p := &stubProvider{name: "stub", results: stubResults("stub", 3)}
	c := newTestClient(p)

	first, err := c.Search(context.Background(), "Quantum Batteries")
	require.NoError(t, err)

	// Same query modulo case and surrounding space must not hit the provider.
	second, err := c.Search(context.Background(), "  quantum batteries ")
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, first, second)

	// Mutating a returned slice must not poison the cache.
	second[0].Title = "mutated"
	third, err := c.Search(context.Background(), "quantum batteries")
	require.NoError(t, err)
	assert.Equal(t, "stub result 0", third[0].Title)
}

func TestClientQueryBudget(t *testing.T) {
	p := &stubProvider{name: "stub", results: stubResults("stub", 3)}
	c := NewClient(1, time.Millisecond, p)

	_, err := c.Search(context.Background(), "first query")
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "second query")
	require.ErrorIs(t, err, domain.ErrSearchUnavailable)

	// Cached queries stay answerable after the budget is spent.
	cached, err := c.Search(context.Background(), "first query")
	require.NoError(t, err)
	assert.Len(t, cached, 3)
	assert.Equal(t, 1, p.calls)
}

func TestClientFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &stubProvider{name: "serpapi", err: errors.New("boom")}
	fallback := &stubProvider{name: "arxiv", results: stubResults("arxiv", 4)}
	c := newTestClient(primary, fallback)

	results, err := c.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Equal(t, "arxiv", results[0].Source)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestClientMergesThinResults(t *testing.T) {
	primary := &stubProvider{name: "serpapi", results: stubResults("serpapi", 2)}
	overlap := stubResults("arxiv", 2)
	overlap[0].URL = primary.results[0].URL // duplicate of a primary hit
	fallback := &stubProvider{name: "arxiv", results: overlap}
	c := newTestClient(primary, fallback)

	results, err := c.Search(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "serpapi", results[0].Source)
	assert.Equal(t, "serpapi", results[1].Source)
	assert.Equal(t, "arxiv", results[2].Source)
}

func TestClientSkipsFallbackWhenPrimaryIsFull(t *testing.T) {
	primary := &stubProvider{name: "serpapi", results: stubResults("serpapi", 3)}
	fallback := &stubProvider{name: "arxiv", results: stubResults("arxiv", 5)}
	c := newTestClient(primary, fallback)

	results, err := c.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, 0, fallback.calls)
}

func TestClientAllProvidersFail(t *testing.T) {
	a := &stubProvider{name: "serpapi", err: errors.New("down")}
	b := &stubProvider{name: "arxiv", err: errors.New("also down")}
	c := newTestClient(a, b)

	_, err := c.Search(context.Background(), "anything")
	require.ErrorIs(t, err, domain.ErrSearchUnavailable)
	assert.ErrorContains(t, err, "serpapi")
	assert.ErrorContains(t, err, "arxiv")

	// A failed lookup is not cached, so the next round may retry it.
	b.err = nil
	b.results = stubResults("arxiv", 2)
	results, err := c.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestClientEmptyQuery(t *testing.T) {
	c := newTestClient(&stubProvider{name: "stub"})
	_, err := c.Search(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
