package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

// arxivResultLimit caps how many feed entries one query may contribute.
const arxivResultLimit = 5

// Arxiv queries the arXiv Atom API. No key is required.
type Arxiv struct {
	client  *http.Client
	baseURL string
}

// NewArxiv creates an arXiv provider with a modest timeout.
func NewArxiv() *Arxiv {
	return NewArxivWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewArxivWithClient creates an arXiv provider using the supplied HTTP
// client. This is useful for overriding the default timeout.
func NewArxivWithClient(client *http.Client) *Arxiv {
	return &Arxiv{client: client, baseURL: "http://export.arxiv.org/api/query"}
}

func (a *Arxiv) Name() string { return "arxiv" }

// Search runs one relevance-sorted query against the arXiv export API and
// parses the Atom feed it returns.
func (a *Arxiv) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprint(arxivResultLimit))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv http %d", resp.StatusCode)
	}

	var feed struct {
		Entries []struct {
			ID        string `xml:"id"`
			Title     string `xml:"title"`
			Summary   string `xml:"summary"`
			Published string `xml:"published"`
			Authors   []struct {
				Name string `xml:"name"`
			} `xml:"author"`
			Links []struct {
				Href string `xml:"href,attr"`
				Rel  string `xml:"rel,attr"`
			} `xml:"link"`
		} `xml:"entry"`
	}

	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("arxiv feed decode: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		r := domain.SearchResult{
			Source:  a.Name(),
			Title:   collapseWhitespace(e.Title),
			URL:     e.ID,
			Snippet: collapseWhitespace(e.Summary),
		}
		for _, l := range e.Links {
			if l.Rel == "alternate" && l.Href != "" {
				r.URL = l.Href
				break
			}
		}
		for _, au := range e.Authors {
			if name := strings.TrimSpace(au.Name); name != "" {
				r.Authors = append(r.Authors, name)
			}
		}
		if ts, err := time.Parse(time.RFC3339, e.Published); err == nil {
			r.Published = ts
		}
		results = append(results, r)
		if len(results) >= arxivResultLimit {
			break
		}
	}

	return results, nil
}

// collapseWhitespace flattens the newline-indented text blocks the arXiv
// feed wraps titles and abstracts in.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
