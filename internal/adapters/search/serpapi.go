package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

// serpResultLimit caps how many organic results one query may contribute.
const serpResultLimit = 3

// SerpAPI uses the SerpAPI Google engine. An API key is required.
type SerpAPI struct {
	APIKey  string
	client  *http.Client
	baseURL string
}

// NewSerpAPI constructs a SerpAPI search provider.
func NewSerpAPI(apiKey string) *SerpAPI {
	return NewSerpAPIWithClient(apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewSerpAPIWithClient constructs a SerpAPI search provider using the
// supplied HTTP client. This is useful for overriding the default timeout.
func NewSerpAPIWithClient(apiKey string, client *http.Client) *SerpAPI {
	return &SerpAPI{APIKey: apiKey, client: client, baseURL: "https://serpapi.com/search.json"}
}

func (s *SerpAPI) Name() string { return "serpapi" }

// Search executes one SerpAPI query and returns up to serpResultLimit
// organic results.
func (s *SerpAPI) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.New("serpapi: API key is missing")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.APIKey)
	params.Set("engine", "google")
	params.Set("num", fmt.Sprint(serpResultLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi http %d", resp.StatusCode)
	}

	var payload struct {
		Error          string `json:"error"`
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", payload.Error)
	}

	results := make([]domain.SearchResult, 0, len(payload.OrganicResults))
	for _, r := range payload.OrganicResults {
		results = append(results, domain.SearchResult{
			Source:  s.Name(),
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
		if len(results) >= serpResultLimit {
			break
		}
	}

	return results, nil
}
