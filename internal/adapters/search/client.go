package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

// Provider is one literature source the client can consult.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

const (
	defaultMaxQueries  = 20
	defaultMinInterval = 2 * time.Second

	// thinResultThreshold is the result count under which the next
	// provider is also consulted and its results merged in.
	thinResultThreshold = 3
)

// Client implements domain.SearchClient over an ordered provider list.
// Providers are tried in order; a provider that fails or returns a thin
// result set hands over to the next one. One Client serves one research
// session, so the cache and the query budget are session-scoped.
type Client struct {
	providers []Provider
	limiter   *rate.Limiter

	mu         sync.Mutex
	cache      map[string][]domain.SearchResult
	queries    int
	maxQueries int
}

// NewClient builds a session-scoped search client. maxQueries bounds live
// lookups for the session and minInterval paces them; zero values select
// the defaults.
func NewClient(maxQueries int, minInterval time.Duration, providers ...Provider) *Client {
	if maxQueries <= 0 {
		maxQueries = defaultMaxQueries
	}
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}
	return &Client{
		providers:  providers,
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		cache:      make(map[string][]domain.SearchResult),
		maxQueries: maxQueries,
	}
}

// Search implements domain.SearchClient. Repeated queries are served from
// the session cache without touching the budget; live lookups are paced and
// counted against it.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrInvalidInput)
	}
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("%w: no search providers configured", domain.ErrSearchUnavailable)
	}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return copyResults(cached), nil
	}
	if c.queries >= c.maxQueries {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: query limit reached (%d)", domain.ErrSearchUnavailable, c.maxQueries)
	}
	c.queries++
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var merged []domain.SearchResult
	var errs []error
	for _, p := range c.providers {
		if len(merged) >= thinResultThreshold {
			break
		}
		res, err := p.Search(ctx, query)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		merged = mergeResults(merged, res)
	}

	if len(merged) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, errors.Join(errs...))
	}

	c.mu.Lock()
	c.cache[key] = copyResults(merged)
	c.mu.Unlock()

	return merged, nil
}

// mergeResults appends src onto dst, dropping entries whose URL is already
// present.
func mergeResults(dst, src []domain.SearchResult) []domain.SearchResult {
	seen := make(map[string]bool, len(dst))
	for _, r := range dst {
		seen[r.URL] = true
	}
	for _, r := range src {
		if r.URL != "" && seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		dst = append(dst, r)
	}
	return dst
}

func copyResults(src []domain.SearchResult) []domain.SearchResult {
	out := make([]domain.SearchResult, len(src))
	copy(out, src)
	for i := range out {
		out[i].Authors = append([]string(nil), out[i].Authors...)
	}
	return out
}
