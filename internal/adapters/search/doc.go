// Package search provides the literature lookup used during a research
// session.
//
// Available providers:
//
//   - SerpAPI: general web results, requires an API key
//   - Arxiv: academic preprints, no key required (Atom feed of export.arxiv.org)
//
// Client composes the providers into a single domain.SearchClient with
// caching, pacing, and a per-session query budget. The general web provider
// is consulted first when a key is configured; the academic archive serves
// as the fallback and enriches thin result sets.
package search
