package search

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/persona-chat/go-persona-backend/internal/config"
)

// Category names accepted by Search. Unknown categories fall through to
// Wikipedia.
const (
	CategoryAll   = "all"
	CategoryAnime = "anime"
	CategoryMovie = "movie"
	CategoryTV    = "tv"
	CategoryBook  = "book"
)

// Aggregator fans a query out to the external catalogs and merges results.
// Per-source failures never fail the whole search: a source that errors
// contributes nothing and is logged.
type Aggregator struct {
	anilist     *AniListSource
	tmdb        *TMDBSource
	openlibrary *OpenLibrarySource
	wikipedia   *WikipediaSource
	timeout     time.Duration
}

// NewAggregator wires all four source adapters around one outbound client
// carrying the configured per-call timeout.
func NewAggregator(cfg config.SearchConfig) *Aggregator {
	httpc := &http.Client{Timeout: cfg.Timeout}
	return &Aggregator{
		anilist:     NewAniListSource(httpc),
		tmdb:        NewTMDBSource(cfg.TMDBAPIKey, httpc),
		openlibrary: NewOpenLibrarySource(httpc),
		wikipedia:   NewWikipediaSource(httpc),
		timeout:     cfg.Timeout,
	}
}

// Search dispatches by category:
//
//	anime                       -> AniList only
//	movie, tv, bollywood,
//	hollywood                   -> TMDB, Wikipedia when TMDB returns nothing
//	book                        -> Open Library, Wikipedia when empty
//	all                         -> every source concurrently, merged in the
//	                               fixed order anime, movie, book, wikipedia
//	anything else               -> Wikipedia
//
// Results are deduplicated by (source, external id or name), keeping the
// first occurrence, and truncated to limit.
func (a *Aggregator) Search(ctx context.Context, query, category string, limit int) []Result {
	if limit <= 0 {
		limit = 10
	}

	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryAnime:
		return capResults(a.run(ctx, a.anilist, query, limit), limit)
	case CategoryMovie, CategoryTV, "bollywood", "hollywood":
		res := a.run(ctx, a.tmdb, query, limit)
		if len(res) == 0 {
			res = a.run(ctx, a.wikipedia, query, limit)
		}
		return capResults(res, limit)
	case CategoryBook:
		res := a.run(ctx, a.openlibrary, query, limit)
		if len(res) == 0 {
			res = a.run(ctx, a.wikipedia, query, limit)
		}
		return capResults(res, limit)
	case CategoryAll:
		return a.searchAll(ctx, query, limit)
	default:
		return capResults(a.run(ctx, a.wikipedia, query, limit), limit)
	}
}

// searchAll queries every source concurrently and merges in priority order.
func (a *Aggregator) searchAll(ctx context.Context, query string, limit int) []Result {
	sources := []Source{a.anilist, a.tmdb, a.openlibrary, a.wikipedia}
	buckets := make([][]Result, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			buckets[i] = a.run(ctx, src, query, limit)
		}(i, src)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	merged := make([]Result, 0, limit)
	for _, bucket := range buckets {
		for _, r := range bucket {
			key := r.dedupeKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
			if len(merged) >= limit {
				return merged
			}
		}
	}
	return merged
}

// run executes a single source with its own deadline and swallows its error.
func (a *Aggregator) run(ctx context.Context, src Source, query string, limit int) []Result {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := src.Search(cctx, query, limit)
	if err != nil {
		log.Warn().Err(err).Str("source", src.Name()).Str("query", query).
			Msg("character source failed")
		return nil
	}
	return res
}

func capResults(res []Result, limit int) []Result {
	if len(res) > limit {
		return res[:limit]
	}
	return res
}
