// Package search aggregates character metadata from external catalogs
// (AniList, TMDB, Open Library, Wikipedia) behind one normalized result
// shape. Each source is its own adapter; the Aggregator dispatches by
// category, isolates per-source failures, and merges results.
package search

import "context"

// Description length cap applied by every adapter.
const maxDescriptionLen = 500

// Result is the normalized shape every source adapter produces.
type Result struct {
	Name        string `json:"name"`
	Title       string `json:"title"` // origin work (movie, show, book, page)
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Source      string `json:"source"`
	ExternalID  string `json:"external_id,omitempty"`
}

// Source is one external catalog adapter.
type Source interface {
	// Name returns the source tag recorded on results (e.g. "anilist").
	Name() string
	// Search returns up to limit normalized results for the query.
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// dedupeKey identifies a result across merges: external id when present,
// otherwise the name.
func (r Result) dedupeKey() string {
	if r.ExternalID != "" {
		return r.Source + "/" + r.ExternalID
	}
	return r.Source + "/" + r.Name
}

// truncate caps s at maxDescriptionLen runes.
func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxDescriptionLen {
		return s
	}
	return string(runes[:maxDescriptionLen])
}
