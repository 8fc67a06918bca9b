package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/persona-chat/go-persona-backend/internal/domain"
)

const (
	defaultTMDBURL = "https://api.themoviedb.org/3"
	tmdbImageBase  = "https://image.tmdb.org/t/p/w500"
)

// tmdbGenreNames maps TMDB numeric genre ids to the app's coarse tags.
// Only the ids that translate cleanly are mapped; everything else falls
// through to keyword inference.
var tmdbGenreNames = map[int]string{
	28:    "action",  // Action
	12:    "action",  // Adventure
	35:    "comedy",  // Comedy
	18:    "drama",   // Drama
	14:    "fantasy", // Fantasy
	878:   "scifi",   // Science Fiction
	10765: "scifi",   // Sci-Fi & Fantasy (TV)
	10759: "action",  // Action & Adventure (TV)
}

// TMDBSource searches movies and TV via the TMDB multi-search endpoint.
// The adapter is disabled (returns no results) when no API key is set.
type TMDBSource struct {
	URL    string
	APIKey string
	httpc  *http.Client
}

// NewTMDBSource builds the adapter; an empty apiKey disables it.
func NewTMDBSource(apiKey string, httpc *http.Client) *TMDBSource {
	return &TMDBSource{URL: defaultTMDBURL, APIKey: apiKey, httpc: httpc}
}

// Name implements Source.
func (s *TMDBSource) Name() string { return domain.SourceTMDB }

// Enabled reports whether the adapter has credentials to operate.
func (s *TMDBSource) Enabled() bool { return s.APIKey != "" }

type tmdbResponse struct {
	Results []struct {
		ID           int    `json:"id"`
		MediaType    string `json:"media_type"`
		Title        string `json:"title"`          // movies
		Name         string `json:"name"`           // tv + people
		Overview     string `json:"overview"`
		PosterPath   string `json:"poster_path"`
		ProfilePath  string `json:"profile_path"`   // people
		GenreIDs     []int  `json:"genre_ids"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	} `json:"results"`
}

// Search implements Source.
func (s *TMDBSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if !s.Enabled() {
		return nil, nil
	}

	q := url.Values{}
	q.Set("api_key", s.APIKey)
	q.Set("query", query)
	q.Set("include_adult", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/search/multi?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tmdb: status %d", resp.StatusCode)
	}

	var decoded tmdbResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("tmdb: %w", err)
	}

	out := make([]Result, 0, limit)
	for _, r := range decoded.Results {
		if len(out) >= limit {
			break
		}
		name := r.Title
		if name == "" {
			name = r.Name
		}
		if name == "" {
			continue
		}

		genre := ""
		for _, id := range r.GenreIDs {
			if g, ok := tmdbGenreNames[id]; ok {
				genre = g
				break
			}
		}
		if genre == "" {
			genre = InferGenre(name, r.Overview)
		}

		image := r.PosterPath
		if image == "" {
			image = r.ProfilePath
		}
		if image != "" {
			image = tmdbImageBase + image
		}

		title := name
		if r.MediaType == "person" {
			title = "Known personality"
		}

		out = append(out, Result{
			Name:        name,
			Title:       title,
			Description: truncate(r.Overview),
			ImageURL:    image,
			Genre:       genre,
			Source:      domain.SourceTMDB,
			ExternalID:  strconv.Itoa(r.ID),
		})
	}
	return out, nil
}
