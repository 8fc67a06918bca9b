package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/persona-chat/go-persona-backend/internal/domain"
)

const (
	defaultOpenLibraryURL = "https://openlibrary.org"
	openLibraryCoverBase  = "https://covers.openlibrary.org/b/id"
)

// OpenLibrarySource searches book titles via the Open Library search API.
type OpenLibrarySource struct {
	URL   string
	httpc *http.Client
}

// NewOpenLibrarySource builds the adapter with the shared outbound client.
func NewOpenLibrarySource(httpc *http.Client) *OpenLibrarySource {
	return &OpenLibrarySource{URL: defaultOpenLibraryURL, httpc: httpc}
}

// Name implements Source.
func (s *OpenLibrarySource) Name() string { return domain.SourceOpenLibrary }

type openLibraryResponse struct {
	Docs []struct {
		Key         string   `json:"key"`
		Title       string   `json:"title"`
		AuthorNames []string `json:"author_name"`
		FirstSent   []string `json:"first_sentence"`
		Subjects    []string `json:"subject"`
		CoverID     int      `json:"cover_i"`
	} `json:"docs"`
}

// Search implements Source.
func (s *OpenLibrarySource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", "key,title,author_name,first_sentence,subject,cover_i")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/search.json?"+q.Encode(), nil)
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
		return nil, fmt.Errorf("openlibrary: status %d", resp.StatusCode)
	}

	var decoded openLibraryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("openlibrary: %w", err)
	}

	out := make([]Result, 0, len(decoded.Docs))
	for _, d := range decoded.Docs {
		if d.Title == "" {
			continue
		}

		desc := ""
		if len(d.FirstSent) > 0 {
			desc = d.FirstSent[0]
		}
		if desc == "" && len(d.AuthorNames) > 0 {
			desc = fmt.Sprintf("A character from the book %q by %s.", d.Title, d.AuthorNames[0])
		}

		image := ""
		if d.CoverID != 0 {
			image = fmt.Sprintf("%s/%d-M.jpg", openLibraryCoverBase, d.CoverID)
		}

		subjects := d.Subjects
		if len(subjects) > 8 {
			subjects = subjects[:8]
		}
		genre := InferGenre(append([]string{d.Title, desc}, subjects...)...)

		out = append(out, Result{
			Name:        d.Title,
			Title:       d.Title,
			Description: truncate(desc),
			ImageURL:    image,
			Genre:       genre,
			Source:      domain.SourceOpenLibrary,
			ExternalID:  strings.TrimPrefix(d.Key, "/works/"),
		})
	}
	return out, nil
}
