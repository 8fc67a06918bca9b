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
	defaultWikipediaAPIURL  = "https://en.wikipedia.org/w/api.php"
	defaultWikipediaRESTURL = "https://en.wikipedia.org/api/rest_v1"
)

// WikipediaSource searches article titles and then resolves each hit's
// summary through the REST API. A failed summary lookup degrades to a
// snippet stub instead of failing the whole search.
type WikipediaSource struct {
	APIURL  string
	RESTURL string
	httpc   *http.Client
}

// NewWikipediaSource builds the adapter with the shared outbound client.
func NewWikipediaSource(httpc *http.Client) *WikipediaSource {
	return &WikipediaSource{
		APIURL:  defaultWikipediaAPIURL,
		RESTURL: defaultWikipediaRESTURL,
		httpc:   httpc,
	}
}

// Name implements Source.
func (s *WikipediaSource) Name() string { return domain.SourceWikipedia }

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			PageID  int    `json:"pageid"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type wikiSummaryResponse struct {
	Extract   string `json:"extract"`
	Thumbnail struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
}

// Search implements Source.
func (s *WikipediaSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", query)
	q.Set("srlimit", strconv.Itoa(limit))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.APIURL+"?"+q.Encode(), nil)
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
		return nil, fmt.Errorf("wikipedia: status %d", resp.StatusCode)
	}

	var decoded wikiSearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("wikipedia: %w", err)
	}

	out := make([]Result, 0, len(decoded.Query.Search))
	for _, hit := range decoded.Query.Search {
		if hit.Title == "" {
			continue
		}

		desc, image := s.summary(ctx, hit.Title)
		if desc == "" {
			// Summary endpoint failed; fall back to the search snippet.
			desc = stripTags(hit.Snippet)
		}

		out = append(out, Result{
			Name:        hit.Title,
			Title:       "Wikipedia",
			Description: truncate(desc),
			ImageURL:    image,
			Genre:       InferGenre(hit.Title, desc),
			Source:      domain.SourceWikipedia,
			ExternalID:  strconv.Itoa(hit.PageID),
		})
	}
	return out, nil
}

// summary fetches the REST page summary; failures return empty strings.
func (s *WikipediaSource) summary(ctx context.Context, title string) (extract, image string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.RESTURL+"/page/summary/"+url.PathEscape(title), nil)
	if err != nil {
		return "", ""
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ""
	}

	var decoded wikiSummaryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", ""
	}
	return decoded.Extract, decoded.Thumbnail.Source
}

// stripTags removes the <span> highlight markup MediaWiki embeds in snippets.
func stripTags(s string) string {
	out := make([]rune, 0, len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out = append(out, r)
		}
	}
	return string(out)
}
