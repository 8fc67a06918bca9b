package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/persona-chat/go-persona-backend/internal/domain"
)

const defaultAniListURL = "https://graphql.anilist.co"

// Character page query: name, image, description, and the first related work.
const aniListQuery = `
query ($search: String, $perPage: Int) {
  Page(perPage: $perPage) {
    characters(search: $search) {
      id
      name { full native }
      image { large medium }
      description(asHtml: false)
      media(perPage: 1) {
        nodes {
          title { romaji english native }
          genres
        }
      }
    }
  }
}`

// AniListSource searches anime characters via the AniList GraphQL API.
type AniListSource struct {
	URL   string
	httpc *http.Client
}

// NewAniListSource builds the adapter with the shared outbound client.
func NewAniListSource(httpc *http.Client) *AniListSource {
	return &AniListSource{URL: defaultAniListURL, httpc: httpc}
}

// Name implements Source.
func (s *AniListSource) Name() string { return domain.SourceAniList }

type aniListResponse struct {
	Data struct {
		Page struct {
			Characters []struct {
				ID   int `json:"id"`
				Name struct {
					Full   string `json:"full"`
					Native string `json:"native"`
				} `json:"name"`
				Image struct {
					Large  string `json:"large"`
					Medium string `json:"medium"`
				} `json:"image"`
				Description string `json:"description"`
				Media       struct {
					Nodes []struct {
						Title struct {
							Romaji  string `json:"romaji"`
							English string `json:"english"`
							Native  string `json:"native"`
						} `json:"title"`
						Genres []string `json:"genres"`
					} `json:"nodes"`
				} `json:"media"`
			} `json:"characters"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Search implements Source.
func (s *AniListSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	body, err := json.Marshal(map[string]any{
		"query": aniListQuery,
		"variables": map[string]any{
			"search":  query,
			"perPage": limit,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("anilist: status %d", resp.StatusCode)
	}

	var decoded aniListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("anilist: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("anilist: %s", decoded.Errors[0].Message)
	}

	out := make([]Result, 0, len(decoded.Data.Page.Characters))
	for _, ch := range decoded.Data.Page.Characters {
		name := ch.Name.Full
		if name == "" {
			name = ch.Name.Native
		}
		if name == "" {
			continue
		}

		var title string
		var genres []string
		if nodes := ch.Media.Nodes; len(nodes) > 0 {
			t := nodes[0].Title
			switch {
			case t.English != "":
				title = t.English
			case t.Romaji != "":
				title = t.Romaji
			default:
				title = t.Native
			}
			genres = nodes[0].Genres
		}

		image := ch.Image.Large
		if image == "" {
			image = ch.Image.Medium
		}

		genre := InferGenre(genres...)
		if genre == "" {
			genre = InferGenre(title, ch.Description)
		}

		out = append(out, Result{
			Name:        name,
			Title:       title,
			Description: truncate(ch.Description),
			ImageURL:    image,
			Genre:       genre,
			Source:      domain.SourceAniList,
			ExternalID:  strconv.Itoa(ch.ID),
		})
	}
	return out, nil
}
