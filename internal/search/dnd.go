package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultDnDURL = "https://www.dnd5eapi.co/api"

// ErrRaceNotFound is returned when the reference API has no such race.
var ErrRaceNotFound = errors.New("race not found")

// DnDClient reads race data from the D&D 5e reference API. It feeds the
// character generator rather than the search aggregator, so it is not a
// Source.
type DnDClient struct {
	URL   string
	httpc *http.Client
}

// NewDnDClient builds the client with the shared outbound client.
func NewDnDClient(httpc *http.Client) *DnDClient {
	return &DnDClient{URL: defaultDnDURL, httpc: httpc}
}

// RaceRef is one entry of the race index.
type RaceRef struct {
	Index string `json:"index"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// RaceTrait names one racial trait.
type RaceTrait struct {
	Index string `json:"index"`
	Name  string `json:"name"`
}

// RaceDetail is the subset of race data the generator uses.
type RaceDetail struct {
	Index           string      `json:"index"`
	Name            string      `json:"name"`
	Age             string      `json:"age"`
	Alignment       string      `json:"alignment"`
	Size            string      `json:"size"`
	SizeDescription string      `json:"size_description"`
	Speed           int         `json:"speed"`
	Traits          []RaceTrait `json:"traits"`
}

type raceIndexResponse struct {
	Count   int       `json:"count"`
	Results []RaceRef `json:"results"`
}

// Races returns the full race index.
func (c *DnDClient) Races(ctx context.Context) ([]RaceRef, error) {
	var decoded raceIndexResponse
	if err := c.get(ctx, c.URL+"/races", &decoded); err != nil {
		return nil, err
	}
	return decoded.Results, nil
}

// Race returns the details for one race. The index is matched
// case-insensitively; unknown races map to ErrRaceNotFound.
func (c *DnDClient) Race(ctx context.Context, race string) (*RaceDetail, error) {
	race = strings.ToLower(strings.TrimSpace(race))
	if race == "" {
		return nil, ErrRaceNotFound
	}
	var decoded RaceDetail
	if err := c.get(ctx, c.URL+"/races/"+url.PathEscape(race), &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

func (c *DnDClient) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrRaceNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dnd5e: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("dnd5e: %w", err)
	}
	return nil
}
