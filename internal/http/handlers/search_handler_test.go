package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/persona-chat/go-persona-backend/internal/search"
)

func TestSearchCharacters(t *testing.T) {
	var gotQuery, gotCategory string
	var gotLimit int
	searcher := &fakeSearcher{
		searchFn: func(_ context.Context, query, category string, limit int) []search.Result {
			gotQuery, gotCategory, gotLimit = query, category, limit
			return []search.Result{
				{Name: "Sherlock Holmes", Title: "Sherlock Holmes", Source: "openlibrary", ExternalID: "OL123"},
			}
		},
	}
	r := newTestRouter(t, New(nil, nil, nil, searcher, nil), 0)

	w := doJSON(t, r, http.MethodGet, "/api/characters/search?q=sherlock&category=Book&limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	if gotQuery != "sherlock" || gotCategory != "book" || gotLimit != 5 {
		t.Fatalf("args not forwarded: q=%q category=%q limit=%d", gotQuery, gotCategory, gotLimit)
	}
	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 || resp.Results[0].Source != "openlibrary" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSearchCharacters_DefaultsAndValidation(t *testing.T) {
	searcher := &fakeSearcher{
		searchFn: func(_ context.Context, _, category string, limit int) []search.Result {
			if category != "all" {
				t.Fatalf("default category = %q", category)
			}
			if limit != 20 {
				t.Fatalf("default limit = %d", limit)
			}
			return nil
		},
	}
	r := newTestRouter(t, New(nil, nil, nil, searcher, nil), 0)

	w := doJSON(t, r, http.MethodGet, "/api/characters/search?q=tony", "")
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	// nil results serialize as an empty array, not null.
	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Results == nil {
		t.Fatalf("expected empty results array: %s", w.Body.String())
	}

	if w := doJSON(t, r, http.MethodGet, "/api/characters/search", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing q = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/characters/search?q=%20%20", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("blank q = %d", w.Code)
	}
}

func TestSearchCharacters_LimitClamp(t *testing.T) {
	var gotLimit int
	searcher := &fakeSearcher{
		searchFn: func(_ context.Context, _, _ string, limit int) []search.Result {
			gotLimit = limit
			return nil
		},
	}
	r := newTestRouter(t, New(nil, nil, nil, searcher, nil), 0)

	doJSON(t, r, http.MethodGet, "/api/characters/search?q=x&limit=500", "")
	if gotLimit != 50 {
		t.Fatalf("limit not capped: %d", gotLimit)
	}
	doJSON(t, r, http.MethodGet, "/api/characters/search?q=x&limit=-1", "")
	if gotLimit != 20 {
		t.Fatalf("negative limit default: %d", gotLimit)
	}
}
