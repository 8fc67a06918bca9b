// Character search HTTP handler.
//
// Exposes GET /api/characters/search, which fans a query out to the external
// catalog sources (AniList, TMDB, Open Library, Wikipedia) and returns the
// merged results. Source failures are tolerated; the endpoint degrades to
// whatever the remaining sources returned.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/persona-chat/go-persona-backend/internal/search"
	"github.com/persona-chat/go-persona-backend/internal/utils"
)

// SearchResponse wraps the merged external search results.
type SearchResponse struct {
	Query    string          `json:"query"`
	Category string          `json:"category" example:"all"`
	Count    int             `json:"count"`
	Results  []search.Result `json:"results"`
}

// SearchCharacters godoc
// @ID          searchCharacters
// @Summary     Search external character catalogs
// @Description Searches AniList, TMDB, Open Library, and Wikipedia for characters matching the query. The category parameter narrows the sources consulted; "all" queries every source and merges the results in source priority order.
// @Tags        Search
// @Produce     json
//
// @Param       q         query  string  true   "Search query"  example(sherlock)
// @Param       category  query  string  false  "Category: all, anime, movie, tv, bollywood, hollywood, book, celebrity"  default(all)
// @Param       limit     query  int     false  "Max results"   minimum(1) maximum(50) default(20)
//
// @Success     200  {object}  handlers.SearchResponse
// @Failure     400  {object}  handlers.ErrorResponse "Missing query"
// @Router      /api/characters/search [get]
func (h *Handlers) SearchCharacters(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q query parameter is required")
		return
	}

	category := strings.ToLower(strings.TrimSpace(c.Query("category")))
	if category == "" {
		category = "all"
	}
	limit := utils.AtoiDefault(c.Query("limit"), 20)
	if limit < 1 {
		limit = 20
	}
	limit = utils.ClampInt(limit, 1, 50)

	results := h.search.Search(c.Request.Context(), query, category, limit)
	if results == nil {
		results = []search.Result{}
	}
	ok(c, http.StatusOK, SearchResponse{
		Query:    query,
		Category: category,
		Count:    len(results),
		Results:  results,
	})
}
