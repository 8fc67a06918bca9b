// Character HTTP handlers.
//
// This file exposes REST endpoints for the character catalog and favorites:
//   - GET    /characters                 (list, genre filter, ETag support)
//   - POST   /characters                 (create; /characters/add is an alias)
//   - POST   /characters/from-external   (import a search result)
//   - GET    /characters/{id}            (fetch)
//   - PUT    /characters/{id}            (update)
//   - DELETE /characters/{id}            (delete)
//   - GET    /characters/my              (bearer; favorites list)
//   - POST   /characters/{id}/favorite   (bearer; favorite + greeting)
//   - DELETE /characters/{id}/favorite   (bearer; unfavorite)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/persona-chat/go-persona-backend/internal/repo"
	"github.com/persona-chat/go-persona-backend/internal/services"
	"github.com/persona-chat/go-persona-backend/internal/utils"
)

//
// DTOs
//

// CharacterRequest is the JSON payload for creating or updating a character.
// On update every field is optional; zero values leave the stored value
// untouched.
type CharacterRequest struct {
	Name             string   `json:"name" example:"Tony Stark"`
	Movie            string   `json:"movie" example:"Iron Man"`
	ChatStyle        string   `json:"chat_style" example:"witty and sarcastic"`
	ExampleResponses []string `json:"example_responses"`
	Genre            *string  `json:"genre" example:"scifi"`
	ImageURL         string   `json:"image_url"`
}

// ExternalCharacterRequest is the JSON payload for importing a character that
// came back from the external search endpoint.
type ExternalCharacterRequest struct {
	Name        string `json:"name" binding:"required" example:"sherlock holmes"`
	Title       string `json:"title" example:"Sherlock Holmes"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Genre       string `json:"genre" example:"drama"`
	Source      string `json:"source" example:"openlibrary"`
	ExternalID  string `json:"external_id"`
}

// FavoriteResponse carries the in-character greeting generated when a user
// favorites a character.
type FavoriteResponse struct {
	Message string `json:"message" example:"Hi, I'm Tony Stark! Great to have you here."`
}

//
// Handlers
//

// ListCharacters godoc
// @ID          listCharacters
// @Summary     List characters
// @Description Returns catalog characters with optional genre filtering and skip/limit paging. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Characters
// @Produce     json
//
// @Param       genre          query   string  false "Genre filter"                example(scifi)
// @Param       skip           query   int     false "Rows to skip"                minimum(0) default(0)
// @Param       limit          query   int     false "Max rows"                    minimum(1) maximum(100) default(100)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
//
// @Success     200  {array}   domain.Character
// @Header      200  {string}  ETag  "Weak ETag for current catalog"
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /characters [get]
func (h *Handlers) ListCharacters(c *gin.Context) {
	ctx := c.Request.Context()

	var genre *string
	if g := strings.TrimSpace(c.Query("genre")); g != "" {
		genre = &g
	}
	skip := utils.AtoiDefault(c.Query("skip"), 0)
	limit := utils.AtoiDefault(c.Query("limit"), 100)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.characters.(*services.CharacterService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.CharactersStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"characters:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.characters.List(ctx, genre, skip, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, items)
}

// GetCharacter godoc
// @ID          getCharacter
// @Summary     Fetch a character
// @Tags        Characters
// @Produce     json
//
// @Param       id  path  int  true  "Character ID"  minimum(1)
//
// @Success     200  {object}  domain.Character
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Character not found"
// @Router      /characters/{id} [get]
func (h *Handlers) GetCharacter(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	ch, err := h.characters.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrCharacterNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ch)
}

// CreateCharacter godoc
// @ID          createCharacter
// @Summary     Create a character
// @Description Adds a hand-entered character to the catalog. Name and movie are unique together.
// @Tags        Characters
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CharacterRequest  true  "Character payload"
//
// @Success     201  {object}  domain.Character
// @Failure     400  {object}  handlers.ErrorResponse "Missing name or movie"
// @Failure     409  {object}  handlers.ErrorResponse "Character already exists"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /characters [post]
func (h *Handlers) CreateCharacter(c *gin.Context) {
	var req CharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Movie) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and movie are required")
		return
	}

	ch, err := h.characters.Create(c.Request.Context(), services.CharacterInput{
		Name:             req.Name,
		Movie:            req.Movie,
		ChatStyle:        req.ChatStyle,
		ExampleResponses: req.ExampleResponses,
		Genre:            req.Genre,
		ImageURL:         req.ImageURL,
	})
	switch {
	case err == nil:
		ok(c, http.StatusCreated, ch)
	case errors.Is(err, services.ErrDuplicateCharacter):
		fail(c, http.StatusConflict, ErrCodeConflict, "character already exists")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
	}
}

// CreateCharacterFromExternal godoc
// @ID          createCharacterFromExternal
// @Summary     Import a character from search results
// @Description Converts an external search result into a catalog character, synthesizing a chat style and example responses from the description. Re-importing the same result returns the existing character.
// @Tags        Characters
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ExternalCharacterRequest  true  "Search result payload"
//
// @Success     201  {object}  domain.Character
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /characters/from-external [post]
func (h *Handlers) CreateCharacterFromExternal(c *gin.Context) {
	var req ExternalCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	ch, err := h.characters.CreateFromExternal(c.Request.Context(), services.ExternalCharacter{
		Name:        req.Name,
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Genre:       req.Genre,
		Source:      req.Source,
		ExternalID:  req.ExternalID,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, ch)
}

// UpdateCharacter godoc
// @ID          updateCharacter
// @Summary     Update a character
// @Description Replaces the provided fields of an existing character; omitted fields keep their stored values.
// @Tags        Characters
// @Accept      json
// @Produce     json
//
// @Param       id    path  int                        true  "Character ID"  minimum(1)
// @Param       body  body  handlers.CharacterRequest  true  "Fields to update"
//
// @Success     200  {object}  domain.Character
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Character not found"
// @Failure     409  {object}  handlers.ErrorResponse "Name and movie already taken"
// @Router      /characters/{id} [put]
func (h *Handlers) UpdateCharacter(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	var req CharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ch, err := h.characters.Update(c.Request.Context(), id, services.CharacterInput{
		Name:             req.Name,
		Movie:            req.Movie,
		ChatStyle:        req.ChatStyle,
		ExampleResponses: req.ExampleResponses,
		Genre:            req.Genre,
		ImageURL:         req.ImageURL,
	})
	switch {
	case err == nil:
		ok(c, http.StatusOK, ch)
	case errors.Is(err, services.ErrCharacterNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
	case errors.Is(err, services.ErrDuplicateCharacter):
		fail(c, http.StatusConflict, ErrCodeConflict, "character already exists")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// DeleteCharacter godoc
// @ID          deleteCharacter
// @Summary     Delete a character
// @Tags        Characters
//
// @Param       id  path  int  true  "Character ID"  minimum(1)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Character not found"
// @Router      /characters/{id} [delete]
func (h *Handlers) DeleteCharacter(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	err := h.characters.Delete(c.Request.Context(), id)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrCharacterNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// MyCharacters godoc
// @ID          myCharacters
// @Summary     List favorite characters
// @Description Returns the characters the authenticated user has favorited, newest favorite first.
// @Tags        Characters
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {array}   domain.Character
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /characters/my [get]
func (h *Handlers) MyCharacters(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}

	items, err := h.characters.Favorites(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, items)
}

// FavoriteCharacter godoc
// @ID          favoriteCharacter
// @Summary     Favorite a character
// @Description Marks the character as a favorite and returns a short in-character greeting.
// @Tags        Characters
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  int  true  "Character ID"  minimum(1)
//
// @Success     201  {object}  handlers.FavoriteResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Character not found"
// @Failure     409  {object}  handlers.ErrorResponse "Already favorited"
// @Router      /characters/{id}/favorite [post]
func (h *Handlers) FavoriteCharacter(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	greeting, err := h.characters.Favorite(c.Request.Context(), uid, id)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, FavoriteResponse{Message: greeting})
	case errors.Is(err, services.ErrCharacterNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
	case errors.Is(err, services.ErrDuplicateFavorite):
		fail(c, http.StatusConflict, ErrCodeConflict, "character already favorited")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// UnfavoriteCharacter godoc
// @ID          unfavoriteCharacter
// @Summary     Remove a favorite
// @Tags        Characters
// @Security    BearerAuth
//
// @Param       id  path  int  true  "Character ID"  minimum(1)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Favorite not found"
// @Router      /characters/{id}/favorite [delete]
func (h *Handlers) UnfavoriteCharacter(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}
	id, valid := pathID(c, "id")
	if !valid {
		return
	}

	err := h.characters.Unfavorite(c.Request.Context(), uid, id)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrFavoriteNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "favorite not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
