// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Business rules live in the
// services package; persistence lives in repo.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/http/middleware"
	"github.com/persona-chat/go-persona-backend/internal/search"
	"github.com/persona-chat/go-persona-backend/internal/services"
	"github.com/persona-chat/go-persona-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService defines account lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AuthService interface {
	// Register creates a password account and returns the stored user.
	Register(ctx context.Context, email, password string) (*domain.User, error)
	// Login verifies credentials and issues a token pair.
	Login(ctx context.Context, email, password string, rememberMe bool) (*services.TokenPair, *domain.User, error)
	// Refresh rotates a refresh token into a fresh token pair.
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, *domain.User, error)
	// SetPassword sets or replaces the account password.
	SetPassword(ctx context.Context, userID uint, password string) error
	// Me returns the account for userID.
	Me(ctx context.Context, userID uint) (*domain.User, error)
	// GoogleLoginURL builds the Google consent redirect URL.
	GoogleLoginURL(state string) (string, error)
	// GoogleCallback completes the authorization-code flow.
	GoogleCallback(ctx context.Context, code string) (*services.TokenPair, *domain.User, error)
	// GoogleToken signs in with a Google access token obtained client-side.
	GoogleToken(ctx context.Context, accessToken string) (*services.TokenPair, *domain.User, error)
}

// CharacterService defines catalog and favorites operations consumed by HTTP
// handlers.
type CharacterService interface {
	List(ctx context.Context, genre *string, skip, limit int) ([]domain.Character, error)
	Get(ctx context.Context, id uint) (*domain.Character, error)
	Create(ctx context.Context, in services.CharacterInput) (*domain.Character, error)
	Update(ctx context.Context, id uint, in services.CharacterInput) (*domain.Character, error)
	Delete(ctx context.Context, id uint) error
	Favorites(ctx context.Context, userID uint) ([]domain.Character, error)
	// Favorite marks the character and returns an in-character greeting.
	Favorite(ctx context.Context, userID, characterID uint) (string, error)
	Unfavorite(ctx context.Context, userID, characterID uint) error
	// CreateFromExternal imports a search result into the local catalog.
	CreateFromExternal(ctx context.Context, ext services.ExternalCharacter) (*domain.Character, error)
}

// ChatService defines conversation operations consumed by HTTP handlers.
type ChatService interface {
	// Respond handles one blocking chat turn and reports idempotent replays.
	Respond(ctx context.Context, userID uint, sessionID string, characterID *uint, message, idemKey string) (*domain.ChatMessage, bool, error)
	// RespondStream handles one streamed chat turn.
	RespondStream(ctx context.Context, userID uint, sessionID string, characterID *uint, message string) (string, <-chan string, <-chan error, error)
	ListSessions(ctx context.Context, userID uint) ([]services.SessionSummary, error)
	ListSessionMessages(ctx context.Context, userID uint, sessionID string) ([]domain.ChatMessage, error)
	ListMessages(ctx context.Context, userID uint, characterID *uint, page, pageSize int) ([]domain.ChatMessage, int64, error)
	DeleteSession(ctx context.Context, userID uint, sessionID string) error
	RenameSession(ctx context.Context, userID uint, sessionID, title string) (string, error)
}

// Searcher aggregates external character catalogs.
type Searcher interface {
	Search(ctx context.Context, query, category string, limit int) []search.Result
}

// Generator builds persona sketches from external reference data.
type Generator interface {
	Races(ctx context.Context) ([]search.RaceRef, error)
	RaceDetails(ctx context.Context, race string) (*search.RaceDetail, error)
	Generate(ctx context.Context, characterType, name string) (*services.GeneratedPersona, error)
	Hybrid(ctx context.Context, dndRace, animeCharacter string) (*services.GeneratedPersona, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for auth, characters, search, persona
// generation, and chat.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	auth       AuthService
	characters CharacterService
	chat       ChatService
	search     Searcher
	generator  Generator
}

// New constructs and returns a Handlers instance bound to the given services.
func New(auth AuthService, characters CharacterService, chat ChatService, searcher Searcher, generator Generator) *Handlers {
	return &Handlers{auth: auth, characters: characters, chat: chat, search: searcher, generator: generator}
}

//
// Helpers
//

// mustUserID returns the authenticated user id set by the auth middleware,
// aborting with 401 when the request carries no identity.
func mustUserID(c *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return 0, false
	}
	return id, true
}

// pathID parses a positive integer path parameter, aborting with 400 on
// malformed input.
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

func paginationOf(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
