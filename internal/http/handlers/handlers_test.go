package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/http/middleware"
	"github.com/persona-chat/go-persona-backend/internal/search"
	"github.com/persona-chat/go-persona-backend/internal/services"
)

//
// Fake services. Each method is a swappable func field so individual tests
// can script exactly the behavior they need.
//

type fakeAuthService struct {
	registerFn       func(ctx context.Context, email, password string) (*domain.User, error)
	loginFn          func(ctx context.Context, email, password string, rememberMe bool) (*services.TokenPair, *domain.User, error)
	refreshFn        func(ctx context.Context, refreshToken string) (*services.TokenPair, *domain.User, error)
	setPasswordFn    func(ctx context.Context, userID uint, password string) error
	meFn             func(ctx context.Context, userID uint) (*domain.User, error)
	googleURLFn      func(state string) (string, error)
	googleCallbackFn func(ctx context.Context, code string) (*services.TokenPair, *domain.User, error)
	googleTokenFn    func(ctx context.Context, accessToken string) (*services.TokenPair, *domain.User, error)
}

func (f *fakeAuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	return f.registerFn(ctx, email, password)
}
func (f *fakeAuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*services.TokenPair, *domain.User, error) {
	return f.loginFn(ctx, email, password, rememberMe)
}
func (f *fakeAuthService) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, *domain.User, error) {
	return f.refreshFn(ctx, refreshToken)
}
func (f *fakeAuthService) SetPassword(ctx context.Context, userID uint, password string) error {
	return f.setPasswordFn(ctx, userID, password)
}
func (f *fakeAuthService) Me(ctx context.Context, userID uint) (*domain.User, error) {
	return f.meFn(ctx, userID)
}
func (f *fakeAuthService) GoogleLoginURL(state string) (string, error) {
	return f.googleURLFn(state)
}
func (f *fakeAuthService) GoogleCallback(ctx context.Context, code string) (*services.TokenPair, *domain.User, error) {
	return f.googleCallbackFn(ctx, code)
}
func (f *fakeAuthService) GoogleToken(ctx context.Context, accessToken string) (*services.TokenPair, *domain.User, error) {
	return f.googleTokenFn(ctx, accessToken)
}

type fakeCharacterService struct {
	listFn         func(ctx context.Context, genre *string, skip, limit int) ([]domain.Character, error)
	getFn          func(ctx context.Context, id uint) (*domain.Character, error)
	createFn       func(ctx context.Context, in services.CharacterInput) (*domain.Character, error)
	updateFn       func(ctx context.Context, id uint, in services.CharacterInput) (*domain.Character, error)
	deleteFn       func(ctx context.Context, id uint) error
	favoritesFn    func(ctx context.Context, userID uint) ([]domain.Character, error)
	favoriteFn     func(ctx context.Context, userID, characterID uint) (string, error)
	unfavoriteFn   func(ctx context.Context, userID, characterID uint) error
	fromExternalFn func(ctx context.Context, ext services.ExternalCharacter) (*domain.Character, error)
}

func (f *fakeCharacterService) List(ctx context.Context, genre *string, skip, limit int) ([]domain.Character, error) {
	return f.listFn(ctx, genre, skip, limit)
}
func (f *fakeCharacterService) Get(ctx context.Context, id uint) (*domain.Character, error) {
	return f.getFn(ctx, id)
}
func (f *fakeCharacterService) Create(ctx context.Context, in services.CharacterInput) (*domain.Character, error) {
	return f.createFn(ctx, in)
}
func (f *fakeCharacterService) Update(ctx context.Context, id uint, in services.CharacterInput) (*domain.Character, error) {
	return f.updateFn(ctx, id, in)
}
func (f *fakeCharacterService) Delete(ctx context.Context, id uint) error {
	return f.deleteFn(ctx, id)
}
func (f *fakeCharacterService) Favorites(ctx context.Context, userID uint) ([]domain.Character, error) {
	return f.favoritesFn(ctx, userID)
}
func (f *fakeCharacterService) Favorite(ctx context.Context, userID, characterID uint) (string, error) {
	return f.favoriteFn(ctx, userID, characterID)
}
func (f *fakeCharacterService) Unfavorite(ctx context.Context, userID, characterID uint) error {
	return f.unfavoriteFn(ctx, userID, characterID)
}
func (f *fakeCharacterService) CreateFromExternal(ctx context.Context, ext services.ExternalCharacter) (*domain.Character, error) {
	return f.fromExternalFn(ctx, ext)
}

type fakeChatService struct {
	respondFn         func(ctx context.Context, userID uint, sessionID string, characterID *uint, message, idemKey string) (*domain.ChatMessage, bool, error)
	respondStreamFn   func(ctx context.Context, userID uint, sessionID string, characterID *uint, message string) (string, <-chan string, <-chan error, error)
	listSessionsFn    func(ctx context.Context, userID uint) ([]services.SessionSummary, error)
	listSessionMsgsFn func(ctx context.Context, userID uint, sessionID string) ([]domain.ChatMessage, error)
	listMessagesFn    func(ctx context.Context, userID uint, characterID *uint, page, pageSize int) ([]domain.ChatMessage, int64, error)
	deleteSessionFn   func(ctx context.Context, userID uint, sessionID string) error
	renameSessionFn   func(ctx context.Context, userID uint, sessionID, title string) (string, error)
}

func (f *fakeChatService) Respond(ctx context.Context, userID uint, sessionID string, characterID *uint, message, idemKey string) (*domain.ChatMessage, bool, error) {
	return f.respondFn(ctx, userID, sessionID, characterID, message, idemKey)
}
func (f *fakeChatService) RespondStream(ctx context.Context, userID uint, sessionID string, characterID *uint, message string) (string, <-chan string, <-chan error, error) {
	return f.respondStreamFn(ctx, userID, sessionID, characterID, message)
}
func (f *fakeChatService) ListSessions(ctx context.Context, userID uint) ([]services.SessionSummary, error) {
	return f.listSessionsFn(ctx, userID)
}
func (f *fakeChatService) ListSessionMessages(ctx context.Context, userID uint, sessionID string) ([]domain.ChatMessage, error) {
	return f.listSessionMsgsFn(ctx, userID, sessionID)
}
func (f *fakeChatService) ListMessages(ctx context.Context, userID uint, characterID *uint, page, pageSize int) ([]domain.ChatMessage, int64, error) {
	return f.listMessagesFn(ctx, userID, characterID, page, pageSize)
}
func (f *fakeChatService) DeleteSession(ctx context.Context, userID uint, sessionID string) error {
	return f.deleteSessionFn(ctx, userID, sessionID)
}
func (f *fakeChatService) RenameSession(ctx context.Context, userID uint, sessionID, title string) (string, error) {
	return f.renameSessionFn(ctx, userID, sessionID, title)
}

type fakeSearcher struct {
	searchFn func(ctx context.Context, query, category string, limit int) []search.Result
}

func (f *fakeSearcher) Search(ctx context.Context, query, category string, limit int) []search.Result {
	return f.searchFn(ctx, query, category, limit)
}

type fakeGenerator struct {
	racesFn       func(ctx context.Context) ([]search.RaceRef, error)
	raceDetailsFn func(ctx context.Context, race string) (*search.RaceDetail, error)
	generateFn    func(ctx context.Context, characterType, name string) (*services.GeneratedPersona, error)
	hybridFn      func(ctx context.Context, dndRace, animeCharacter string) (*services.GeneratedPersona, error)
}

func (f *fakeGenerator) Races(ctx context.Context) ([]search.RaceRef, error) {
	return f.racesFn(ctx)
}
func (f *fakeGenerator) RaceDetails(ctx context.Context, race string) (*search.RaceDetail, error) {
	return f.raceDetailsFn(ctx, race)
}
func (f *fakeGenerator) Generate(ctx context.Context, characterType, name string) (*services.GeneratedPersona, error) {
	return f.generateFn(ctx, characterType, name)
}
func (f *fakeGenerator) Hybrid(ctx context.Context, dndRace, animeCharacter string) (*services.GeneratedPersona, error) {
	return f.hybridFn(ctx, dndRace, animeCharacter)
}

//
// Router helper. asUser simulates the auth middleware by injecting the user
// identity before the handler runs; 0 leaves the request anonymous.
//

func newTestRouter(t *testing.T, h *Handlers, asUser uint) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if asUser != 0 {
		r.Use(func(c *gin.Context) {
			c.Set("userID", asUser)
			c.Next()
		})
	}

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/set-password", h.SetPassword)
	r.GET("/auth/me", h.Me)
	r.GET("/auth/google/login", h.GoogleLogin)
	r.GET("/auth/google/callback", h.GoogleCallback)
	r.POST("/auth/google/token", h.GoogleToken)

	r.GET("/characters", h.ListCharacters)
	r.POST("/characters", h.CreateCharacter)
	r.POST("/characters/from-external", h.CreateCharacterFromExternal)
	r.GET("/characters/my", h.MyCharacters)
	r.GET("/characters/:id", h.GetCharacter)
	r.PUT("/characters/:id", h.UpdateCharacter)
	r.DELETE("/characters/:id", h.DeleteCharacter)
	r.POST("/characters/:id/favorite", h.FavoriteCharacter)
	r.DELETE("/characters/:id/favorite", h.UnfavoriteCharacter)

	r.GET("/api/characters/search", h.SearchCharacters)
	r.GET("/api/characters/dnd/races", h.ListDnDRaces)
	r.GET("/api/characters/dnd/races/:race", h.GetDnDRace)
	r.GET("/api/characters/generate", h.GenerateCharacter)
	r.GET("/api/characters/hybrid", h.HybridCharacter)

	// The key validator normally runs globally; the chat handler reads the
	// stashed key through it.
	r.POST("/chat", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil), h.Chat)
	r.GET("/chat", h.StreamChat)
	r.GET("/chat/sessions", h.ListSessions)
	r.DELETE("/chat/sessions/:session", h.DeleteSession)
	r.PATCH("/chat/sessions/:session/title", h.RenameSession)
	r.GET("/messages", h.ListMessages)
	r.GET("/messages/chat/:session", h.ListSessionMessages)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
