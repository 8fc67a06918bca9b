package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/oauth"
	"github.com/persona-chat/go-persona-backend/internal/services"
)

func testPair() *services.TokenPair {
	return &services.TokenPair{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		ExpiresIn:    1800,
	}
}

func TestRegister_CreatedAndErrors(t *testing.T) {
	auth := &fakeAuthService{
		registerFn: func(_ context.Context, email, _ string) (*domain.User, error) {
			switch email {
			case "taken@example.com":
				return nil, services.ErrEmailTaken
			case "weak@example.com":
				return nil, services.ErrWeakPassword
			default:
				return &domain.User{ID: 1, Email: email, Username: "alice"}, nil
			}
		},
	}
	r := newTestRouter(t, New(auth, nil, nil, nil, nil), 0)

	w := doJSON(t, r, http.MethodPost, "/auth/register", `{"email":"alice@example.com","password":"hunter2hunter2"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d body=%s", w.Code, w.Body.String())
	}
	var u domain.User
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil || u.Username != "alice" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	if w := doJSON(t, r, http.MethodPost, "/auth/register", `{"email":"taken@example.com","password":"hunter2hunter2"}`); w.Code != http.StatusConflict {
		t.Fatalf("duplicate email = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/auth/register", `{"email":"weak@example.com","password":"x"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("weak password = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/auth/register", `{"email":"alice@example.com"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing password = %d", w.Code)
	}
}

func TestLogin_DistinctFailureMessages(t *testing.T) {
	auth := &fakeAuthService{
		loginFn: func(_ context.Context, email, _ string, _ bool) (*services.TokenPair, *domain.User, error) {
			switch email {
			case "missing@example.com":
				return nil, nil, services.ErrNoAccount
			case "google@example.com":
				return nil, nil, services.ErrGoogleOnlyAccount
			case "wrong@example.com":
				return nil, nil, services.ErrWrongPassword
			default:
				return testPair(), &domain.User{ID: 1, Email: email}, nil
			}
		},
	}
	r := newTestRouter(t, New(auth, nil, nil, nil, nil), 0)

	w := doJSON(t, r, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d body=%s", w.Code, w.Body.String())
	}
	var resp TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.AccessToken != "access" || resp.User == nil {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	cases := []struct {
		email   string
		message string
	}{
		{"missing@example.com", "No account found"},
		{"google@example.com", "created with Google"},
		{"wrong@example.com", "Incorrect password"},
	}
	for _, tc := range cases {
		w := doJSON(t, r, http.MethodPost, "/auth/login", `{"email":"`+tc.email+`","password":"pw"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", tc.email, w.Code)
		}
		var e ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || !strings.Contains(e.Message, tc.message) {
			t.Fatalf("%s: expected message containing %q, got %s", tc.email, tc.message, w.Body.String())
		}
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	auth := &fakeAuthService{
		refreshFn: func(_ context.Context, token string) (*services.TokenPair, *domain.User, error) {
			if token == "good" {
				return testPair(), &domain.User{ID: 1}, nil
			}
			return nil, nil, services.ErrInvalidCredentials
		},
	}
	r := newTestRouter(t, New(auth, nil, nil, nil, nil), 0)

	if w := doJSON(t, r, http.MethodPost, "/auth/refresh", `{"refresh_token":"good"}`); w.Code != http.StatusOK {
		t.Fatalf("refresh = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/auth/refresh", `{"refresh_token":"revoked"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked refresh = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/auth/refresh", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing refresh_token = %d", w.Code)
	}
}

func TestSetPassword_RequiresIdentity(t *testing.T) {
	auth := &fakeAuthService{
		setPasswordFn: func(_ context.Context, userID uint, _ string) error {
			if userID != 7 {
				t.Fatalf("userID = %d", userID)
			}
			return nil
		},
	}

	body := `{"new_password":"hunter2hunter2","confirm_password":"hunter2hunter2"}`

	// Anonymous request is rejected before the service runs.
	r := newTestRouter(t, New(auth, nil, nil, nil, nil), 0)
	if w := doJSON(t, r, http.MethodPost, "/auth/set-password", body); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d", w.Code)
	}

	r = newTestRouter(t, New(auth, nil, nil, nil, nil), 7)
	if w := doJSON(t, r, http.MethodPost, "/auth/set-password", body); w.Code != http.StatusNoContent {
		t.Fatalf("set-password = %d", w.Code)
	}
}

func TestSetPassword_ConfirmationMustMatch(t *testing.T) {
	called := false
	auth := &fakeAuthService{
		setPasswordFn: func(context.Context, uint, string) error {
			called = true
			return nil
		},
	}
	r := newTestRouter(t, New(auth, nil, nil, nil, nil), 7)

	w := doJSON(t, r, http.MethodPost, "/auth/set-password",
		`{"new_password":"hunter2hunter2","confirm_password":"different-pass"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("mismatched confirmation = %d", w.Code)
	}
	if called {
		t.Fatal("service must not run on mismatched passwords")
	}

	// Either half missing is a bad request too.
	if w := doJSON(t, r, http.MethodPost, "/auth/set-password", `{"new_password":"hunter2hunter2"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing confirmation = %d", w.Code)
	}
}

func TestMe(t *testing.T) {
	auth := &fakeAuthService{
		meFn: func(_ context.Context, userID uint) (*domain.User, error) {
			return &domain.User{ID: userID, Email: "me@example.com"}, nil
		},
	}
	r := newTestRouter(t, New(auth, nil, nil, nil, nil), 7)

	w := doJSON(t, r, http.MethodGet, "/auth/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("me = %d", w.Code)
	}
	var u domain.User
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil || u.ID != 7 {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestGoogleLogin_RedirectAndNotConfigured(t *testing.T) {
	auth := &fakeAuthService{
		googleURLFn: func(state string) (string, error) {
			if state == "" {
				t.Fatal("state must not be empty")
			}
			return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state, nil
		},
	}
	r := newTestRouter(t, New(auth, nil, nil, nil, nil), 0)

	w := doJSON(t, r, http.MethodGet, "/auth/google/login", "")
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("google login = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "https://accounts.google.com/") {
		t.Fatalf("unexpected redirect target %q", loc)
	}

	auth.googleURLFn = func(string) (string, error) { return "", oauth.ErrNotConfigured }
	if w := doJSON(t, r, http.MethodGet, "/auth/google/login", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("not configured = %d", w.Code)
	}
}

func TestGoogleCallback(t *testing.T) {
	auth := &fakeAuthService{
		googleCallbackFn: func(_ context.Context, code string) (*services.TokenPair, *domain.User, error) {
			if code == "valid" {
				return testPair(), &domain.User{ID: 2, Email: "g@example.com"}, nil
			}
			return nil, nil, services.ErrInvalidCredentials
		},
	}
	r := newTestRouter(t, New(auth, nil, nil, nil, nil), 0)

	if w := doJSON(t, r, http.MethodGet, "/auth/google/callback?code=valid", ""); w.Code != http.StatusOK {
		t.Fatalf("callback = %d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodGet, "/auth/google/callback", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing code = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/auth/google/callback?code=bad", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad code = %d", w.Code)
	}
}

func TestGoogleToken(t *testing.T) {
	auth := &fakeAuthService{
		googleTokenFn: func(_ context.Context, token string) (*services.TokenPair, *domain.User, error) {
			if token == "g-token" {
				return testPair(), &domain.User{ID: 2}, nil
			}
			return nil, nil, services.ErrInvalidCredentials
		},
		googleCallbackFn: func(_ context.Context, code string) (*services.TokenPair, *domain.User, error) {
			if code == "auth-code" {
				return testPair(), &domain.User{ID: 2}, nil
			}
			return nil, nil, services.ErrInvalidCredentials
		},
	}
	r := newTestRouter(t, New(auth, nil, nil, nil, nil), 0)

	// An authorization code is exchanged server-side.
	if w := doJSON(t, r, http.MethodPost, "/auth/google/token", `{"code":"auth-code"}`); w.Code != http.StatusOK {
		t.Fatalf("google code = %d", w.Code)
	}
	// A client-obtained access token still works.
	if w := doJSON(t, r, http.MethodPost, "/auth/google/token", `{"access_token":"g-token"}`); w.Code != http.StatusOK {
		t.Fatalf("google token = %d", w.Code)
	}
	// The code wins when both are sent.
	if w := doJSON(t, r, http.MethodPost, "/auth/google/token", `{"code":"auth-code","access_token":"nope"}`); w.Code != http.StatusOK {
		t.Fatalf("code preferred = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/auth/google/token", `{"access_token":"nope"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("rejected token = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/auth/google/token", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing token = %d", w.Code)
	}
}
