package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/persona-chat/go-persona-backend/internal/auth"
	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/oauth"
	"github.com/persona-chat/go-persona-backend/internal/repo"
)

func newAuthService(t *testing.T, google GoogleVerifier) *AuthService {
	t.Helper()
	if google == nil {
		google = &fakeGoogle{}
	}
	return NewAuthService(newServiceDB(t), auth.NewIssuer("test-secret"), google)
}

func TestRegister_DerivesUsernameFromEmail(t *testing.T) {
	s := newAuthService(t, nil)

	u, err := s.Register(context.Background(), "Alice@Example.com", "hunter2-long")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email = %q, want lowercased", u.Email)
	}
	if u.Username != "alice" {
		t.Fatalf("username = %q, want %q", u.Username, "alice")
	}
	if u.AuthProvider != domain.ProviderEmail {
		t.Fatalf("provider = %q", u.AuthProvider)
	}
	if !u.HasPassword() {
		t.Fatal("expected a stored password hash")
	}
}

func TestRegister_UsernameCollisionGetsSuffix(t *testing.T) {
	s := newAuthService(t, nil)

	if _, err := s.Register(context.Background(), "alice@one.com", "password-1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	u, err := s.Register(context.Background(), "alice@two.com", "password-2")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if u.Username != "alice1" {
		t.Fatalf("username = %q, want %q", u.Username, "alice1")
	}
}

func TestRegister_Validation(t *testing.T) {
	s := newAuthService(t, nil)
	ctx := context.Background()

	if _, err := s.Register(ctx, "not-an-email", "long-enough-pass"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("bad email err = %v", err)
	}
	if _, err := s.Register(ctx, "ok@example.com", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password err = %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newAuthService(t, nil)
	ctx := context.Background()

	if _, err := s.Register(ctx, "dup@example.com", "password-1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := s.Register(ctx, "dup@example.com", "password-2"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate err = %v", err)
	}
}

func TestLogin_DistinguishesFailureModes(t *testing.T) {
	s := newAuthService(t, nil)
	ctx := context.Background()

	if _, _, err := s.Login(ctx, "ghost@example.com", "whatever", false); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("unknown email err = %v", err)
	}

	// Google-only account: present but without a password hash.
	gid := "g-123"
	google := &domain.User{
		Email: "google@example.com", Username: "google",
		GoogleID: &gid, AuthProvider: domain.ProviderGoogle, IsActive: true,
	}
	if err := repo.CreateUser(ctx, s.DB, google); err != nil {
		t.Fatalf("seed google user: %v", err)
	}
	if _, _, err := s.Login(ctx, "google@example.com", "whatever", false); !errors.Is(err, ErrGoogleOnlyAccount) {
		t.Fatalf("google-only err = %v", err)
	}

	if _, err := s.Register(ctx, "alice@example.com", "right-password"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := s.Login(ctx, "alice@example.com", "wrong-password", false); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("wrong password err = %v", err)
	}
}

func TestLogin_IssuesVerifiableTokens(t *testing.T) {
	s := newAuthService(t, nil)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice@example.com", "right-password"); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, u, err := s.Login(ctx, "alice@example.com", "right-password", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.TokenType != "bearer" || pair.ExpiresIn != int64(auth.AccessTokenTTL.Seconds()) {
		t.Fatalf("pair = %+v", pair)
	}
	if email, err := s.Tokens.VerifyAccess(pair.AccessToken); err != nil || email != u.Email {
		t.Fatalf("VerifyAccess = %q, %v", email, err)
	}

	// Refresh token is persisted for later revocation checks.
	stored, err := repo.GetUserByEmail(ctx, s.DB, u.Email)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.RefreshToken == nil || *stored.RefreshToken != pair.RefreshToken {
		t.Fatal("refresh token not persisted")
	}
}

func TestLogin_RememberMeExtendsExpiry(t *testing.T) {
	s := newAuthService(t, nil)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice@example.com", "right-password"); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, _, err := s.Login(ctx, "alice@example.com", "right-password", true)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.ExpiresIn != int64(auth.RememberMeTokenTTL.Seconds()) {
		t.Fatalf("ExpiresIn = %d", pair.ExpiresIn)
	}
	if _, err := s.Tokens.VerifyAccess(pair.AccessToken); err != nil {
		t.Fatalf("remember-me token should verify as access: %v", err)
	}
}

func TestRefresh_RotatesAndRevokesOldToken(t *testing.T) {
	s := newAuthService(t, nil)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice@example.com", "right-password"); err != nil {
		t.Fatalf("register: %v", err)
	}
	first, _, err := s.Login(ctx, "alice@example.com", "right-password", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	second, _, err := s.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.AccessToken == "" || second.RefreshToken == "" {
		t.Fatal("expected a fresh pair")
	}

	// The old refresh token was rotated out and no longer refreshes.
	if _, _, err := s.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("stale refresh err = %v", err)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	s := newAuthService(t, nil)
	access, err := s.Tokens.AccessToken("alice@example.com")
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if _, _, err := s.Refresh(context.Background(), access); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
}

func TestSetPassword_OnGoogleAccountKeepsLink(t *testing.T) {
	s := newAuthService(t, nil)
	ctx := context.Background()

	gid := "g-999"
	u := &domain.User{
		Email: "google@example.com", Username: "google",
		GoogleID: &gid, AuthProvider: domain.ProviderGoogle, IsActive: true,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := s.SetPassword(ctx, u.ID, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak err = %v", err)
	}
	if err := s.SetPassword(ctx, u.ID, "new-password-1"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	// Both sign-in methods now work.
	if _, _, err := s.Login(ctx, "google@example.com", "new-password-1", false); err != nil {
		t.Fatalf("password login after SetPassword: %v", err)
	}
	stored, _ := repo.GetUserByID(ctx, s.DB, u.ID)
	if stored.GoogleID == nil || *stored.GoogleID != gid {
		t.Fatal("google link lost after SetPassword")
	}

	if err := s.SetPassword(ctx, 9999, "whatever-long"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestGoogleCallback_CreatesAccountWithoutPassword(t *testing.T) {
	g := &fakeGoogle{
		configured:  true,
		accessToken: "upstream-token",
		profile:     &oauth.Profile{ID: "g-1", Email: "New.User@Example.com", Name: "New User", Picture: "http://img"},
	}
	s := newAuthService(t, g)

	pair, u, err := s.GoogleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("GoogleCallback: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("expected tokens")
	}
	if u.Email != "new.user@example.com" || u.Username != "New" {
		t.Fatalf("user = %+v", u)
	}
	if u.AuthProvider != domain.ProviderGoogle || u.HasPassword() {
		t.Fatalf("expected passwordless google account, got %+v", u)
	}
	if u.ProfilePicture == nil || *u.ProfilePicture != "http://img" {
		t.Fatalf("picture = %v", u.ProfilePicture)
	}
}

func TestGoogleToken_LinksExistingEmailAccount(t *testing.T) {
	g := &fakeGoogle{
		configured: true,
		profile:    &oauth.Profile{ID: "g-2", Email: "alice@example.com", Picture: "http://img"},
	}
	s := newAuthService(t, g)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice@example.com", "password-abc"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, u, err := s.GoogleToken(ctx, "client-side-token")
	if err != nil {
		t.Fatalf("GoogleToken: %v", err)
	}
	if u.GoogleID == nil || *u.GoogleID != "g-2" {
		t.Fatalf("google id not linked: %+v", u)
	}
	if !u.HasPassword() {
		t.Fatal("linking must not drop the password")
	}

	// Second sign-in resolves by google id, no new account.
	_, again, err := s.GoogleToken(ctx, "client-side-token")
	if err != nil {
		t.Fatalf("second GoogleToken: %v", err)
	}
	if again.ID != u.ID {
		t.Fatalf("expected same account, got %d and %d", u.ID, again.ID)
	}
}

func TestGoogleToken_LinkingPromotesProviderAndUsername(t *testing.T) {
	g := &fakeGoogle{
		configured: true,
		profile:    &oauth.Profile{ID: "g-3", Email: "alice@example.com", Name: "Alice Smith"},
	}
	s := newAuthService(t, g)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice@example.com", "password-abc"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, u, err := s.GoogleToken(ctx, "client-side-token")
	if err != nil {
		t.Fatalf("GoogleToken: %v", err)
	}
	if u.AuthProvider != domain.ProviderGoogle {
		t.Fatalf("provider = %q, want %q", u.AuthProvider, domain.ProviderGoogle)
	}
	// The email-derived placeholder gives way to the profile's given name.
	if u.Username != "Alice" {
		t.Fatalf("username = %q, want %q", u.Username, "Alice")
	}
}

func TestGoogleToken_LinkingKeepsChosenUsername(t *testing.T) {
	g := &fakeGoogle{
		configured: true,
		profile:    &oauth.Profile{ID: "g-4", Email: "bob@example.com", Name: "Bob Jones"},
	}
	s := newAuthService(t, g)
	ctx := context.Background()

	u := &domain.User{Email: "bob@example.com", Username: "nightowl", AuthProvider: domain.ProviderEmail, IsActive: true}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, linked, err := s.GoogleToken(ctx, "client-side-token")
	if err != nil {
		t.Fatalf("GoogleToken: %v", err)
	}
	if linked.Username != "nightowl" {
		t.Fatalf("username = %q, a hand-picked name must survive linking", linked.Username)
	}
	if linked.AuthProvider != domain.ProviderGoogle {
		t.Fatalf("provider = %q", linked.AuthProvider)
	}
}

func TestGoogleCallback_ExchangeFailureSurfaces(t *testing.T) {
	g := &fakeGoogle{configured: true, exchangeErr: errors.New("bad code")}
	s := newAuthService(t, g)

	_, _, err := s.GoogleCallback(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "bad code") {
		t.Fatalf("err = %v", err)
	}
}

func TestGoogleLoginURL_NotConfigured(t *testing.T) {
	s := newAuthService(t, &fakeGoogle{configured: false})
	if _, err := s.GoogleLoginURL("state"); !errors.Is(err, oauth.ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}
