// Package services – AuthService
//
// This file implements AuthService, the application-level component that owns
// account registration, password and Google sign-in, token refresh, and the
// reconciliation rules that link Google identities to existing accounts.
//
// Observability: the main entry points are OpenTelemetry-instrumented; spans
// include the account identifier where one is known.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/persona-chat/go-persona-backend/internal/auth"
	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/oauth"
	"github.com/persona-chat/go-persona-backend/internal/repo"
)

const minPasswordRunes = 8

// emailRE is a permissive shape check; real validation happens at delivery.
var emailRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// GoogleVerifier abstracts the Google OAuth client so tests can stub it.
type GoogleVerifier interface {
	Configured() bool
	AuthorizationURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*oauth.Profile, error)
}

// TokenPair is the credential bundle returned by every sign-in path.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthService coordinates account lifecycle and token issuance.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Tokens signs and verifies the JWTs handed to clients.
	Tokens *auth.Issuer
	// Google performs the OAuth code exchange and profile fetch.
	Google GoogleVerifier
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, issuer *auth.Issuer, google GoogleVerifier) *AuthService {
	return &AuthService{DB: db, Tokens: issuer, Google: google}
}

// Register creates a password-backed account. The username is derived from
// the email local part, with a numeric suffix on collision.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	email = normalizeEmail(email)
	if !emailRE.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < minPasswordRunes {
		return nil, ErrWeakPassword
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	username, err := s.uniqueUsername(ctx, emailLocalPart(email))
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Email:          email,
		Username:       username,
		HashedPassword: &hash,
		AuthProvider:   domain.ProviderEmail,
		IsActive:       true,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Login verifies the password and issues a token pair. The three failure
// modes are distinguished so the client can show actionable messages:
// unknown email, Google-only account, and wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*TokenPair, *domain.User, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrNoAccount
		}
		return nil, nil, err
	}
	if !u.HasPassword() {
		return nil, nil, ErrGoogleOnlyAccount
	}
	if !auth.CheckPassword(password, *u.HashedPassword) {
		return nil, nil, ErrWrongPassword
	}

	pair, err := s.issueTokens(ctx, u, rememberMe)
	if err != nil {
		return nil, nil, err
	}
	return pair, u, nil
}

// Refresh exchanges a valid, non-revoked refresh token for a new pair.
// Refresh tokens rotate on use.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, *domain.User, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Refresh")
	defer span.End()

	email, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if u.RefreshToken == nil || *u.RefreshToken != refreshToken {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, u, false)
	if err != nil {
		return nil, nil, err
	}
	return pair, u, nil
}

// SetPassword sets or replaces the account password. Google accounts keep
// their Google link, gaining a second sign-in method.
func (s *AuthService) SetPassword(ctx context.Context, userID uint, password string) error {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "SetPassword",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))))
	defer span.End()

	if utf8.RuneCountInString(password) < minPasswordRunes {
		return ErrWeakPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := repo.SetUserPassword(ctx, s.DB, userID, hash); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// Me returns the account for userID.
func (s *AuthService) Me(ctx context.Context, userID uint) (*domain.User, error) {
	u, err := repo.GetUserByID(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetUserByEmail resolves the account behind a verified token subject.
func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// GoogleLoginURL builds the consent-screen redirect for the given CSRF state.
func (s *AuthService) GoogleLoginURL(state string) (string, error) {
	return s.Google.AuthorizationURL(state)
}

// GoogleCallback completes the authorization-code flow: it exchanges the
// code, fetches the profile, reconciles it against local accounts, and
// issues a token pair.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*TokenPair, *domain.User, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "GoogleCallback")
	defer span.End()

	accessToken, err := s.Google.Exchange(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	return s.googleSignIn(ctx, accessToken)
}

// GoogleToken signs in with a Google access token obtained client-side.
func (s *AuthService) GoogleToken(ctx context.Context, accessToken string) (*TokenPair, *domain.User, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "GoogleToken")
	defer span.End()

	return s.googleSignIn(ctx, accessToken)
}

func (s *AuthService) googleSignIn(ctx context.Context, accessToken string) (*TokenPair, *domain.User, error) {
	p, err := s.Google.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.reconcileGoogle(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.issueTokens(ctx, u, false)
	if err != nil {
		return nil, nil, err
	}
	return pair, u, nil
}

// reconcileGoogle maps a Google profile onto a local account:
//
//  1. an account already linked to this Google ID is reused as-is;
//  2. an account with the same email gets the Google ID linked, its
//     provider switched to google, and an email-derived username promoted
//     to the profile's given name; any existing password is kept;
//  3. otherwise a new Google-backed account is created without a password,
//     named after the profile's given name when it has one.
func (s *AuthService) reconcileGoogle(ctx context.Context, p *oauth.Profile) (*domain.User, error) {
	email := normalizeEmail(p.Email)

	u, err := repo.GetUserByGoogleID(ctx, s.DB, p.ID)
	if err == nil {
		if u.ProfilePicture == nil && p.Picture != "" {
			u.ProfilePicture = strOrNil(p.Picture)
			if serr := repo.SaveUser(ctx, s.DB, u); serr != nil {
				return nil, serr
			}
		}
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	u, err = repo.GetUserByEmail(ctx, s.DB, email)
	if err == nil {
		gid := p.ID
		u.GoogleID = &gid
		u.AuthProvider = domain.ProviderGoogle
		if u.ProfilePicture == nil {
			u.ProfilePicture = strOrNil(p.Picture)
		}
		if name := givenName(p.Name); name != "" && usernameDerivedFromEmail(u.Username, email) {
			promoted, perr := s.uniqueUsername(ctx, name)
			if perr != nil {
				return nil, perr
			}
			u.Username = promoted
		}
		if serr := repo.SaveUser(ctx, s.DB, u); serr != nil {
			return nil, serr
		}
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	gid := p.ID
	base := givenName(p.Name)
	if base == "" {
		base = emailLocalPart(email)
	}
	username, err := s.uniqueUsername(ctx, base)
	if err != nil {
		return nil, err
	}
	u = &domain.User{
		Email:          email,
		Username:       username,
		GoogleID:       &gid,
		AuthProvider:   domain.ProviderGoogle,
		ProfilePicture: strOrNil(p.Picture),
		IsActive:       true,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return u, nil
}

// issueTokens mints a token pair for u and records the refresh token so it
// can be revoked or rotated later. Remember-me logins get a long-lived
// access token instead of the default half hour.
func (s *AuthService) issueTokens(ctx context.Context, u *domain.User, rememberMe bool) (*TokenPair, error) {
	var (
		access string
		err    error
		ttl    = auth.AccessTokenTTL
	)
	if rememberMe {
		access, err = s.Tokens.RememberMeToken(u.Email)
		ttl = auth.RememberMeTokenTTL
	} else {
		access, err = s.Tokens.AccessToken(u.Email)
	}
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.RefreshToken(u.Email)
	if err != nil {
		return nil, err
	}
	if err := repo.SetUserRefreshToken(ctx, s.DB, u.ID, refresh); err != nil {
		return nil, err
	}
	u.RefreshToken = &refresh
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(ttl.Seconds()),
	}, nil
}

// uniqueUsername resolves username collisions on base with a numeric suffix.
func (s *AuthService) uniqueUsername(ctx context.Context, base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 1; ; i++ {
		taken, err := repo.UsernameExists(ctx, s.DB, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailLocalPart returns the lowercased part before the @.
func emailLocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		email = email[:at]
	}
	return strings.ToLower(strings.TrimSpace(email))
}

// givenName extracts the first word of a display name.
func givenName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// usernameDerivedFromEmail reports whether username looks auto-generated
// from the email local part: an exact match or the local part plus the
// numeric collision suffix uniqueUsername appends.
func usernameDerivedFromEmail(username, email string) bool {
	local := emailLocalPart(email)
	lower := strings.ToLower(username)
	if !strings.HasPrefix(lower, local) {
		return false
	}
	for _, r := range lower[len(local):] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// strOrNil maps the empty string to nil for optional columns.
func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
