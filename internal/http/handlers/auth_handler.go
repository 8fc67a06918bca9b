// Auth HTTP handlers.
//
// This file exposes REST endpoints for account management:
//   - POST /auth/register          (password signup)
//   - POST /auth/login             (password login, optional remember-me)
//   - POST /auth/refresh           (refresh token rotation)
//   - POST /auth/set-password      (bearer; add a password to a Google account)
//   - GET  /auth/me                (bearer)
//   - GET  /auth/google/login      (redirect to Google consent)
//   - GET  /auth/google/callback   (authorization-code exchange)
//   - POST /auth/google/token      (client-side Google access token)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/oauth"
	"github.com/persona-chat/go-persona-backend/internal/services"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required" example:"alice@example.com"`
	Password string `json:"password" binding:"required" example:"hunter2hunter2"`
}

// LoginRequest is the JSON payload for password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"alice@example.com"`
	Password string `json:"password" binding:"required" example:"hunter2hunter2"`
	// RememberMe extends the access token lifetime to 30 days.
	RememberMe bool `json:"remember_me"`
}

// RefreshRequest is the JSON payload for refresh token rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SetPasswordRequest is the JSON payload for setting an account password.
// The password is sent twice and both copies must match.
type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required" example:"hunter2hunter2"`
	ConfirmPassword string `json:"confirm_password" binding:"required" example:"hunter2hunter2"`
}

// GoogleTokenRequest carries the client side of a Google sign-in: either an
// authorization code to exchange server-side or an access token the client
// already obtained. The code wins when both are present.
type GoogleTokenRequest struct {
	Code        string `json:"code"`
	AccessToken string `json:"access_token"`
}

// TokenResponse is the token pair returned by all login flows.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type" example:"bearer"`
	ExpiresIn    int64        `json:"expires_in" example:"1800"`
	User         *domain.User `json:"user"`
}

func tokenResponse(pair *services.TokenPair, u *domain.User) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User:         u,
	}
}

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Create an account
// @Description Registers a password account. The username is derived from the email local part.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Registration payload"
//
// @Success     201  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid email or weak password"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	u, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, u)
	case errors.Is(err, services.ErrInvalidEmail), errors.Is(err, services.ErrWeakPassword):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
	}
}

// Login godoc
// @ID          login
// @Summary     Log in with email and password
// @Description Verifies credentials and returns an access/refresh token pair. Login failures carry distinct messages for missing accounts, Google-only accounts, and wrong passwords.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Login payload"
//
// @Success     200  {object}  handlers.TokenResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	pair, u, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, req.RememberMe)
	switch {
	case err == nil:
		ok(c, http.StatusOK, tokenResponse(pair, u))
	case errors.Is(err, services.ErrNoAccount),
		errors.Is(err, services.ErrGoogleOnlyAccount),
		errors.Is(err, services.ErrWrongPassword):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// Refresh godoc
// @ID          refreshToken
// @Summary     Rotate a refresh token
// @Description Exchanges a valid refresh token for a fresh token pair. The previous refresh token is revoked.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RefreshRequest  true  "Refresh payload"
//
// @Success     200  {object}  handlers.TokenResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid or revoked refresh token"
// @Router      /auth/refresh [post]
func (h *Handlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "refresh_token is required")
		return
	}

	pair, u, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	switch {
	case err == nil:
		ok(c, http.StatusOK, tokenResponse(pair, u))
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid refresh token")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// SetPassword godoc
// @ID          setPassword
// @Summary     Set the account password
// @Description Sets or replaces the password of the authenticated account. Google-linked accounts keep their Google sign-in after setting a password.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.SetPasswordRequest  true  "New password, sent twice"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Weak password or mismatched confirmation"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Account not found"
// @Router      /auth/set-password [post]
func (h *Handlers) SetPassword(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}

	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "new_password and confirm_password are required")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "passwords do not match")
		return
	}

	err := h.auth.SetPassword(c.Request.Context(), uid, req.NewPassword)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrWeakPassword):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// Me godoc
// @ID          me
// @Summary     Current account
// @Description Returns the authenticated account.
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}

	u, err := h.auth.Me(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, u)
}

// GoogleLogin godoc
// @ID          googleLogin
// @Summary     Start Google sign-in
// @Description Redirects the browser to the Google consent screen.
// @Tags        Auth
//
// @Success     307  {string}  string  "Redirect to Google"
// @Failure     503  {object}  handlers.ErrorResponse  "Google sign-in not configured"
// @Router      /auth/google/login [get]
func (h *Handlers) GoogleLogin(c *gin.Context) {
	url, err := h.auth.GoogleLoginURL(uuid.NewString())
	if err != nil {
		if errors.Is(err, oauth.ErrNotConfigured) {
			fail(c, http.StatusServiceUnavailable, ErrCodeUpstreamFailed, "google sign-in is not configured")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback godoc
// @ID          googleCallback
// @Summary     Complete Google sign-in
// @Description Exchanges the authorization code for a Google profile and signs the user in, creating or linking the account as needed.
// @Tags        Auth
// @Produce     json
//
// @Param       code  query  string  true  "Authorization code from Google"
//
// @Success     200  {object}  handlers.TokenResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing code"
// @Failure     401  {object}  handlers.ErrorResponse  "Code exchange failed"
// @Router      /auth/google/callback [get]
func (h *Handlers) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code query parameter is required")
		return
	}

	pair, u, err := h.auth.GoogleCallback(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, oauth.ErrNotConfigured) {
			fail(c, http.StatusServiceUnavailable, ErrCodeUpstreamFailed, "google sign-in is not configured")
			return
		}
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "google sign-in failed")
		return
	}
	ok(c, http.StatusOK, tokenResponse(pair, u))
}

// GoogleToken godoc
// @ID          googleToken
// @Summary     Sign in with a Google access token
// @Description Signs in with either an authorization code (exchanged server-side) or a Google access token the client already holds (mobile or SPA flows), creating or linking the account as needed.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.GoogleTokenRequest  true  "Authorization code or Google access token"
//
// @Success     200  {object}  handlers.TokenResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Code or token rejected by Google"
// @Router      /auth/google/token [post]
func (h *Handlers) GoogleToken(c *gin.Context) {
	var req GoogleTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Code == "" && req.AccessToken == "") {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code or access_token is required")
		return
	}

	var (
		pair *services.TokenPair
		u    *domain.User
		err  error
	)
	if req.Code != "" {
		pair, u, err = h.auth.GoogleCallback(c.Request.Context(), req.Code)
	} else {
		pair, u, err = h.auth.GoogleToken(c.Request.Context(), req.AccessToken)
	}
	if err != nil {
		if errors.Is(err, oauth.ErrNotConfigured) {
			fail(c, http.StatusServiceUnavailable, ErrCodeUpstreamFailed, "google sign-in is not configured")
			return
		}
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "google sign-in failed")
		return
	}
	ok(c, http.StatusOK, tokenResponse(pair, u))
}
