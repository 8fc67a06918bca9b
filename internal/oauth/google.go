// Package oauth implements the Google sign-in bridge: building the consent
// URL, exchanging an authorization code for tokens, and fetching the user's
// profile. Account reconciliation lives in the services layer; this package
// only talks to Google.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/persona-chat/go-persona-backend/internal/config"
)

// Google endpoints. Fields on the client so tests can point them at fakes.
const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// ErrNotConfigured is returned when the Google client credentials are absent.
var ErrNotConfigured = errors.New("google oauth is not configured")

// Profile is the subset of the Google userinfo payload the app consumes.
type Profile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Client performs the three Google OAuth round trips.
type Client struct {
	cfg   config.GoogleOAuthConfig
	httpc *http.Client

	AuthURL     string
	TokenURL    string
	UserinfoURL string
}

// NewClient builds a Client from the loaded configuration.
func NewClient(cfg config.GoogleOAuthConfig) *Client {
	return &Client{
		cfg:         cfg,
		httpc:       &http.Client{Timeout: 10 * time.Second},
		AuthURL:     defaultAuthURL,
		TokenURL:    defaultTokenURL,
		UserinfoURL: defaultUserinfoURL,
	}
}

// Configured reports whether client credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// AuthorizationURL returns the consent-screen URL the frontend should
// redirect the user to. The offline access type and forced consent prompt
// make Google return a refresh token on every grant.
func (c *Client) AuthorizationURL(state string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	if state != "" {
		q.Set("state", state)
	}
	return c.AuthURL + "?" + q.Encode(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// Exchange trades an authorization code for a Google access token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tok tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&tok); err != nil {
		return "", fmt.Errorf("google token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || tok.Error != "" {
		msg := tok.ErrorDesc
		if msg == "" {
			msg = tok.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("google code exchange failed: %s", msg)
	}
	if tok.AccessToken == "" {
		return "", errors.New("google returned no access token")
	}
	return tok.AccessToken, nil
}

// FetchProfile loads the userinfo document for the given access token.
// A profile without an id or email cannot be reconciled and is an error.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("google userinfo failed: status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&p); err != nil {
		return nil, fmt.Errorf("google userinfo response: %w", err)
	}
	if p.ID == "" {
		return nil, errors.New("google profile is missing an id")
	}
	if p.Email == "" {
		return nil, errors.New("google profile is missing an email")
	}
	return &p, nil
}
