package stellarauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// GoogleOAuthConfig configures the built-in Google provider. AuthURL,
// TokenURL, and UserInfoURL default to Google's endpoints; tests point
// them at a local server.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

type googleProvider struct {
	config GoogleOAuthConfig
	client *http.Client
}

// NewGoogleProvider returns an [OAuthProvider] backed by Google's
// OpenID Connect endpoints.
func NewGoogleProvider(cfg GoogleOAuthConfig) (OAuthProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google oauth client id and secret required")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("google oauth redirect uri required")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = googleAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = googleTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = googleUserInfoURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &googleProvider{config: cfg, client: client}, nil
}

func (p *googleProvider) AuthCodeURL(state string) string {
	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", p.config.ClientID)
	query.Set("redirect_uri", p.config.RedirectURI)
	query.Set("scope", "openid email profile")
	query.Set("state", state)
	query.Set("access_type", "online")
	return p.config.AuthURL + "?" + query.Encode()
}

func (p *googleProvider) Exchange(ctx context.Context, code string) (*OAuthIdentity, error) {
	accessToken, err := p.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return p.fetchUserInfo(ctx, accessToken)
}

func (p *googleProvider) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.config.RedirectURI)
	form.Set("client_id", p.config.ClientID)
	form.Set("client_secret", p.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed: status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", errors.New("token exchange returned no access token")
	}
	return payload.AccessToken, nil
}

func (p *googleProvider) fetchUserInfo(ctx context.Context, accessToken string) (*OAuthIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed: status %d", resp.StatusCode)
	}

	var payload struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Sub == "" || payload.Email == "" {
		return nil, errors.New("userinfo missing subject or email")
	}

	return &OAuthIdentity{
		Email:          payload.Email,
		ProviderUserID: payload.Sub,
		DisplayName:    payload.Name,
		AvatarURL:      payload.Picture,
		EmailVerified:  payload.EmailVerified,
	}, nil
}
