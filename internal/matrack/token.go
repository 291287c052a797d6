package matrack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	tokenPath = "/auth/token"

	// defaultTokenLifetime applies when the token response omits expires_in.
	defaultTokenLifetime = 3600 * time.Second
	// tokenExpiryBuffer is subtracted from the lifetime so a token is never
	// used in its final minute. Short-lived tokens lose half their lifetime
	// instead.
	tokenExpiryBuffer = 60 * time.Second

	grantClientCredentials = "client_credentials"
	grantRefreshToken      = "refresh_token"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// token returns a valid access token. An expired token is refreshed with the
// refresh grant when a refresh token is held, falling back to a new
// client-credentials grant if the refresh is rejected.
func (c *Client) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	if c.refreshToken != "" {
		err := c.grant(ctx, grantRefreshToken)
		if err == nil {
			return c.accessToken, nil
		}
		slog.Warn("matrack.token.refresh_failed",
			"component", "matrack_auth",
			"event", "token.refresh_error",
			"error", err,
		)
		c.refreshToken = ""
	}

	if err := c.grant(ctx, grantClientCredentials); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

// grant performs a token request and stores the result. Caller holds tokenMu.
func (c *Client) grant(ctx context.Context, grantType string) error {
	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	if grantType == grantRefreshToken {
		form.Set("refresh_token", c.refreshToken)
	}

	var tr tokenResponse
	_, err := c.Request(ctx, http.MethodPost, &tr,
		WithPath(tokenPath),
		WithEndpoint("auth_token"),
		WithUrlEncodedBody(&form),
	)
	if err == nil && tr.AccessToken == "" {
		err = errors.New("token response missing access_token")
	}
	if c.recorder != nil {
		c.recorder.RecordTokenRequest(grantType, err)
	}
	if err != nil {
		var apiErr *ErrAPI
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
			return fmt.Errorf("%w: %s grant rejected with status %d", ErrUnauthorized, grantType, apiErr.StatusCode)
		}
		return fmt.Errorf("%s grant failed: %w", grantType, err)
	}

	lifetime := defaultTokenLifetime
	if tr.ExpiresIn > 0 {
		lifetime = time.Duration(tr.ExpiresIn) * time.Second
	}

	buffer := tokenExpiryBuffer
	if buffer > lifetime/2 {
		buffer = lifetime / 2
	}

	c.accessToken = tr.AccessToken
	c.refreshToken = tr.RefreshToken
	c.tokenExpiry = c.now().Add(lifetime - buffer)

	slog.Info("matrack.token.acquired",
		"component", "matrack_auth",
		"event", "token.acquired",
		"grant_type", grantType,
		"expires_at", c.tokenExpiry,
		"has_refresh_token", c.refreshToken != "",
	)
	return nil
}

// invalidateToken drops the access token so the next request re-authenticates.
// The refresh token is kept.
func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}
