package media

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/edgetensor/fleetdash/internal/metrics"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid media token")
	ErrEmptyPath    = errors.New("empty media path")
)

// Signer issues and checks time-limited media URLs. The token is an HS256 JWT
// whose subject is the storage path it grants access to.
type Signer struct {
	baseURL string
	key     []byte
	ttl     time.Duration
	now     func() time.Time
}

func NewSigner(baseURL string, signingKey string, ttl time.Duration) *Signer {
	return &Signer{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     []byte(signingKey),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Sign returns {baseURL}/{path}?token={jwt} for the given storage path.
func (s *Signer) Sign(path string) (string, error) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		metrics.SignedURLs.WithLabelValues("sign", "error").Inc()
		return "", ErrEmptyPath
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   path,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		metrics.SignedURLs.WithLabelValues("sign", "error").Inc()
		return "", fmt.Errorf("failed to sign media token: %w", err)
	}

	metrics.SignedURLs.WithLabelValues("sign", "ok").Inc()
	return fmt.Sprintf("%s/%s?token=%s", s.baseURL, escapePath(path), url.QueryEscape(token)), nil
}

// Verify checks the token signature and expiry, and that it was issued for path.
func (s *Signer) Verify(token, path string) error {
	path = strings.TrimLeft(path, "/")
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		metrics.SignedURLs.WithLabelValues("verify", "invalid").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != path {
		metrics.SignedURLs.WithLabelValues("verify", "wrong_path").Inc()
		return fmt.Errorf("%w: issued for a different path", ErrInvalidToken)
	}
	metrics.SignedURLs.WithLabelValues("verify", "ok").Inc()
	return nil
}

// escapePath escapes each segment but keeps the separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
