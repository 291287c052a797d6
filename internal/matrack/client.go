package matrack

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the production Matrack API root.
const DefaultBaseURL = "https://api.matrack.live/v1"

// Client talks to the Matrack telematics API using OAuth2 client credentials.
// It is safe for concurrent use.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	blocks       BlockStore
	recorder     LatencyRecorder

	// token state, guarded by tokenMu
	tokenMu      sync.Mutex
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
	now          func() time.Time
}

func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration, blocks BlockStore, recorder LatencyRecorder) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		blocks:       blocks,
		recorder:     recorder,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// BaseURL returns the Matrack API root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}
