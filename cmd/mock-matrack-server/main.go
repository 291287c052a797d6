// Command mock-matrack-server is an in-memory stand-in for the Matrack API,
// for running the ingest jobs locally. Positions drift a little on every
// realtime poll so the live map has something to show.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	defaultPort         = "8083"
	defaultTokenExpiry  = 3600
	defaultRateLimit    = 600
	defaultClientID     = "mock-client-id"
	defaultClientSecret = "mock-client-secret"
	rateLimitWindow     = time.Minute
)

// Config holds server configuration from environment variables.
type Config struct {
	Port           string
	TokenExpiry    int
	RateLimit      int
	ServiceBlocked bool
	ClientID       string
	ClientSecret   string
}

func loadConfig() Config {
	return Config{
		Port:           envOrDefault("PORT", defaultPort),
		TokenExpiry:    envIntOrDefault("MOCK_TOKEN_EXPIRY", defaultTokenExpiry),
		RateLimit:      envIntOrDefault("MOCK_RATE_LIMIT", defaultRateLimit),
		ServiceBlocked: envBoolOrDefault("MOCK_SERVICE_BLOCKED", false),
		ClientID:       envOrDefault("MOCK_CLIENT_ID", defaultClientID),
		ClientSecret:   envOrDefault("MOCK_CLIENT_SECRET", defaultClientSecret),
	}
}

// Payload shapes match internal/matrack/devices.go.

type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type device struct {
	DeviceID     string  `json:"device_id"`
	Name         *string `json:"name"`
	LicensePlate *string `json:"license_plate"`
	IMEI         *string `json:"imei"`
}

type realtime struct {
	DeviceID       string   `json:"device_id"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Timestamp      string   `json:"timestamp"`
	Speed          *float64 `json:"speed"`
	Heading        *float64 `json:"heading"`
	IgnitionStatus *int     `json:"ignition_status"`
}

type trip struct {
	TripID    string   `json:"trip_id"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	StartLat  *float64 `json:"start_lat"`
	StartLng  *float64 `json:"start_lng"`
	EndLat    *float64 `json:"end_lat"`
	EndLng    *float64 `json:"end_lng"`
	Distance  *float64 `json:"distance"`
}

type alarm struct {
	AlarmID   string   `json:"alarm_id"`
	Timestamp string   `json:"timestamp"`
	AlarmType string   `json:"alarm_type"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	MediaURL  *string  `json:"media_url"`
}

// Token is an issued access/refresh token pair.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type rateWindow struct {
	Requests  int
	WindowEnd time.Time
}

// State holds all in-memory server state.
type State struct {
	mu         sync.Mutex
	tokens     map[string]*Token // keyed by access token
	refreshMap map[string]*Token // keyed by refresh token
	rateLimits map[string]*rateWindow
	devices    []device
	positions  map[string]*realtime
	trips      map[string][]trip
	alarms     map[string][]alarm
}

var (
	cfg   Config
	state *State
)

func init() {
	cfg = loadConfig()
	state = buildMockState(time.Now().UTC())
}

func ptr[T any](v T) *T { return &v }

func buildMockState(now time.Time) *State {
	s := &State{
		tokens:     make(map[string]*Token),
		refreshMap: make(map[string]*Token),
		rateLimits: make(map[string]*rateWindow),
		positions:  make(map[string]*realtime),
		trips:      make(map[string][]trip),
		alarms:     make(map[string][]alarm),
	}

	seeds := []struct {
		id, name, plate string
		lat, lng        float64
	}{
		{"MT-1001", "Delivery Van 1", "7ABC123", 37.7749, -122.4194},
		{"MT-1002", "Delivery Van 2", "7ABC124", 37.8044, -122.2712},
		{"MT-1003", "Service Truck", "8XYZ900", 37.3382, -121.8863},
	}
	for i, seed := range seeds {
		s.devices = append(s.devices, device{
			DeviceID:     seed.id,
			Name:         ptr(seed.name),
			LicensePlate: ptr(seed.plate),
			IMEI:         ptr(fmt.Sprintf("35%013d", i+1)),
		})
		s.positions[seed.id] = &realtime{
			DeviceID:       seed.id,
			Latitude:       seed.lat,
			Longitude:      seed.lng,
			Timestamp:      now.Format(time.RFC3339),
			Speed:          ptr(0.0),
			Heading:        ptr(0.0),
			IgnitionStatus: ptr(1),
		}

		start := now.Add(-time.Duration(3+i) * time.Hour)
		s.trips[seed.id] = []trip{{
			TripID:    seed.id + "-T1",
			StartTime: start.Format(time.RFC3339),
			EndTime:   start.Add(45 * time.Minute).Format(time.RFC3339),
			StartLat:  ptr(seed.lat - 0.05),
			StartLng:  ptr(seed.lng - 0.05),
			EndLat:    ptr(seed.lat),
			EndLng:    ptr(seed.lng),
			Distance:  ptr(12.4 + float64(i)),
		}}
		s.alarms[seed.id] = []alarm{
			{
				AlarmID:   seed.id + "-A1",
				Timestamp: start.Add(20 * time.Minute).Format(time.RFC3339),
				AlarmType: "harsh_braking",
				Latitude:  ptr(seed.lat - 0.02),
				Longitude: ptr(seed.lng - 0.02),
				MediaURL:  ptr(fmt.Sprintf("dashcam/%s/harsh_braking.mp4", seed.id)),
			},
			{
				AlarmID:   seed.id + "-A2",
				Timestamp: start.Add(30 * time.Minute).Format(time.RFC3339),
				AlarmType: "overspeed",
			},
		}
	}
	// A device that has never reported a fix
	s.devices = append(s.devices, device{DeviceID: "MT-1004", Name: ptr("Spare Trailer")})
	return s
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	r := mux.NewRouter()
	r.HandleFunc("/auth/token", handleToken).Methods(http.MethodPost)
	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/devices").Subrouter()
	api.Use(blockMiddleware, authMiddleware, rateLimitMiddleware)
	api.HandleFunc("", handleListDevices).Methods(http.MethodGet)
	api.HandleFunc("/{id}", handleGetDevice).Methods(http.MethodGet)
	api.HandleFunc("/{id}/realtime", handleRealtime).Methods(http.MethodGet)
	api.HandleFunc("/{id}/trips", handleTrips).Methods(http.MethodGet)
	api.HandleFunc("/{id}/alarms", handleAlarms).Methods(http.MethodGet)

	addr := ":" + cfg.Port

	slog.Info("mock_matrack.starting",
		"component", "mock_matrack",
		"event", "startup",
		"port", cfg.Port,
		"client_id", cfg.ClientID,
		"rate_limit", cfg.RateLimit,
		"service_blocked", cfg.ServiceBlocked,
		"token_expiry", cfg.TokenExpiry,
	)

	fmt.Printf("\n  Mock Matrack Server running on http://localhost:%s\n", cfg.Port)
	fmt.Printf("  Set FLEETDASH_MATRACK_BASE_URL=http://localhost:%s when running the server\n\n", cfg.Port)
	fmt.Printf("  Endpoints:\n")
	fmt.Printf("    POST /auth/token              - client_credentials & refresh_token grants\n")
	fmt.Printf("    GET  /devices                 - Device list\n")
	fmt.Printf("    GET  /devices/{id}            - Device\n")
	fmt.Printf("    GET  /devices/{id}/realtime   - Current fix\n")
	fmt.Printf("    GET  /devices/{id}/trips      - Trips\n")
	fmt.Printf("    GET  /devices/{id}/alarms     - Alarms\n")
	fmt.Printf("    GET  /health                  - Health check\n\n")
	fmt.Printf("  Config:\n")
	fmt.Printf("    Client ID:       %s\n", cfg.ClientID)
	fmt.Printf("    Client Secret:   %s\n", cfg.ClientSecret)
	fmt.Printf("    Rate Limit:      %d requests per minute\n", cfg.RateLimit)
	fmt.Printf("    Service Blocked: %v\n\n", cfg.ServiceBlocked)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal(err)
	}
}

// handleToken issues tokens for the client_credentials and refresh_token grants.
func handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "Invalid form data")
		return
	}
	if r.FormValue("client_id") != cfg.ClientID || r.FormValue("client_secret") != cfg.ClientSecret {
		writeTokenError(w, http.StatusUnauthorized, "invalid_client", "Unknown client")
		return
	}

	grantType := r.FormValue("grant_type")
	state.mu.Lock()
	defer state.mu.Unlock()

	switch grantType {
	case "client_credentials":
	case "refresh_token":
		old, ok := state.refreshMap[r.FormValue("refresh_token")]
		if !ok {
			writeTokenError(w, http.StatusBadRequest, "invalid_grant", "Unknown refresh token")
			return
		}
		delete(state.refreshMap, old.RefreshToken)
		delete(state.tokens, old.AccessToken)
	default:
		writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", grantType)
		return
	}

	tok := &Token{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    time.Now().Add(time.Duration(cfg.TokenExpiry) * time.Second),
	}
	state.tokens[tok.AccessToken] = tok
	state.refreshMap[tok.RefreshToken] = tok

	slog.Info("mock_matrack.token.issued",
		"component", "mock_matrack",
		"event", "token.issued",
		"grant_type", grantType,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  tok.AccessToken,
		"refresh_token": tok.RefreshToken,
		"expires_in":    cfg.TokenExpiry,
		"token_type":    "Bearer",
	})
}

func handleListDevices(w http.ResponseWriter, _ *http.Request) {
	state.mu.Lock()
	defer state.mu.Unlock()
	writeData(w, state.devices)
}

func handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state.mu.Lock()
	defer state.mu.Unlock()
	for _, d := range state.devices {
		if d.DeviceID == id {
			writeData(w, d)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, envelope{Status: false, Message: "device not found"})
}

// handleRealtime returns the current fix and nudges the device along its heading.
func handleRealtime(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state.mu.Lock()
	defer state.mu.Unlock()

	pos, ok := state.positions[id]
	if !ok {
		writeData(w, nil)
		return
	}
	pos.Latitude += (rand.Float64() - 0.5) * 0.002
	pos.Longitude += (rand.Float64() - 0.5) * 0.002
	pos.Speed = ptr(rand.Float64() * 90)
	pos.Heading = ptr(rand.Float64() * 360)
	pos.Timestamp = time.Now().UTC().Format(time.RFC3339)
	writeData(w, pos)
}

func handleTrips(w http.ResponseWriter, r *http.Request) {
	state.mu.Lock()
	defer state.mu.Unlock()
	writeData(w, orEmpty(state.trips[mux.Vars(r)["id"]]))
}

func handleAlarms(w http.ResponseWriter, r *http.Request) {
	state.mu.Lock()
	defer state.mu.Unlock()
	writeData(w, orEmpty(state.alarms[mux.Vars(r)["id"]]))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func blockMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.ServiceBlocked {
			w.Header().Set("X-Blocked", "Service temporarily blocked")
			slog.Warn("mock_matrack.service_blocked",
				"component", "mock_matrack",
				"event", "service_blocked",
			)
			http.Error(w, "Service blocked", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		state.mu.Lock()
		tok, ok := state.tokens[token]
		state.mu.Unlock()
		if !ok || time.Now().After(tok.ExpiresAt) {
			writeJSON(w, http.StatusUnauthorized, envelope{Status: false, Message: "invalid or expired token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		now := time.Now()

		state.mu.Lock()
		entry, exists := state.rateLimits[token]
		if !exists || now.After(entry.WindowEnd) {
			entry = &rateWindow{WindowEnd: now.Add(rateLimitWindow)}
			state.rateLimits[token] = entry
		}
		entry.Requests++
		exceeded := entry.Requests > cfg.RateLimit
		retryAfter := max(int(time.Until(entry.WindowEnd).Seconds()), 1)
		state.mu.Unlock()

		if exceeded {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			slog.Warn("mock_matrack.rate_limit.exceeded",
				"component", "mock_matrack",
				"event", "rate_limit.exceeded",
				"retry_after", retryAfter,
			)
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func extractBearerToken(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: true, Message: "ok", Data: data})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeTokenError(w http.ResponseWriter, statusCode int, errorCode, description string) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBoolOrDefault(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
