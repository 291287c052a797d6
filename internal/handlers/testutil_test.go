package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/edgetensor/fleetdash/internal/config"
	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/edgetensor/fleetdash/internal/media"
	"github.com/edgetensor/fleetdash/internal/services"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func newTestDeps(t *testing.T) *Dependencies {
	t.Helper()
	mr := miniredis.RunT(t)
	conns := db.SetupTestDB(t)
	rc, err := db.NewRedisClient("redis://"+mr.Addr(), "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	conns.Redis = rc

	mediaRoot := t.TempDir()
	return &Dependencies{
		Config:  &config.Config{},
		Conns:   conns,
		Devices: services.NewDeviceService(conns, 10*time.Second),
		Signer:  media.NewSigner("http://localhost:8080/media", "test-key", time.Minute),
		Storage: media.NewStorage(mediaRoot),
	}
}

func serve(h http.Handler, req *http.Request, vars map[string]string) *httptest.ResponseRecorder {
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func floatPtr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }
