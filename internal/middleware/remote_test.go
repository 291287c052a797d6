package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var testProxies = []string{"10.0.0.0/8", "127.0.0.1/32"}

func captureRemote(t *testing.T, exposedDomain string, req *http.Request) (RemoteMetadata, *httptest.ResponseRecorder) {
	t.Helper()
	var captured RemoteMetadata
	handler := RemoteMetadataMiddleware(exposedDomain, testProxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RemoteFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return captured, rec
}

func fromProxy(req *http.Request) *http.Request {
	req.RemoteAddr = "10.0.0.1:41000"
	return req
}

func TestRemoteMetadata_CloudflareIPWins(t *testing.T) {
	req := fromProxy(httptest.NewRequest(http.MethodGet, "/", nil))
	req.Header.Set("CF-Connecting-IP", "203.0.113.5")
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	md, _ := captureRemote(t, "", req)

	assert.Equal(t, "203.0.113.5", md.IP)
}

func TestRemoteMetadata_ForwardedForRightMostUntrustedHop(t *testing.T) {
	req := fromProxy(httptest.NewRequest(http.MethodGet, "/", nil))
	// The client wrote the first entry; the proxies appended the rest.
	req.Header.Set("X-Forwarded-For", "203.0.113.99, 198.51.100.1, 10.0.0.2")
	req.Header.Set("X-Forwarded-Proto", "HTTPS")

	md, _ := captureRemote(t, "", req)

	assert.Equal(t, "198.51.100.1", md.IP)
	assert.Equal(t, "https", md.Protocol)
}

func TestRemoteMetadata_UntrustedPeerHeadersIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set("CF-Connecting-IP", "203.0.113.5")
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	md, _ := captureRemote(t, "", req)

	assert.Equal(t, "192.0.2.10", md.IP)
}

func TestRemoteMetadata_AllHopsTrustedFallsBackToFirst(t *testing.T) {
	req := fromProxy(httptest.NewRequest(http.MethodGet, "/", nil))
	req.Header.Set("X-Forwarded-For", "10.1.1.1, 10.0.0.2")

	md, _ := captureRemote(t, "", req)

	assert.Equal(t, "10.1.1.1", md.IP)
}

func TestRemoteMetadata_NoTrustedProxies(t *testing.T) {
	var captured RemoteMetadata
	handler := RemoteMetadataMiddleware("", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RemoteFromContext(r.Context())
	}))
	req := fromProxy(httptest.NewRequest(http.MethodGet, "/", nil))
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "10.0.0.1", captured.IP)
}

func TestRemoteMetadata_RemoteAddrWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:54321"

	md, _ := captureRemote(t, "", req)

	assert.Equal(t, "192.0.2.10", md.IP)
	assert.Empty(t, md.Protocol)
}

func TestRemoteMetadata_RedirectsHTTPToExposedDomain(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/devices/veh-1?tab=alarms", nil)
	req.Header.Set("X-Forwarded-Proto", "http")

	_, rec := captureRemote(t, "https://fleet.example.com", req)

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://fleet.example.com/devices/veh-1?tab=alarms", rec.Header().Get("Location"))
}

func TestRemoteMetadata_HSTSOnHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")

	_, rec := captureRemote(t, "https://fleet.example.com", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRemoteMetadata_NoRedirectWithoutProtocol(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, rec := captureRemote(t, "https://fleet.example.com", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}
