package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// leafletCDN serves the map library; tiles come from OpenStreetMap.
const (
	leafletCDN = "https://unpkg.com"
	osmTiles   = "https://*.tile.openstreetmap.org"
)

// SecurityHeadersMiddleware adds security headers to dashboard responses.
// mediaBaseURL is allowed as an image and video source so signed alarm media
// can be shown inline.
func SecurityHeadersMiddleware(mediaBaseURL string) func(http.Handler) http.Handler {
	mediaSrc := "'self'"
	if u, err := url.Parse(mediaBaseURL); err == nil && u.Scheme != "" && u.Host != "" {
		mediaSrc += " " + u.Scheme + "://" + u.Host
	}

	// The pages carry small inline scripts and styles, and the live map
	// opens a websocket back to this host.
	csp := strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' " + leafletCDN,
		"style-src 'self' 'unsafe-inline' " + leafletCDN,
		"img-src " + mediaSrc + " data: " + osmTiles + " " + leafletCDN,
		"media-src " + mediaSrc,
		"connect-src 'self' ws: wss:",
		"object-src 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", csp)
			w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

			next.ServeHTTP(w, r)
		})
	}
}
