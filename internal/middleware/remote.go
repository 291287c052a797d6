package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
)

// DefaultTrustedProxies covers the dashboard's own loopback calls to the API.
var DefaultTrustedProxies = []string{"127.0.0.1/32", "::1/128"}

// RemoteMetadataMiddleware captures reverse proxy headers and adds the client
// metadata to the request context. Client IP headers are only honoured when
// the connecting peer is inside one of trustedProxies. When exposedDomain is
// set, plain HTTP requests forwarded by a proxy are redirected to it and HTTPS
// responses get an HSTS header.
func RemoteMetadataMiddleware(exposedDomain string, trustedProxies []string) func(http.Handler) http.Handler {
	trust := newProxyTrust(trustedProxies)

	var canonicalHost string
	if exposedDomain != "" {
		u, err := url.Parse(exposedDomain)
		if err != nil || u.Host == "" {
			slog.Error("middleware.remote.invalid_domain",
				"component", "middleware",
				"event", "remote.invalid_domain",
				"domain", exposedDomain,
				"error", err,
			)
		} else {
			canonicalHost = u.Host
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metadata := RemoteMetadata{
				IP:       trust.clientIP(r),
				Protocol: extractProtocol(r),
			}

			if canonicalHost != "" {
				switch metadata.Protocol {
				case "http":
					redirectURL := &url.URL{
						Scheme:   "https",
						Host:     canonicalHost,
						Path:     r.URL.Path,
						RawQuery: r.URL.RawQuery,
					}
					slog.Info("middleware.remote.https_redirect",
						"component", "middleware",
						"event", "https.redirect",
						"from_path", r.URL.Path,
						"ip", metadata.IP,
					)
					http.Redirect(w, r, redirectURL.String(), http.StatusMovedPermanently)
					return
				case "https":
					w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithRemote(r.Context(), metadata)))
		})
	}
}

type proxyTrust []netip.Prefix

func newProxyTrust(cidrs []string) proxyTrust {
	trust := make(proxyTrust, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			slog.Error("middleware.remote.invalid_trusted_proxy",
				"component", "middleware",
				"event", "remote.invalid_proxy",
				"cidr", cidr,
				"error", err,
			)
			continue
		}
		trust = append(trust, prefix.Masked())
	}
	return trust
}

func (t proxyTrust) contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address unless the peer is a trusted proxy. Behind
// a trusted proxy it prefers CF-Connecting-IP, then the right-most
// X-Forwarded-For entry that is not itself a trusted proxy. Entries further
// left were supplied by the client and are ignored.
func (t proxyTrust) clientIP(r *http.Request) string {
	peer := peerIP(r)
	if !t.contains(peer) {
		return peer
	}

	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	for i := len(hops) - 1; i >= 0; i-- {
		if !t.contains(hops[i]) {
			return hops[i]
		}
	}
	if len(hops) > 0 {
		return hops[0]
	}
	return peer
}

func peerIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// extractProtocol returns "" when no proxy header or TLS state says otherwise,
// so that direct plain-HTTP access in development is never redirected.
func extractProtocol(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return strings.ToLower(proto)
	}
	if r.TLS != nil {
		return "https"
	}
	return ""
}
