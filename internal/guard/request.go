package guard

import (
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"pawplanner/backend/internal/session/domain"
)

// Geo is the coarse location of a request as reported by the edge.
type Geo struct {
	City    string
	Country string
}

// Request is the part of an incoming request the guard reads. HTTP and gRPC
// front-ends each provide an adapter.
type Request interface {
	// Cookie returns the named cookie value and whether it was present.
	Cookie(name string) (string, bool)
	Header(name string) string
	ClientIP() string
	Geo() Geo
}

// FingerprintOf returns the client fingerprint observed on req.
func FingerprintOf(req Request) domain.Fingerprint {
	geo := req.Geo()
	return domain.Fingerprint{
		IPAddress: req.ClientIP(),
		UserAgent: req.Header("User-Agent"),
		City:      geo.City,
		Country:   geo.Country,
	}
}

// EdgeHeaders describes what the proxies in front of the server report: the
// headers that carry geolocation and which peers may set forwarding headers.
type EdgeHeaders struct {
	City    string
	Country string
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP are read.
	// Empty trusts no one and the client IP is the remote address.
	TrustedProxies []netip.Prefix
}

// HTTPRequest adapts *http.Request to Request.
type HTTPRequest struct {
	r    *http.Request
	edge EdgeHeaders
}

// NewHTTPRequest wraps r, reading geolocation and forwarding headers as edge describes.
func NewHTTPRequest(r *http.Request, edge EdgeHeaders) *HTTPRequest {
	return &HTTPRequest{r: r, edge: edge}
}

// Cookie returns the value of the named cookie.
func (h *HTTPRequest) Cookie(name string) (string, bool) {
	c, err := h.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// Header returns the first value of the named header.
func (h *HTTPRequest) Header(name string) string {
	return h.r.Header.Get(name)
}

// ClientIP returns the client address as resolved by ResolveClientIP.
func (h *HTTPRequest) ClientIP() string {
	return ResolveClientIP(h.r.RemoteAddr, h.r.Header.Values("X-Forwarded-For"), h.r.Header.Get("X-Real-IP"), h.edge.TrustedProxies)
}

// Geo returns the city and country headers. Edge providers URL-encode the city.
func (h *HTTPRequest) Geo() Geo {
	var g Geo
	if h.edge.City != "" {
		g.City = unescapeHeader(h.r.Header.Get(h.edge.City))
	}
	if h.edge.Country != "" {
		g.Country = unescapeHeader(h.r.Header.Get(h.edge.Country))
	}
	return g
}

func unescapeHeader(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if u, err := url.QueryUnescape(v); err == nil {
		return u
	}
	return v
}
