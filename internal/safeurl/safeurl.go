package safeurl

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes before a URL is fetched or published.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return (s == "http" || s == "https") && parsed.Host != ""
}

// SameOrigin reports whether u and base are both http(s) URLs with the same
// scheme and host (port included).
func SameOrigin(u, base string) bool {
	if !IsHTTPOrHTTPS(u) || !IsHTTPOrHTTPS(base) {
		return false
	}
	a, _ := url.Parse(u)
	b, _ := url.Parse(base)
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// Resolve resolves ref against base. Absolute refs are returned as is; when
// base does not parse, ref is returned unchanged.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ref
	}
	return b.ResolveReference(r).String()
}

// Referer returns the registrable-domain origin of u ("https://vieon.vn/" for
// "https://api.vieon.vn/x"), the form CDNs for the catalog check. Returns ""
// for non-HTTP input.
func Referer(u string) string {
	if !IsHTTPOrHTTPS(u) {
		return ""
	}
	parsed, _ := url.Parse(u)
	host := parsed.Hostname()
	if net.ParseIP(host) != nil {
		return parsed.Scheme + "://" + parsed.Host + "/"
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		domain = host
	}
	return "https://" + domain + "/"
}
