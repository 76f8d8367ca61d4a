package wsclient

import (
	"net"
	"net/url"
	"strings"
)

// wsURI is the parsed, validated form of a "ws://host[:port]/path[?query]"
// client URI.
type wsURI struct {
	host       string // host only, no port
	hostport   string // host:port, always carrying an explicit port
	hasPort    bool   // true if the caller supplied a non-default port
	requestURI string // path (+ "?" + query), "/" when empty
}

// parseWSURI validates and decomposes uri per spec section 4.1: scheme must
// be "ws", host is required, port defaults to 80, path defaults to "/", and
// any query string is preserved in the request line.
//
// Host/port splitting follows the same default-port-injection idiom as
// gobwas/ws's Dialer.hostport helper: treat everything up to the last colon
// (that isn't inside a bracketed IPv6 literal) as the host.
func parseWSURI(raw string) (wsURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return wsURI{}, newErr(KindConfigInvalid, "invalid URI %q: %v", raw, err)
	}
	if !strings.EqualFold(u.Scheme, "ws") {
		return wsURI{}, newErr(KindConfigInvalid, "unsupported scheme %q, only \"ws\" is supported", u.Scheme)
	}
	if u.Host == "" {
		return wsURI{}, newErr(KindConfigInvalid, "URI %q has no host", raw)
	}

	host, port, hasPort := splitHostPort(u.Host)
	if host == "" {
		return wsURI{}, newErr(KindConfigInvalid, "URI %q has an empty host", raw)
	}

	requestURI := u.Path
	if requestURI == "" {
		requestURI = "/"
	}
	if u.RawQuery != "" {
		requestURI += "?" + u.RawQuery
	}

	return wsURI{
		host:       host,
		hostport:   net.JoinHostPort(host, port),
		hasPort:    hasPort && port != "80",
		requestURI: requestURI,
	}, nil
}

// splitHostPort splits a URL authority into host and port, defaulting the
// port to "80" when none is present. hasPort reports whether the original
// authority carried an explicit port (used to decide whether the Host
// header needs one).
func splitHostPort(authority string) (host, port string, hasPort bool) {
	if h, p, err := net.SplitHostPort(authority); err == nil {
		return h, p, true
	}
	// No port present (net.SplitHostPort fails for a bare host or a bare
	// IPv6 literal without brackets).
	return strings.Trim(authority, "[]"), "80", false
}

// hostHeader returns the value for the Host header: "host:port" only when
// the caller supplied a non-default port, matching spec invariant 1.
func (u wsURI) hostHeader() string {
	if u.hasPort {
		return u.hostport
	}
	return u.host
}
