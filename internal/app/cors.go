package app

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
)

// corsConfig allows every origin unless patterns are configured. Patterns match the
// origin host: "example.com", "*.example.com" or "localhost:*".
func corsConfig(patterns, methods, headers, expose []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  methods,
		AllowHeaders:  headers,
		ExposeHeaders: expose,
	}
	if len(patterns) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOriginFunc = func(origin string) bool {
		host := extractOriginHost(origin)
		for _, pattern := range patterns {
			if pattern == "*" || matchOriginPattern(pattern, host) {
				return true
			}
		}
		return false
	}
	return cfg
}

var (
	serverMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	serverHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
)

// extractOriginHost returns the "host[:port]" portion of an origin URL.
func extractOriginHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

// matchOriginPattern reports whether host matches the given wildcard pattern.
func matchOriginPattern(pattern, host string) bool {
	pattern = extractOriginHost(pattern)
	if pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:]
		return strings.HasSuffix(host, suffix)
	}
	if strings.HasSuffix(pattern, ":*") {
		prefix := pattern[:len(pattern)-1]
		return strings.HasPrefix(host, prefix)
	}
	return false
}
