package middleware

import (
	"context"
	"net/http"
	"strings"
)

type countryKey struct{}

// CountryLookup resolves an ISO country code for an IP address.
type CountryLookup func(ip string) (string, error)

// Edge proxies that already geolocated the caller, in order of trust.
var countryHeaders = []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"}

// Country tags the request context with the caller's country for the access
// log. Requests without any hint pass through untouched.
func Country(lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if code := ResolveCountry(r, lookup); code != "" {
				r = r.WithContext(context.WithValue(r.Context(), countryKey{}, code))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CountryFromContext(ctx context.Context) string {
	code, _ := ctx.Value(countryKey{}).(string)
	return code
}

// ResolveCountry prefers edge headers and falls back to lookup on the client
// IP. Anything that is not a two-letter code is ignored.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	for _, h := range countryHeaders {
		if code, ok := countryCode(r.Header.Get(h)); ok {
			return code
		}
	}
	if lookup == nil {
		return ""
	}
	raw, err := lookup(clientIP(r))
	if err != nil {
		return ""
	}
	code, _ := countryCode(raw)
	return code
}

func countryCode(v string) (string, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) != 2 || v[0] < 'A' || v[0] > 'Z' || v[1] < 'A' || v[1] > 'Z' {
		return "", false
	}
	// Cloudflare's marker for unknown origin.
	if v == "XX" {
		return "", false
	}
	return v, true
}
