package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		lookup  CountryLookup
		want    string
	}{
		{name: "first header wins", headers: map[string]string{"X-Country-Code": "us", "CF-IPCountry": "id"}, want: "US"},
		{name: "cdn header", headers: map[string]string{"CF-IPCountry": "de"}, want: "DE"},
		{name: "unknown cdn marker falls through", headers: map[string]string{"CF-IPCountry": "XX"}, want: ""},
		{name: "garbage header ignored", headers: map[string]string{"X-Country-Code": "usa"}, lookup: func(string) (string, error) { return "fr", nil }, want: "FR"},
		{
			name: "lookup on remote host",
			lookup: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					return "", errors.New("unexpected ip " + ip)
				}
				return "my", nil
			},
			want: "MY",
		},
		{name: "lookup error", lookup: func(string) (string, error) { return "", errors.New("boom") }, want: ""},
		{name: "no hints", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ResolveCountry(req, tc.lookup))
		})
	}
}

func TestCountryMiddlewareStoresCountry(t *testing.T) {
	var got string
	h := Country(func(string) (string, error) { return "nz", nil })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CountryFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "NZ", got)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::2]:443"
	assert.Equal(t, "2001:db8::2", clientIP(req))
	req.RemoteAddr = "198.51.100.10"
	assert.Equal(t, "198.51.100.10", clientIP(req))
}
