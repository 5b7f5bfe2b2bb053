// Package geoip maps client addresses to ISO country codes using a MaxMind
// GeoIP2 or GeoLite2 country database.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned by lookups on a nil Resolver.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// cacheLimit bounds the lookup cache. The cache is dropped wholesale when
// full.
const cacheLimit = 4096

type Resolver struct {
	reader *geoip2.Reader

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver opens the database at path. An empty path disables lookups and
// yields a nil *Resolver.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader, cache: make(map[string]string)}, nil
}

// CountryCode returns the ISO code for ip, or "" when the database has no
// answer. Addresses that cannot be routed publicly are never looked up.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	if !publicAddr(addr) {
		return "", nil
	}

	key := addr.String()
	if code, ok := r.cached(key); ok {
		return code, nil
	}
	record, err := r.reader.Country(addr)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup %s: %w", key, err)
	}
	code := record.Country.IsoCode
	r.store(key, code)
	return code, nil
}

func (r *Resolver) cached(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.cache[key]
	return code, ok
}

func (r *Resolver) store(key, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cache) >= cacheLimit {
		clear(r.cache)
	}
	r.cache[key] = code
}

func publicAddr(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsMulticast())
}

func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
