package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTokenMalformed = errors.New("malformed token")
	ErrTokenAlgorithm = errors.New("unsupported token algorithm")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSubject   = errors.New("token has no subject")
)

// TokenClaims is the HS256 payload issued to studio users. Sub is the user id
// every job is scoped to. Exp is optional.
type TokenClaims struct {
	Sub      string `json:"sub"`
	Exp      int64  `json:"exp,omitempty"`
	Issuer   string `json:"iss,omitempty"`
	Audience string `json:"aud,omitempty"`
}

type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
}

var hs256Header = mustSegment(jwtHeader{Alg: "HS256", Typ: "JWT"})

func SignJWT(secret string, claims TokenClaims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	signingInput := hs256Header + "." + base64.RawURLEncoding.EncodeToString(payload)
	return signingInput + "." + signature(secret, signingInput), nil
}

// VerifyJWT checks an HS256 token against secret and returns its claims.
func VerifyJWT(secret, token string) (*TokenClaims, error) {
	return verifyJWT(secret, token, time.Now())
}

func verifyJWT(secret, token string, now time.Time) (*TokenClaims, error) {
	head, rest, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrTokenMalformed
	}
	body, sig, ok := strings.Cut(rest, ".")
	if !ok || strings.Contains(sig, ".") {
		return nil, ErrTokenMalformed
	}

	var header jwtHeader
	if err := decodeSegment(head, &header); err != nil {
		return nil, err
	}
	if header.Alg != "HS256" {
		return nil, fmt.Errorf("%w: %q", ErrTokenAlgorithm, header.Alg)
	}
	if !hmac.Equal([]byte(signature(secret, head+"."+body)), []byte(sig)) {
		return nil, ErrTokenSignature
	}

	var claims TokenClaims
	if err := decodeSegment(body, &claims); err != nil {
		return nil, err
	}
	if claims.Exp != 0 && now.Unix() > claims.Exp {
		return nil, ErrTokenExpired
	}
	if strings.TrimSpace(claims.Sub) == "" {
		return nil, ErrTokenSubject
	}
	return &claims, nil
}

func signature(secret, signingInput string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingInput))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return nil
}

func mustSegment(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}
