// Package credentials keeps provider API keys in the integration_tokens
// table so operators can rotate them without redeploying.
package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

const ProviderGemini = "gemini"

var ErrEmptyToken = errors.New("credentials: token is required")

// Store reads and writes provider tokens. A nil *Store behaves as an empty
// store for resolution.
type Store struct {
	sql infra.SQLExecutor
	now func() time.Time
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, now: time.Now}
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	var token string
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectProviderToken, provider).Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: load %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// SetToken upserts provider's token. source names who stored it and is kept
// with the token's fingerprint in the row's properties.
func (s *Store) SetToken(ctx context.Context, provider, token, source string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	props, err := json.Marshal(map[string]string{
		"source":      source,
		"fingerprint": Fingerprint(token),
		"rotated_at":  s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertProviderToken, provider, token, props); err != nil {
		return fmt.Errorf("credentials: store %s token: %w", provider, err)
	}
	return nil
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key, source string) error {
	return s.SetToken(ctx, ProviderGemini, key, source)
}

// ResolveGeminiAPIKey returns configured when set and otherwise the stored
// key.
func (s *Store) ResolveGeminiAPIKey(ctx context.Context, configured string) (string, error) {
	if key := strings.TrimSpace(configured); key != "" || s == nil {
		return key, nil
	}
	return s.Token(ctx, ProviderGemini)
}

// Fingerprint identifies a token in logs without revealing it.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
