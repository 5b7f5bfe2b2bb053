package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/sqlinline"
)

type stubExecutor struct {
	token   string
	err     error
	queries int
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queries++
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	store := NewStore(&stubExecutor{token: " abc123 "})
	key, err := store.Token(context.Background(), ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)
}

func TestTokenNoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.Token(context.Background(), ProviderGemini)
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestResolveGeminiAPIKeyPrefersConfigured(t *testing.T) {
	exec := &stubExecutor{token: "stored"}
	key, err := NewStore(exec).ResolveGeminiAPIKey(context.Background(), " from-env ")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
	assert.Zero(t, exec.queries)
}

func TestResolveGeminiAPIKeyFallsBackToStore(t *testing.T) {
	key, err := NewStore(&stubExecutor{token: "stored"}).ResolveGeminiAPIKey(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "stored", key)

	var nilStore *Store
	key, err = nilStore.ResolveGeminiAPIKey(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, key)

	_, err = NewStore(&stubExecutor{err: errors.New("boom")}).ResolveGeminiAPIKey(context.Background(), "")
	assert.Error(t, err)
}

func TestSetGeminiAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	store.now = func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, store.SetGeminiAPIKey(context.Background(), " secret ", "geminikey"))
	assert.Equal(t, sqlinline.QUpsertProviderToken, exec.exec.query)
	require.Len(t, exec.exec.args, 3)
	assert.Equal(t, ProviderGemini, exec.exec.args[0])
	assert.Equal(t, "secret", exec.exec.args[1])

	var props map[string]string
	require.NoError(t, json.Unmarshal(exec.exec.args[2].([]byte), &props))
	assert.Equal(t, "geminikey", props["source"])
	assert.Equal(t, Fingerprint("secret"), props["fingerprint"])
	assert.Equal(t, "2026-05-04T09:00:00Z", props["rotated_at"])
}

func TestFingerprint(t *testing.T) {
	assert.Len(t, Fingerprint("secret"), 8)
	assert.Equal(t, Fingerprint("secret"), Fingerprint("secret"))
	assert.NotEqual(t, Fingerprint("secret"), Fingerprint("secret2"))
	assert.Empty(t, Fingerprint(""))
}

func TestSetGeminiAPIKeyEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	assert.ErrorIs(t, store.SetGeminiAPIKey(context.Background(), " ", "test"), ErrEmptyToken)
}
