package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreUploadReturnsPublicURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/files/")
	require.NoError(t, err)

	u, err := store.Upload(context.Background(), "user-1/job-1", []byte("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/user-1/job-1", u)

	data, err := os.ReadFile(filepath.Join(dir, "user-1", "job-1"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost/files")
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/../../escape", "."} {
		_, err := store.Upload(context.Background(), key, []byte("x"), "")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFileStoreOverwritesWithoutLeavingTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost/files")
	require.NoError(t, err)

	for _, body := range []string{"first", "second"} {
		_, err := store.Upload(context.Background(), "/user-1/./job-1", []byte(body), "")
		require.NoError(t, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "user-1", "job-1"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "user-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreRequiresConfig(t *testing.T) {
	_, err := NewFileStore("", "http://localhost")
	assert.Error(t, err)
	_, err = NewFileStore(t.TempDir(), " ")
	assert.Error(t, err)
}

func TestFileStoreHonoursCancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost/files")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Upload(ctx, "a/b", []byte("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinioStoreUpload(t *testing.T) {
	var (
		mu          sync.Mutex
		gotPath     string
		gotBody     string
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		contentType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewMinioStore(MinioOptions{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "results",
	})
	require.NoError(t, err)

	u, err := store.Upload(context.Background(), "user-1/job-1", []byte("generated"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/results/user-1/job-1", u)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/results/user-1/job-1", gotPath)
	assert.Contains(t, gotBody, "generated", "payload may be aws-chunked over plain http")
	assert.Equal(t, "text/plain; charset=utf-8", contentType)
}

func TestMinioStorePublicBaseURL(t *testing.T) {
	store, err := NewMinioStore(MinioOptions{
		Endpoint:      "minio.internal:9000",
		Bucket:        "results",
		PublicBaseURL: "https://cdn.example.com/results/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/results", store.baseURL)
}

func TestMinioStoreRequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinioStore(MinioOptions{Bucket: "b"})
	assert.Error(t, err)
	_, err = NewMinioStore(MinioOptions{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}
