package infra

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPServerServeAndShutdown(t *testing.T) {
	cfg := &Config{Port: "0", HTTPReadTimeout: time.Second, HTTPIdleTimeout: time.Second}
	srv := NewHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}), zerolog.Nop())
	assert.Equal(t, ":0", srv.Addr())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-served, "shutdown is not reported as an error")
}

func TestWarnWriterLogsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	w := warnWriter{logger: zerolog.New(&buf)}
	n, err := w.Write([]byte("http: TLS handshake error\n"))
	require.NoError(t, err)
	assert.Equal(t, 26, n)
	assert.JSONEq(t, `{"level":"warn","message":"http: TLS handshake error"}`, buf.String())
}
