package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"genstudio/internal/domain"
)

// StreamJobs pushes the caller's job transitions as server-sent events for
// as long as the connection stays open. Nothing is replayed on connect.
func (a *App) StreamJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	ctx := r.Context()

	events, unsubscribe, err := a.Bus.Subscribe(ctx, domain.AllEventTypes...)
	if err != nil {
		a.Logger.Error().Err(err).Msg("api: subscribe to job events failed")
		a.error(w, http.StatusServiceUnavailable, "unavailable", "event stream unavailable")
		return
	}
	defer unsubscribe()

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		a.Logger.Debug().Err(err).Msg("api: clear stream write deadline failed")
	}
	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		a.Logger.Warn().Err(err).Msg("api: response does not support streaming")
		return
	}

	heartbeat := a.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	logger := a.Logger.With().Str("user_id", userID).Logger()
	logger.Debug().Msg("api: job stream opened")
	defer logger.Debug().Msg("api: job stream closed")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Job.UserID != userID {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				logger.Warn().Err(err).Str("job_id", ev.Job.ID).Msg("api: write job event failed")
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, ev domain.Event) error {
	data, err := json.Marshal(ev.Job)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type.StreamName(), data)
	return err
}
