package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports liveness plus the pending queue depth. A store that cannot
// answer within two seconds marks the service degraded.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	depth, err := a.Jobs.QueueDepth(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("api: health check failed")
		a.json(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"status": "ok", "pending_jobs": depth})
}
