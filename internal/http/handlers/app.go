package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/events"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
)

// DefaultHeartbeat is how often an idle job stream receives a keep-alive comment.
const DefaultHeartbeat = 25 * time.Second

type App struct {
	Jobs      *domain.JobService
	Bus       events.Bus
	Logger    infra.Logger
	Heartbeat time.Duration
}

func NewApp(jobs *domain.JobService, bus events.Bus, logger infra.Logger) *App {
	return &App{Jobs: jobs, Bus: bus, Logger: logger, Heartbeat: DefaultHeartbeat}
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

func (a *App) jobError(w http.ResponseWriter, code int, kind domain.ErrorKind, message string) {
	a.json(w, code, errorResponse{Error: "bad_request", Message: message, ErrorCode: string(kind)})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
