package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/domain"
)

const maxSubmitBodyBytes = 64 << 10

type submitJobRequest struct {
	Prompt   string `json:"prompt"`
	Platform string `json:"platform"`
}

type submitJobResponse struct {
	JobID       string `json:"jobID"`
	ResultURL   string `json:"resultURL,omitempty"`
	IsDuplicate bool   `json:"isDuplicate,omitempty"`
}

type cancelRejectedResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Status  domain.JobStatus `json:"status"`
}

// SubmitJob records a new pending job, or answers with a recent identical
// completed job without creating one.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Prompt == "" || req.Platform == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt and platform are required")
		return
	}

	res, err := a.Jobs.Submit(r.Context(), userID, req.Prompt, req.Platform)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrProfanityDetected):
		a.jobError(w, http.StatusBadRequest, domain.ErrorKindProfanity, domain.ErrProfanityDetected.Message)
		return
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusBadRequest, "bad_request", "invalid prompt")
		return
	case errors.Is(err, domain.ErrInvalidPlatform):
		a.error(w, http.StatusBadRequest, "bad_request", "invalid platform")
		return
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	default:
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("api: submit job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}

	if res.Duplicate {
		a.json(w, http.StatusOK, submitJobResponse{JobID: res.JobID, ResultURL: res.ResultURL, IsDuplicate: true})
		return
	}
	a.Logger.Info().Str("job_id", res.JobID).Str("user_id", userID).Str("platform", req.Platform).Msg("api: job queued")
	a.json(w, http.StatusAccepted, submitJobResponse{JobID: res.JobID})
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Jobs.GetStatus(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("api: load job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, job)
}

// CancelJob moves a pending job to cancelled. Jobs in any other status are
// left untouched and reported back with their current status.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Jobs.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		var rejected *domain.CancelRejectedError
		switch {
		case errors.As(err, &rejected):
			a.json(w, http.StatusBadRequest, cancelRejectedResponse{
				Error:   "not_cancellable",
				Message: "only pending jobs can be cancelled",
				Status:  rejected.Status,
			})
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		default:
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("api: cancel job failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
		}
		return
	}
	a.Logger.Info().Str("job_id", job.ID).Str("user_id", userID).Msg("api: job cancelled")
	a.json(w, http.StatusOK, job)
}
