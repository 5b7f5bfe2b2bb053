package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition may leave the status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition encodes the job state graph:
// pending -> processing -> completed|failed, and pending -> cancelled.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusCancelled
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ErrorKind is the coarse, user-visible failure classification recorded on a job.
type ErrorKind string

const (
	ErrorKindProfanity ErrorKind = "PROFANITY_DETECTED"
	ErrorKindAIService ErrorKind = "AI_SERVICE_ERROR"
	ErrorKindStorage   ErrorKind = "STORAGE_UPLOAD_ERROR"
	ErrorKindUnknown   ErrorKind = "UNKNOWN_ERROR"
)

// Message is the text shown to users for a failure of this kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorKindProfanity:
		return "prompt contains inappropriate language"
	case ErrorKindAIService:
		return "content generation failed"
	case ErrorKindStorage:
		return "storing the result failed"
	default:
		return "internal error"
	}
}

// Job encapsulates the lifecycle of a single text or image generation request.
type Job struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userID"`
	Prompt       string    `json:"prompt"`
	Platform     string    `json:"platform"`
	Status       JobStatus `json:"status"`
	Cost         float64   `json:"cost"`
	ResultURL    string    `json:"resultURL,omitempty"`
	ErrorKind    ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SubmitResult is returned by JobService.Submit. When Duplicate is set the
// job already existed and ResultURL carries its completed output.
type SubmitResult struct {
	JobID     string
	ResultURL string
	Duplicate bool
}

// PlatformKind decides whether a platform routes to text or image generation.
type PlatformKind string

const (
	PlatformKindText  PlatformKind = "text"
	PlatformKindImage PlatformKind = "image"
)

// DedupWindow is the trailing interval in which an identical completed job
// short-circuits a new submission.
const DedupWindow = time.Hour
