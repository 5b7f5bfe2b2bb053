// Package client talks to the job API from the caller's side: submitting
// prompts, following the job event stream and tracking a single job to its
// terminal state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"genstudio/internal/domain"
)

// APIError is a non-2xx answer from the job API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// ErrorCode carries the job error kind, e.g. PROFANITY_DETECTED.
	ErrorCode domain.ErrorKind
	// Status is the job's current status on a rejected cancel.
	Status domain.JobStatus
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("api status %d: %s (%s)", e.StatusCode, msg, e.ErrorCode)
	}
	return fmt.Sprintf("api status %d: %s", e.StatusCode, msg)
}

// SubmitResponse is the answer to a job submission.
type SubmitResponse struct {
	JobID       string `json:"jobID"`
	ResultURL   string `json:"resultURL,omitempty"`
	IsDuplicate bool   `json:"isDuplicate,omitempty"`
}

// Client is a thin HTTP client for the job API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a Client for baseURL authenticating with a bearer token.
// The HTTP client must not carry an overall timeout if it is used for streams.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

// Submit posts a new job.
func (c *Client) Submit(ctx context.Context, prompt, platform string) (SubmitResponse, error) {
	var out SubmitResponse
	err := c.do(ctx, http.MethodPost, "/jobs", map[string]string{"prompt": prompt, "platform": platform}, &out)
	return out, err
}

// Status fetches the caller's job.
func (c *Client) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/status", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Cancel asks the server to cancel a pending job.
func (c *Client) Cancel(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/cancel", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// OpenStream connects to the caller's job event stream. The stream ends when
// ctx is cancelled or Close is called.
func (c *Client) OpenStream(ctx context.Context) (*Stream, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return newStream(resp.Body), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error     string           `json:"error"`
		Message   string           `json:"message"`
		ErrorCode domain.ErrorKind `json:"errorCode"`
		Status    domain.JobStatus `json:"status"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		apiErr.ErrorCode = body.ErrorCode
		apiErr.Status = body.Status
	} else if len(data) > 0 {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
