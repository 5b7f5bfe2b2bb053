package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"genstudio/internal/retry"
)

// ErrEmptyResponse is returned when Gemini answers without usable content.
var ErrEmptyResponse = errors.New("genai: empty response")

// maxErrorBody caps how much of a failed response ends up in error messages.
const (
	maxErrorBody = 4 << 10
	apiKeyHeader = "x-goog-api-key"
)

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini: status %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether repeating the request may succeed. Client errors
// other than throttling will fail the same way again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string    `json:"text,omitempty"`
	InlineData *blobData `json:"inlineData,omitempty"`
	FileData   *fileData `json:"fileData,omitempty"`
}

type blobData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type generationConfig struct {
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason,omitempty"`
	} `json:"candidates"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type generatedImage struct {
	data     []byte
	mimeType string
	uri      string
}

// geminiAPI speaks the generateContent endpoint.
type geminiAPI struct {
	key     string
	baseURL string
	http    *http.Client
}

func userPrompt(prompt string) []content {
	return []content{{Role: "user", Parts: []part{{Text: prompt}}}}
}

func (g *geminiAPI) text(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.generate(ctx, model, generateRequest{
		Contents:         userPrompt(prompt),
		GenerationConfig: &generationConfig{CandidateCount: 1},
	})
	if err != nil {
		return "", err
	}
	for _, cand := range resp.Candidates {
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text, nil
		}
	}
	return "", ErrEmptyResponse
}

func (g *geminiAPI) image(ctx context.Context, model, prompt string) (generatedImage, error) {
	resp, err := g.generate(ctx, model, generateRequest{
		Contents:         userPrompt(prompt),
		GenerationConfig: &generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	})
	if err != nil {
		return generatedImage{}, err
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			switch {
			case p.InlineData != nil && p.InlineData.Data != "":
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return generatedImage{}, retry.Permanent(fmt.Errorf("gemini: decode inline image: %w", err))
				}
				return generatedImage{data: data, mimeType: p.InlineData.MimeType}, nil
			case p.FileData != nil && p.FileData.FileURI != "":
				return generatedImage{uri: p.FileData.FileURI, mimeType: p.FileData.MimeType}, nil
			}
		}
	}
	return generatedImage{}, ErrEmptyResponse
}

// generate posts one request. Errors that cannot succeed on a second try are
// marked permanent so the worker does not spend its retry budget on them.
func (g *geminiAPI) generate(ctx context.Context, model string, payload generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("gemini: marshal request: %w", err))
	}
	endpoint := g.baseURL + "/models/" + url.PathEscape(model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("gemini: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, g.key)

	res, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		apiErr := decodeAPIError(res)
		if !apiErr.Retryable() {
			return nil, retry.Permanent(apiErr)
		}
		return nil, apiErr
	}

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	return &out, nil
}

func decodeAPIError(res *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: res.StatusCode}
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
