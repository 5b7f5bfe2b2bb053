// Package genai generates job results with Google's Gemini API. A client
// without an API key answers with deterministic synthetic content instead.
package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/storage"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel      = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"

	defaultTimeout = 60 * time.Second
)

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// ImageStore receives generated image bytes. Without one, GenerateImage
	// returns a data URL.
	ImageStore storage.ObjectStore
}

// Client implements the worker's text and image generators.
type Client struct {
	gemini     *geminiAPI
	model      string
	imageModel string
	logger     infra.Logger
	images     storage.ObjectStore
}

func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("genai: invalid base url: %w", err)
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		gemini: &geminiAPI{
			key:     strings.TrimSpace(opts.APIKey),
			baseURL: baseURL,
			http:    httpClient,
		},
		model:      firstNonEmpty(opts.Model, DefaultModel),
		imageModel: firstNonEmpty(opts.ImageModel, DefaultImageModel),
		logger:     logger.With().Str("component", "genai").Logger(),
		images:     opts.ImageStore,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client runs without an API key.
func (c *Client) Synthetic() bool {
	return c.gemini.key == ""
}

// GenerateText returns the model's answer to prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Synthetic() {
		text := syntheticText(c.model, prompt)
		c.logger.Debug().Str("model", c.model).Msg("generated synthetic text")
		return text, nil
	}

	text, err := c.gemini.text(ctx, c.model, prompt)
	if err != nil {
		return "", err
	}
	c.logger.Debug().Str("model", c.model).Int("chars", len(text)).Msg("generated text")
	return text, nil
}

// GenerateImage renders an image for prompt and returns where it can be
// fetched from.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seed := contentSeed(c.imageModel, prompt)
	if c.Synthetic() {
		c.logger.Debug().Str("model", c.imageModel).Msg("generated synthetic image")
		return c.publishImage(ctx, seed, syntheticImage(seed, syntheticImageSize), "image/png")
	}

	img, err := c.gemini.image(ctx, c.imageModel, prompt)
	if err != nil {
		return "", err
	}
	if len(img.data) == 0 {
		// The API handed back a hosted file rather than bytes.
		return img.uri, nil
	}
	c.logger.Debug().Str("model", c.imageModel).Str("format", img.mimeType).Int("bytes", len(img.data)).Msg("generated image")
	return c.publishImage(ctx, seed, img.data, firstNonEmpty(img.mimeType, "image/png"))
}

// publishImage stores generated bytes. Its failures are tagged as storage
// failures rather than provider ones.
func (c *Client) publishImage(ctx context.Context, seed string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyResponse
	}
	if c.images == nil {
		return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
	key := "images/" + url.PathEscape(c.imageModel) + "/" + seed + "." + extensionFor(mimeType)
	u, err := c.images.Upload(ctx, key, data, mimeType)
	if err != nil {
		return "", &domain.JobError{
			Kind:    domain.ErrorKindStorage,
			Message: domain.ErrorKindStorage.Message(),
			Err:     fmt.Errorf("genai: store image: %w", err),
		}
	}
	return u, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
