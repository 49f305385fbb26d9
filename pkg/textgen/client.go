package textgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"cehpoint/project-portal/project-portal-backend/pkg/metrics"
)

const DefaultModel = "gemini-2.0-flash"

// ErrNotConfigured is returned when no API key was provided
var ErrNotConfigured = errors.New("text generation API key is not configured")

// APIError carries the upstream status so handlers can propagate it
type APIError struct {
	Name       string `json:"name"`
	StatusCode int    `json:"status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.StatusCode, e.Message)
}

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, operation, prompt string) (string, error)
}

// Config configures the client. BaseURL overrides the Gemini API host.
type Config struct {
	APIKey  string        `json:"api_key"`
	Model   string        `json:"model"`
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// Client calls Gemini generateContent. Each call is a single attempt.
type Client struct {
	config  Config
	models  *genai.Models
	initErr error
	logger  *zap.Logger
}

func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 90 * time.Second
	}

	c := &Client{config: config, logger: logger}
	if config.APIKey == "" {
		return c
	}

	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      config.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: config.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: config.BaseURL},
	})
	if err != nil {
		c.initErr = fmt.Errorf("failed to create text generation client: %w", err)
		return c
	}
	c.models = gc.Models
	return c
}

// Generate sends prompt and returns the text of the first candidate
func (c *Client) Generate(ctx context.Context, operation, prompt string) (string, error) {
	if c.config.APIKey == "" {
		return "", ErrNotConfigured
	}
	if c.initErr != nil {
		return "", c.initErr
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), nil)
	if err != nil {
		apiErr := asAPIError(err)
		if apiErr == nil {
			metrics.RecordTextGenLatency(operation, "error", time.Since(start))
			return "", fmt.Errorf("text generation request failed: %w", err)
		}
		metrics.RecordTextGenLatency(operation, http.StatusText(apiErr.StatusCode), time.Since(start))
		c.logger.Error("Text generation returned an error",
			zap.String("operation", operation),
			zap.Int("status", apiErr.StatusCode),
			zap.String("message", apiErr.Message))
		return "", apiErr
	}
	metrics.RecordTextGenLatency(operation, http.StatusText(http.StatusOK), time.Since(start))

	if resp == nil || len(resp.Candidates) == 0 {
		return "", &APIError{Name: "EmptyResponse", StatusCode: http.StatusBadGateway, Message: "no candidates returned"}
	}
	return resp.Text(), nil
}

func asAPIError(err error) *APIError {
	var upstream genai.APIError
	if errors.As(err, &upstream) {
		return fromUpstream(upstream)
	}
	var upstreamPtr *genai.APIError
	if errors.As(err, &upstreamPtr) && upstreamPtr != nil {
		return fromUpstream(*upstreamPtr)
	}
	return nil
}

func fromUpstream(e genai.APIError) *APIError {
	apiErr := &APIError{Name: "APIError", StatusCode: e.Code, Message: e.Message}
	if e.Status != "" {
		apiErr.Name = e.Status
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(e.Code)
	}
	return apiErr
}
