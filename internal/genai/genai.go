// Package genai provides the AI fallback diagnosis client using the OpenAI API.
//
// The client is the engine's only suspension point: calls are bounded by a
// timeout and every failure mode (transport, timeout, empty payload) collapses
// into ErrDiagnosisUnavailable so the evaluator can absorb it uniformly.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default configuration for diagnosis completions.
const (
	DefaultModel       = openai.ChatModelGPT4oMini
	DefaultTimeout     = 30 * time.Second
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 800
)

// SystemPrompt instructs the model to act as an HVAC troubleshooting assistant.
const SystemPrompt = "You are an expert HVAC troubleshooting assistant. Provide a clear, " +
	"step-by-step guide to troubleshoot the user's issue. Always include safety warnings " +
	"where appropriate and advise calling a certified HVAC professional for anything " +
	"involving electrical internals, gas, or refrigerant."

// StandardSafetyWarning accompanies every AI-sourced diagnosis.
const StandardSafetyWarning = "Always prioritize safety."

// ErrDiagnosisUnavailable is the uniform failure signal for any transport,
// timeout, or malformed-payload error from the completion API.
var ErrDiagnosisUnavailable = errors.New("AI diagnosis unavailable")

// DiagnosticRequest describes the problem sent to the model.
type DiagnosticRequest struct {
	IssueDescription      string   `json:"issue_description"`
	SystemTypeDisplayName string   `json:"system_type_display_name"`
	Symptoms              []string `json:"symptoms"`
}

// DiagnosticResponse carries the free-text remediation content.
type DiagnosticResponse struct {
	Text          string `json:"text"`
	SafetyWarning string `json:"safety_warning,omitempty"`
}

// Diagnoser is the evaluator's view of the AI fallback client.
type Diagnoser interface {
	Diagnose(ctx context.Context, req DiagnosticRequest) (DiagnosticResponse, error)
}

// completionService is the minimal surface of the OpenAI client used here,
// extracted for tests.
type completionService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout bounds each diagnosis call.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI chat completion service for diagnosis generation.
type Client struct {
	completions completionService
	model       string
	timeout     time.Duration
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable, the model to OPENAI_MODEL.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI client initialized", "model", cfg.Model, "timeout", cfg.Timeout)
	return &Client{completions: &cli.Chat.Completions, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Diagnose requests a free-text diagnosis for the described problem. Any
// failure is logged and returned as ErrDiagnosisUnavailable.
func (c *Client) Diagnose(ctx context.Context, req DiagnosticRequest) (DiagnosticResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("System Type: %s\nIssue: %s\nSymptoms: %s",
		req.SystemTypeDisplayName, req.IssueDescription, strings.Join(req.Symptoms, ", "))

	slog.Debug("GenAI Diagnose invoked", "system", req.SystemTypeDisplayName, "symptoms", len(req.Symptoms))
	resp, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(DefaultTemperature),
		MaxTokens:   openai.Int(DefaultMaxTokens),
	})
	if err != nil {
		slog.Error("GenAI Diagnose completion failed", "error", err, "system", req.SystemTypeDisplayName)
		return DiagnosticResponse{}, fmt.Errorf("%w: %v", ErrDiagnosisUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Error("GenAI Diagnose returned no content", "system", req.SystemTypeDisplayName)
		return DiagnosticResponse{}, fmt.Errorf("%w: empty completion", ErrDiagnosisUnavailable)
	}
	slog.Debug("GenAI Diagnose succeeded", "system", req.SystemTypeDisplayName)
	return DiagnosticResponse{
		Text:          resp.Choices[0].Message.Content,
		SafetyWarning: StandardSafetyWarning,
	}, nil
}
