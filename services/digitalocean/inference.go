package digitalocean

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sahilchouksey/syllabus-sync/utils/llmjson"
	"github.com/sahilchouksey/syllabus-sync/utils/resilience"
)

const (
	// InferenceBaseURL is the DigitalOcean AI Inference API base URL
	InferenceBaseURL = "https://inference.do-ai.run"
	// DefaultInferenceTimeout bounds a single structuring call
	DefaultInferenceTimeout = 60 * time.Second
	// DefaultInferenceModel is the default model for inference
	DefaultInferenceModel = "openai-gpt-oss-120b"

	defaultRateLimit = 2.0 // requests per second
	defaultBurst     = 4
)

// StructuringStop ends generation at a closing markdown fence. The opening fence is not matched so
// a reply that starts with ```json still produces content.
var StructuringStop = []string{"\n```"}

// ErrStructuringTimeout is returned when a structuring call exceeds its deadline
var ErrStructuringTimeout = errors.New("structuring call timed out")

// APIError is a non-2xx reply from the inference API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("inference API error (status %d): %s", e.StatusCode, e.Body)
}

// Sampling holds the near-deterministic decoding parameters used for structuring
type Sampling struct {
	Temperature float64
	TopP        float64
	// TopK is omitted from the request when zero
	TopK int
}

// DefaultSampling returns low temperature/top-p decoding
func DefaultSampling() Sampling {
	return Sampling{Temperature: 0.1, TopP: 0.8}
}

// InferenceClient handles direct LLM inference API calls
type InferenceClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
	timeout    time.Duration
	sampling   Sampling

	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// InferenceConfig holds configuration for the inference client
type InferenceConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Model    string
	Sampling *Sampling

	// RateLimit is requests per second; zero uses the default
	RateLimit float64
	Burst     int

	Breaker *resilience.Breaker
	Logger  *zap.Logger
}

// NewInferenceClient creates a new DigitalOcean AI Inference client
func NewInferenceClient(config InferenceConfig) *InferenceClient {
	if config.BaseURL == "" {
		config.BaseURL = InferenceBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultInferenceTimeout
	}
	if config.Model == "" {
		config.Model = DefaultInferenceModel
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Burst <= 0 {
		config.Burst = defaultBurst
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	sampling := DefaultSampling()
	if config.Sampling != nil {
		sampling = *config.Sampling
	}
	breaker := config.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultConfig("inference"), config.Logger, countsAgainstUpstream)
	}

	return &InferenceClient{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		// the per-call deadline comes from the context; this is only a backstop
		httpClient: &http.Client{Timeout: config.Timeout + 5*time.Second},
		model:      config.Model,
		timeout:    config.Timeout,
		sampling:   sampling,
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		breaker:    breaker,
		logger:     config.Logger,
	}
}

// InferenceMessage represents a message in the inference chat completion request
type InferenceMessage struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The message content
}

// InferenceRequest represents an OpenAI-compatible chat completion request
type InferenceRequest struct {
	Model       string             `json:"model"`
	Messages    []InferenceMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	TopP        float64            `json:"top_p,omitempty"`
	TopK        int                `json:"top_k,omitempty"`
	Stop        []string           `json:"stop,omitempty"`
}

// InferenceChoice represents a choice in the inference response
type InferenceChoice struct {
	Index        int              `json:"index"`
	Message      InferenceMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// InferenceUsage represents token usage information
type InferenceUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InferenceResponse represents the response from the inference API
type InferenceResponse struct {
	ID      string            `json:"id"`
	Model   string            `json:"model"`
	Choices []InferenceChoice `json:"choices"`
	Usage   InferenceUsage    `json:"usage"`
}

// InferenceOption is a function that modifies the inference request
type InferenceOption func(*InferenceRequest)

// WithInferenceTemperature sets the temperature for the request
func WithInferenceTemperature(temp float64) InferenceOption {
	return func(req *InferenceRequest) {
		req.Temperature = temp
	}
}

// WithInferenceTopP sets the top_p value for the request
func WithInferenceTopP(topP float64) InferenceOption {
	return func(req *InferenceRequest) {
		req.TopP = topP
	}
}

// WithInferenceTopK sets the top_k value for the request
func WithInferenceTopK(topK int) InferenceOption {
	return func(req *InferenceRequest) {
		req.TopK = topK
	}
}

// WithInferenceStop sets stop sequences
func WithInferenceStop(stop ...string) InferenceOption {
	return func(req *InferenceRequest) {
		req.Stop = stop
	}
}

// ChatCompletion sends a chat completion request to the inference API
func (c *InferenceClient) ChatCompletion(ctx context.Context, messages []InferenceMessage, options ...InferenceOption) (*InferenceResponse, error) {
	req := InferenceRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   4096,
	}
	for _, opt := range options {
		opt(&req)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	var result *InferenceResponse
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = c.sendChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *InferenceClient) sendChatCompletion(ctx context.Context, req InferenceRequest) (*InferenceResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("inference API returned error status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result InferenceResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// SimpleCompletion is a convenience method for single-turn completions
func (c *InferenceClient) SimpleCompletion(ctx context.Context, systemPrompt, userPrompt string, options ...InferenceOption) (string, error) {
	messages := []InferenceMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	resp, err := c.ChatCompletion(ctx, messages, options...)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from inference API")
	}

	return resp.Choices[0].Message.Content, nil
}

// Structure runs one structuring exchange and returns the model text with markdown fences trimmed.
// The call is bounded by the client timeout and is never retried.
func (c *InferenceClient) Structure(ctx context.Context, userText, systemPrompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	content, err := c.SimpleCompletion(callCtx, systemPrompt, userText,
		WithInferenceTemperature(c.sampling.Temperature),
		WithInferenceTopP(c.sampling.TopP),
		WithInferenceTopK(c.sampling.TopK),
		WithInferenceStop(StructuringStop...),
	)
	if err != nil {
		if ctx.Err() == nil && isTimeout(callCtx, err) {
			return "", fmt.Errorf("%w after %s: %v", ErrStructuringTimeout, time.Since(started).Round(time.Millisecond), err)
		}
		return "", err
	}

	return llmjson.TrimFences(content), nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// countsAgainstUpstream keeps client-side and request-content errors from tripping the breaker
func countsAgainstUpstream(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
