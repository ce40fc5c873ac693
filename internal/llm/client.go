package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	cerrors "codeagent/internal/errors"
	"codeagent/internal/logging"
	"codeagent/internal/observability"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ProviderLiteLLM    = "litellm"
	ProviderOpenRouter = "openrouter"

	DefaultTemperature = 0.7
	DefaultMaxTokens   = 128000
)

// Config selects the OpenAI-compatible endpoint a Client talks to.
type Config struct {
	Provider    string
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// chatAPI is the subset of the go-openai client used here.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client sends chat completions to a LiteLLM or OpenRouter endpoint and
// implements llms.Model so the agent runtime can drive it.
type Client struct {
	api         chatAPI
	provider    string
	model       string
	temperature float64
	maxTokens   int
	logger      logging.Logger
	tracer      *observability.TracerProvider
}

var _ llms.Model = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the component logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(logger) }
}

// WithTracer records a span per completion.
func WithTracer(tracer *observability.TracerProvider) Option {
	return func(c *Client) { c.tracer = tracer }
}

// NewClient validates cfg and builds a client. Missing credentials, an
// unsupported provider or a missing api_base yield *errors.ConfigError.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	apiConfig.BaseURL = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Timeout > 0 {
		apiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return newClient(cfg, openai.NewClientWithConfig(apiConfig), opts...), nil
}

func newClient(cfg Config, api chatAPI, opts ...Option) *Client {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	c := &Client{
		api:         api,
		provider:    strings.ToLower(strings.TrimSpace(cfg.Provider)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		logger:      logging.NewComponentLogger("llm"),
		tracer:      observability.NoopTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks the fields NewClient needs.
func Validate(cfg Config) error {
	var missing []string
	if strings.TrimSpace(cfg.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return cerrors.MissingFields("LLM", missing...)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderLiteLLM, ProviderOpenRouter:
	default:
		return cerrors.Invalidf("LLM", "provider",
			"Unsupported provider '%s'. Only '%s' and '%s' are supported.", cfg.Provider, ProviderLiteLLM, ProviderOpenRouter)
	}

	if strings.TrimSpace(cfg.APIBase) == "" {
		return &cerrors.ConfigError{
			Section: "LLM",
			Fields:  []string{"api_base"},
			Message: fmt.Sprintf("Missing required LLM configuration (api_base) for %s provider", provider),
		}
	}
	return nil
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

// Provider returns the normalised provider name.
func (c *Client) Provider() string { return c.provider }

// GenerateContent sends messages as one chat completion. The client's
// configured model, temperature and max tokens apply unless a call option
// overrides them.
func (c *Client) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Model == "" {
		opts.Model = c.model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = c.maxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    toChatMessages(messages),
		Temperature: requestTemperature(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.StopWords,
	}

	ctx, span := c.tracer.StartSpan(ctx, observability.SpanLLMGenerate, attribute.String(observability.AttrModel, opts.Model))
	started := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	observability.EndSpan(span, err)
	if err != nil {
		c.logger.Warn("chat completion failed after %s: %v", time.Since(started), err)
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	c.logger.Debug("chat completion model=%s prompt_tokens=%d completion_tokens=%d took=%s",
		opts.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, time.Since(started))

	choices := make([]*llms.ContentChoice, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		choices = append(choices, &llms.ContentChoice{
			Content:    choice.Message.Content,
			StopReason: string(choice.FinishReason),
			GenerationInfo: map[string]any{
				"PromptTokens":     resp.Usage.PromptTokens,
				"CompletionTokens": resp.Usage.CompletionTokens,
				"TotalTokens":      resp.Usage.TotalTokens,
			},
		})
	}

	if opts.StreamingFunc != nil {
		if err := opts.StreamingFunc(ctx, []byte(choices[0].Content)); err != nil {
			return nil, fmt.Errorf("streaming callback: %w", err)
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// Call is a single-prompt convenience over GenerateContent.
func (c *Client) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c, prompt, options...)
}

func toChatMessages(messages []llms.MessageContent) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		var text strings.Builder
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				text.WriteString(p.Text)
			case llms.ToolCallResponse:
				text.WriteString(p.Content)
			}
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    roleFor(msg.Role),
			Content: text.String(),
		})
	}
	return out
}

func roleFor(role llms.ChatMessageType) string {
	switch role {
	case llms.ChatMessageTypeSystem:
		return openai.ChatMessageRoleSystem
	case llms.ChatMessageTypeAI:
		return openai.ChatMessageRoleAssistant
	default:
		// Tool observations are replayed as user text; no tool_call ids are tracked.
		return openai.ChatMessageRoleUser
	}
}

// requestTemperature converts t for go-openai, which omits a zero
// temperature from the request body.
func requestTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
