package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// ServiceError wraps a text-generation failure after the retry budget and
// fallback are exhausted. Timeouts, rate limits and auth failures all end up
// here; the extraction step treats them uniformly.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("text-generation service %s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// GeneratorConfig represents the configuration for the text-generation client.
type GeneratorConfig struct {
	Provider      string // "openai" for any OpenAI-compatible endpoint, or "ollama"
	BaseURL       string
	APIKey        string
	Model         string
	FallbackURL   string // ollama server tried after the primary's retry budget
	FallbackModel string
	MaxTokens     int
	Temperature   float64
	MaxAttempts   int
	RateLimit     float64 // calls per second
	RetryBaseWait time.Duration
}

// Generator issues prompts to a primary text-generation provider with a
// bounded retry policy, falling back to a secondary provider when the
// primary stays unavailable.
type Generator struct {
	config   GeneratorConfig
	primary  llms.Model
	fallback llms.Model
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewGenerator creates a Generator with the given configuration.
func NewGenerator(config GeneratorConfig) (*Generator, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.Model == "" {
		config.Model = "llama-3.3-70b-versatile"
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 8000
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.RetryBaseWait == 0 {
		config.RetryBaseWait = 500 * time.Millisecond
	}

	var primary llms.Model
	var err error
	switch config.Provider {
	case "ollama":
		primary, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	default:
		opts := []openai.Option{
			openai.WithModel(config.Model),
			openai.WithToken(config.APIKey),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		primary, err = openai.New(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	var fallback llms.Model
	if config.FallbackURL != "" {
		fallbackModel := config.FallbackModel
		if fallbackModel == "" {
			fallbackModel = "mistral"
		}
		fallback, err = ollama.New(
			ollama.WithModel(fallbackModel),
			ollama.WithServerURL(config.FallbackURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize fallback LLM: %w", err)
		}
	}

	return &Generator{
		config:   config,
		primary:  primary,
		fallback: fallback,
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:   slog.Default().With("component", "generator"),
	}, nil
}

// Generate sends the prompts to the primary provider, retrying up to
// MaxAttempts with exponential backoff, then tries the fallback provider
// once. All failures surface as a *ServiceError.
func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	var lastErr error
	for attempt := 1; attempt <= g.config.MaxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", &ServiceError{Provider: g.config.Provider, Err: err}
		}

		text, err := g.call(ctx, g.primary, content)
		if err == nil {
			return text, nil
		}
		lastErr = err
		g.logger.Warn("generation attempt failed",
			"attempt", attempt, "maxAttempts", g.config.MaxAttempts, "error", err)

		if attempt == g.config.MaxAttempts {
			break
		}

		// Exponential backoff: base * 2^(attempt-1), context aware.
		wait := g.config.RetryBaseWait << (attempt - 1)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", &ServiceError{Provider: g.config.Provider, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	if g.fallback != nil {
		g.logger.Warn("primary provider exhausted, trying fallback", "error", lastErr)
		text, err := g.call(ctx, g.fallback, content)
		if err == nil {
			return text, nil
		}
		lastErr = fmt.Errorf("primary: %v; fallback: %w", lastErr, err)
	}

	return "", &ServiceError{Provider: g.config.Provider, Err: lastErr}
}

func (g *Generator) call(ctx context.Context, model llms.Model, content []llms.MessageContent) (string, error) {
	resp, err := model.GenerateContent(ctx, content,
		llms.WithTemperature(g.config.Temperature),
		llms.WithMaxTokens(g.config.MaxTokens))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return resp.Choices[0].Content, nil
}
