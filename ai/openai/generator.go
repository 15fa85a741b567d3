package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/litreview/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// ErrEmptyCompletion is returned when the model produces no choices.
var ErrEmptyCompletion = errors.New("model returned no choices")

const baseRetryDelay = 500 * time.Millisecond

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
// Calls are throttled by a token bucket and retried with exponential backoff.
type Generator struct {
	client      llms.Model
	limiter     *rate.Limiter
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	logger      *slog.Logger
}

func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      client,
		limiter:     newLimiter(config.RequestsPerMinute),
		temperature: config.Temperature,
		maxRetries:  config.MaxRetries,
		retryDelay:  baseRetryDelay,
		logger:      slog.Default().With("component", "openai-generator", "model", config.GeneratorModel),
	}, nil
}

// NewGenerator creates a new text generator using the provided configuration.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// newLimiter returns nil when rpm disables limiting.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// Generate sends system and prompt as a two message chat and returns the first choice.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var text string
	err := ai.RetryWithBackoff(ctx, func() error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(g.temperature))
		if err != nil {
			g.logger.Warn("generation attempt failed", "err", err)
			return err
		}
		if len(response.Choices) < 1 {
			return ErrEmptyCompletion
		}

		text = strings.TrimSpace(response.Choices[0].Content)
		g.logger.Debug("generated completion",
			"prompt_length", len(prompt),
			"response_length", len(text),
			"elapsed", time.Since(start))
		return nil
	}, g.maxRetries, g.retryDelay)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		g.logger.Error("generation failed", "attempts", g.maxRetries, "err", err)
		return "", fmt.Errorf("generation failed after %d attempts: %w", g.maxRetries, err)
	}
	return text, nil
}
