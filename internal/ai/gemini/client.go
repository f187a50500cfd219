// Package gemini implements the ai.Generator boundary on top of the Google
// GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/resumix/cv-ranker/internal/ai"
	"github.com/resumix/cv-ranker/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 2
	initialBackoff    = 2 * time.Second
)

// Config carries the provider settings resolved from configuration and
// environment.
type Config struct {
	APIKey     string
	Model      string
	MaxRetries int
}

// Generator wraps the GenAI client. The underlying client is constructed
// lazily on first use, once per process, and is safe for concurrent calls;
// it holds no per-request state.
type Generator struct {
	apiKey     string
	model      string
	maxRetries int
	logger     *zap.Logger

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

// New builds a Generator. A missing API key is not an error here: the
// configuration fault surfaces on the first GenerateContent call.
func New(cfg Config, logger *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Generator{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	return g.model
}

func (g *Generator) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.initOnce.Do(func() {
		if g.apiKey == "" {
			g.initErr = fmt.Errorf("%w: gemini api key is missing (set GEMINI_API_KEY or ai.gemini.api-key)", ai.ErrProviderConfig)
			return
		}

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			g.initErr = fmt.Errorf("%w: create genai client: %v", ai.ErrProviderConfig, err)
			return
		}

		g.client = client
	})

	return g.client, g.initErr
}

// GenerateContent sends the prompt to Gemini with temperature 0 and returns
// the concatenated text of the first candidate. Transient API errors
// (throttling, 5xx) are retried with exponential backoff.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	client, err := g.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err == nil {
			return collectText(resp)
		}

		lastErr = err
		if !isTransient(err) {
			return "", fmt.Errorf("generate content: %w", err)
		}

		if attempt == g.maxRetries {
			break
		}

		g.logger.Warn("transient gemini error, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
	}

	return "", fmt.Errorf("generate content after %d attempts: %w", g.maxRetries, lastErr)
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func isTransient(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
