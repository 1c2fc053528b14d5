// Package ai wraps the Gemini API behind a process-wide throttle. Every
// model call in the system goes through one Client so the minimum interval
// between requests holds across the indexer, the commit poller and the QA
// service simultaneously.
package ai

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// models is the slice of the genai SDK the client uses. *genai.Models
// satisfies it; tests substitute a fake.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Options configures a Client.
type Options struct {
	APIKey        string
	ChatModel     string
	EmbedderModel string
	VectorDim     int32
	MinInterval   time.Duration // minimum spacing between any two model calls
	Retry         RetryConfig
}

// Client is a rate-limited Gemini client. One instance serves the whole
// process; it is safe for concurrent use.
type Client struct {
	models     models
	limiter    *rate.Limiter
	retry      RetryConfig
	chatModel  string
	embedModel string
	vectorDim  int32
	logger     *slog.Logger
}

// NewClient creates a Client backed by the Gemini API.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return newClient(gc.Models, opts, logger), nil
}

func newClient(m models, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	retry := opts.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}

	var limiter *rate.Limiter
	if opts.MinInterval > 0 {
		// Burst of one: at most one call per MinInterval, process-wide.
		limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}

	return &Client{
		models:     m,
		limiter:    limiter,
		retry:      retry,
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedderModel,
		vectorDim:  opts.VectorDim,
		logger:     logger,
	}
}

// generate runs a single non-streaming completion through the throttle and
// retry wrapper, returning the trimmed response text.
func (c *Client) generate(ctx context.Context, op, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	var out string
	err := c.withRetry(ctx, op, func(ctx context.Context) error {
		resp, err := c.models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), cfg)
		if err != nil {
			return err
		}
		out = strings.TrimSpace(resp.Text())
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// Embed returns the embedding vector for text, always with the configured
// dimensionality. An empty or mis-shaped response is an error; vectors of
// the wrong width would poison similarity search.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := c.vectorDim
	var values []float32
	err := c.withRetry(ctx, "embed content", func(ctx context.Context) error {
		resp, err := c.models.EmbedContent(ctx, c.embedModel, genai.Text(text),
			&genai.EmbedContentConfig{OutputDimensionality: &dim})
		if err != nil {
			return err
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return fmt.Errorf("empty embedding response")
		}
		values = resp.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	if int32(len(values)) != c.vectorDim {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(values), c.vectorDim)
	}
	return values, nil
}

// SummarizeCode produces a short onboarding-oriented summary of a source
// file. Only the head of the file is sent; the summary describes purpose,
// not line-by-line content.
func (c *Client) SummarizeCode(ctx context.Context, fileName, source string) (string, error) {
	prompt := codeSummaryPrompt(fileName, truncate(source, maxCodePromptChars))
	return c.generate(ctx, "summarize code", prompt, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.2),
		MaxOutputTokens: summaryMaxTokens,
	})
}

// SummarizeDiff produces a short natural-language summary of a unified
// commit diff.
func (c *Client) SummarizeDiff(ctx context.Context, diff string) (string, error) {
	prompt := diffSummaryPrompt(truncate(diff, maxDiffPromptChars))
	return c.generate(ctx, "summarize diff", prompt, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.2),
		MaxOutputTokens: summaryMaxTokens,
	})
}

// Stream generates an answer and forwards each chunk of text to emit in
// arrival order. The throttle applies before the stream opens; a failure
// mid-stream terminates the stream and is returned as-is, since partial
// output may already have reached the caller.
func (c *Client) Stream(ctx context.Context, system, prompt string, emit func(chunk string) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.3),
		MaxOutputTokens: 1024,
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	for resp, err := range c.models.GenerateContentStream(ctx, c.chatModel, genai.Text(prompt), cfg) {
		if err != nil {
			return fmt.Errorf("generation stream: %w", err)
		}
		if chunk := resp.Text(); chunk != "" {
			if err := emit(chunk); err != nil {
				return err
			}
		}
	}
	return nil
}

// truncate cuts s to at most n bytes. Prompts carry file heads, not whole
// files.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
