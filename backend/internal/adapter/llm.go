package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"brainvibe/backend/internal/metrics"
	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
	"brainvibe/backend/pkg/logger"
)

// Options configures a TopicExtractor
type Options struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration // per attempt
	MaxRetries        int
	RequestsPerMinute int // 0 means unlimited
	MaxDiffBytes      int
}

// DiffRequest is one diff to analyze
type DiffRequest struct {
	Diff string
	// Prompt and AIOutput are the assistant conversation that produced the change, if known
	Prompt   string
	AIOutput string
	// KnownTopics are the project's current topics, offered so the model reuses their ids
	KnownTopics []*topic.Topic
}

// Extraction is the outcome of one analyzed diff
type Extraction struct {
	Topics []topic.ProposedTopic
	Stats  DiffStats
}

// TopicExtractor asks an OpenAI-compatible chat endpoint (Gemini by default)
// which learning topics a diff introduces
type TopicExtractor struct {
	client       *openai.Client
	model        string
	maxRetries   int
	timeout      time.Duration
	backoff      time.Duration
	maxDiffBytes int
	limiter      *rate.Limiter
	logger       *zap.Logger
}

// NewTopicExtractor creates an extractor
func NewTopicExtractor(opts Options) *TopicExtractor {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	return &TopicExtractor{
		client:       openai.NewClientWithConfig(config),
		model:        opts.Model,
		maxRetries:   opts.MaxRetries,
		timeout:      opts.Timeout,
		backoff:      time.Second,
		maxDiffBytes: opts.MaxDiffBytes,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger.Named("llm"),
	}
}

// Model returns the model id requests are sent to
func (e *TopicExtractor) Model() string {
	return e.model
}

// ExtractTopics filters the diff, asks the model for topics and parses the answer.
// A diff with nothing worth analyzing yields no topics without calling the model.
func (e *TopicExtractor) ExtractTopics(ctx context.Context, req DiffRequest) (*Extraction, error) {
	filtered, stats := FilterDiff(req.Diff, e.maxDiffBytes)
	e.logger.Debug("Diff filtered",
		zap.Int("files", stats.Files),
		zap.Int("skipped_files", len(stats.SkippedFiles)),
		zap.Int("lines_added", stats.LinesAdded),
		zap.Int("lines_removed", stats.LinesRemoved),
		zap.Bool("truncated", stats.Truncated),
	)
	if strings.TrimSpace(filtered) == "" {
		return &Extraction{Topics: []topic.ProposedTopic{}, Stats: stats}, nil
	}
	req.Diff = filtered

	start := time.Now()
	content, err := e.complete(ctx, buildPrompt(req))
	metrics.LLMLatency.WithLabelValues(e.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequests.WithLabelValues(e.model, "error").Inc()
		return nil, err
	}

	topics, err := ParseTopics(content)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(e.model, "parse_error").Inc()
		e.logger.Warn("Failed to parse topics from LLM output",
			zap.String("model", e.model),
			zap.Int("output_bytes", len(content)),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.LLMRequests.WithLabelValues(e.model, "ok").Inc()

	e.logger.Info("Topics extracted",
		zap.String("model", e.model),
		zap.Int("topics", len(topics)),
		zap.Duration("took", time.Since(start)),
	)
	return &Extraction{Topics: topics, Stats: stats}, nil
}

// complete sends the prompt with rate limiting and linear backoff between attempts
func (e *TopicExtractor) complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * e.backoff
			e.logger.Warn("Retrying LLM request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			if err := sleep(ctx, backoff); err != nil {
				return "", apperrors.NewContextCancelled("llm backoff", err)
			}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return "", apperrors.NewContextCancelled("llm rate limit", err)
		}

		attempts++
		content, err := e.attempt(ctx, req)
		if err == nil {
			return content, nil
		}
		lastErr = err

		e.logger.Error("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", e.model),
		)
		if ctx.Err() != nil {
			return "", apperrors.NewContextCancelled("llm request", ctx.Err())
		}
		if !retryable(err) {
			break
		}
	}

	return "", apperrors.NewLLMFailed(e.model, attempts, retryable(lastErr), lastErr)
}

func (e *TopicExtractor) attempt(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", apperrors.ErrLLMNoResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// retryable reports whether another attempt may succeed: rate limits, server
// errors, timeouts and transport failures are, other client errors are not
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func retryableStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const systemPrompt = "You identify programming concepts a developer needs to understand a code change. " +
	"You answer with JSON only."

func buildPrompt(req DiffRequest) string {
	var b strings.Builder
	if req.Prompt != "" {
		fmt.Fprintf(&b, "User prompt: %s\n\n", req.Prompt)
	}
	if req.AIOutput != "" {
		fmt.Fprintf(&b, "AI output: %s\n\n", req.AIOutput)
	}

	b.WriteString("Identify newly introduced programming concepts or technologies in the following code diff.\n\n")
	b.WriteString("CODE DIFF:\n```\n")
	b.WriteString(req.Diff)
	if !strings.HasSuffix(req.Diff, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("```\n\n")

	if len(req.KnownTopics) > 0 {
		b.WriteString("The project already tracks these topics. Reuse their topic_id when a concept matches:\n")
		for _, t := range req.KnownTopics {
			fmt.Fprintf(&b, "- %s (%s)\n", t.ID, t.Title)
		}
		b.WriteByte('\n')
	}

	b.WriteString(`Dependency manifests and lockfiles may have been filtered out. If the project clearly
uses a package manager or framework, include it as a topic.

Return JSON in exactly this shape:

{
  "new_topics": [
    {
      "topic_id": "snake_case_identifier",
      "display_name": "Human-readable name",
      "short_description": "One sentence description",
      "prerequisites": ["prerequisite_topic_id"]
    }
  ]
}

Rules:
1. topic_id is unique and snake_case.
2. Prerequisites are other topic_ids. A prerequisite that is new gets its own entry.
3. No prose outside the JSON.
`)
	return b.String()
}
