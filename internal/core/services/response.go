package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
	"github.com/custodia-labs/lectern/internal/logger"
	"github.com/custodia-labs/lectern/internal/metrics"
	"github.com/custodia-labs/lectern/internal/retry"
)

// Ensure ResponseGenerator implements the interface.
var _ driving.ResponseService = (*ResponseGenerator)(nil)

// Generation modes used as metric labels.
const (
	modeBlocking = "blocking"
	modeStream   = "stream"
)

// markerPattern matches citation markers such as [2] or [1, 3].
var markerPattern = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)

// ResponseGenerator produces grounded, cited answers from query results.
type ResponseGenerator struct {
	llm      driven.LLMService
	prompts  driven.PromptStore
	settings domain.GenerationSettings
	policy   retry.Policy
}

// NewResponseGenerator creates a response generator.
func NewResponseGenerator(
	llm driven.LLMService,
	prompts driven.PromptStore,
	settings domain.GenerationSettings,
) *ResponseGenerator {
	return &ResponseGenerator{
		llm:      llm,
		prompts:  prompts,
		settings: settings,
		policy:   retry.Generation,
	}
}

// Generate produces the complete answer. An empty context short-circuits
// to the fixed insufficient-context response without calling the model.
func (g *ResponseGenerator) Generate(ctx context.Context, result *domain.QueryResult) (*domain.AIResponse, error) {
	if !hasContext(result) {
		logger.Debug("no context, returning insufficient-context answer")
		metrics.GenerationCallsTotal.WithLabelValues(modeBlocking, metrics.StatusEmpty).Inc()
		return domain.InsufficientContextResponse(), nil
	}
	logger.Section("Generate")

	prompt, opts, err := g.buildPrompt(result)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var answer string
	err = retry.Do(ctx, g.policy, "generate", func(ctx context.Context) error {
		var genErr error
		answer, genErr = g.llm.Generate(ctx, prompt, opts)
		return genErr
	})
	metrics.GenerationDuration.WithLabelValues(modeBlocking).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationCallsTotal.WithLabelValues(modeBlocking, metrics.StatusError).Inc()
		return nil, &domain.GenerationError{Op: "complete", Err: err}
	}
	metrics.GenerationCallsTotal.WithLabelValues(modeBlocking, metrics.StatusOK).Inc()

	response := buildResponse(strings.TrimSpace(answer), result.Context)
	logger.Info("answer: %d chars, %d citations (%s)", len(response.Answer), len(response.Citations), time.Since(start))
	return response, nil
}

// Stream produces the answer incrementally. Opening the stream is retried
// once on a transient failure; fragments already delivered are never
// replayed.
func (g *ResponseGenerator) Stream(ctx context.Context, result *domain.QueryResult) (driving.AnswerStream, error) {
	if !hasContext(result) {
		metrics.GenerationCallsTotal.WithLabelValues(modeStream, metrics.StatusEmpty).Inc()
		return newStaticStream(domain.InsufficientContextResponse()), nil
	}
	logger.Section("Stream")

	prompt, opts, err := g.buildPrompt(result)
	if err != nil {
		return nil, err
	}

	var inner driven.FragmentStream
	err = retry.Do(ctx, g.policy, "stream", func(ctx context.Context) error {
		var streamErr error
		inner, streamErr = g.llm.Stream(ctx, prompt, opts)
		return streamErr
	})
	if err != nil {
		metrics.GenerationCallsTotal.WithLabelValues(modeStream, metrics.StatusError).Inc()
		return nil, &domain.GenerationError{Op: "stream", Err: err}
	}
	return newAnswerStream(inner, result.Context), nil
}

// buildPrompt fills the answer templates with the context block and question.
func (g *ResponseGenerator) buildPrompt(result *domain.QueryResult) (string, driven.GenerateOptions, error) {
	system, err := g.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		return "", driven.GenerateOptions{}, fmt.Errorf("loading %s prompt: %w", driven.PromptAnswerSystem, err)
	}
	userTemplate, err := g.prompts.Load(driven.PromptAnswerUser)
	if err != nil {
		return "", driven.GenerateOptions{}, fmt.Errorf("loading %s prompt: %w", driven.PromptAnswerUser, err)
	}

	prompt := strings.NewReplacer(
		driven.PromptContextVar, result.Context.Text,
		driven.PromptQuestionVar, result.Query,
	).Replace(userTemplate)
	logger.Debug("prompt: %d context words, %d sources", result.Context.Words, len(result.Context.ChunkIDs))

	return prompt, driven.GenerateOptions{
		System:      system,
		MaxTokens:   g.settings.MaxTokens,
		Temperature: g.settings.Temperature,
	}, nil
}

func hasContext(result *domain.QueryResult) bool {
	return result != nil && !result.Context.IsEmpty()
}

func buildResponse(answer string, assembled domain.AssembledContext) *domain.AIResponse {
	return &domain.AIResponse{
		Answer:      answer,
		Citations:   DeriveCitations(answer, assembled.Sources),
		SourceCount: len(assembled.ChunkIDs),
	}
}

// DeriveCitations returns the unique sources referenced by [n] markers in
// the answer, in order of first appearance in the context. When the answer
// references no valid marker every included source is cited.
func DeriveCitations(answer string, sources []domain.Citation) []domain.Citation {
	referenced := make(map[int]bool)
	for _, m := range markerPattern.FindAllStringSubmatch(answer, -1) {
		for _, part := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err == nil && n >= 1 && n <= len(sources) {
				referenced[n] = true
			}
		}
	}

	citations := []domain.Citation{}
	seen := make(map[domain.Citation]bool)
	for i, src := range sources {
		if len(referenced) > 0 && !referenced[i+1] {
			continue
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		citations = append(citations, src)
	}
	return citations
}
