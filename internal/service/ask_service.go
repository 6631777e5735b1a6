package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/finquery/finquery/internal/ai"
	"github.com/finquery/finquery/internal/cache"
	"github.com/finquery/finquery/internal/feature"
	"github.com/finquery/finquery/internal/model"
	appErr "github.com/finquery/finquery/internal/pkg/errors"
	"github.com/finquery/finquery/internal/tools"
)

var ErrAIUnavailable = ai.ErrUnavailable

// AskService runs the question-answering pipeline: response cache
// probe, route, execute the plan through the tool cache and feature
// store, synthesize, write through. Cache-layer trouble shows up only
// as latency; the only failures a caller sees are real computation
// failures.
type AskService struct {
	responseCache *cache.ResponseCache
	toolCache     *cache.ToolCache
	features      *feature.Store
	planner       *PlannerService
	registry      *tools.Registry
	generator     ai.IGenerator
	responseTTL   time.Duration
	timeout       time.Duration
	maxInputChars int
}

func NewAskService(
	responseCache *cache.ResponseCache,
	toolCache *cache.ToolCache,
	features *feature.Store,
	planner *PlannerService,
	registry *tools.Registry,
	generator ai.IGenerator,
	responseTTL, timeout time.Duration,
	maxInputChars int,
) *AskService {
	return &AskService{
		responseCache: responseCache,
		toolCache:     toolCache,
		features:      features,
		planner:       planner,
		registry:      registry,
		generator:     generator,
		responseTTL:   responseTTL,
		timeout:       timeout,
		maxInputChars: maxInputChars,
	}
}

func (s *AskService) Ask(ctx context.Context, question string) (*model.AnswerPayload, error) {
	question, err := s.cleanInput(question)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("question", question))

	lookup := s.responseCache.Lookup(ctx, question)
	if lookup.Outcome == cache.Hit {
		payload := *lookup.Payload
		payload.Cached = true
		return &payload, nil
	}

	plan, err := s.planner.Plan(ctx, question)
	if err != nil {
		return nil, err
	}
	metrics, failed, err := s.executePlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	answer, usage, err := s.synthesize(ctx, question, plan, metrics)
	if err != nil {
		return nil, err
	}
	payload := &model.AnswerPayload{
		Answer:       answer,
		WorkflowID:   plan.WorkflowID,
		Metrics:      metrics,
		PromptTokens: usage.PromptTokens,
		OutputTokens: usage.OutputTokens,
		FailedSteps:  failed,
	}
	// write-through survives caller disconnects: the work is already
	// paid for and future callers benefit
	s.responseCache.Store(context.WithoutCancel(ctx), question, lookup.Embedding, payload, s.responseTTL)
	logger.Debug("pipeline completed", zap.String("workflow_id", plan.WorkflowID), zap.Int("metrics", len(metrics)))
	return payload, nil
}

// executePlan runs every step and returns the computed metrics plus
// the names of steps that failed. A degraded answer is still an
// answer, but the caller gets to see which parts are missing.
func (s *AskService) executePlan(ctx context.Context, plan *model.Plan) (map[string]float64, []string, error) {
	logger := logutil.GetLogger(ctx)
	metrics := make(map[string]float64, len(plan.Steps))
	var failed []string
	var stepErrs []error
	for _, step := range plan.Steps {
		tool, ok := s.registry.Get(step.Tool)
		if !ok {
			// can happen when a cached plan outlives a tool
			logger.Warn("plan step references unknown tool, skipped", zap.String("tool", step.Tool))
			failed = append(failed, step.Tool)
			continue
		}
		value, err := s.runStep(ctx, tool, step)
		if err != nil {
			if errors.Is(err, cache.ErrNotCanonical) {
				return nil, nil, err
			}
			logger.Warn("plan step failed", zap.String("tool", step.Tool), zap.Error(err))
			failed = append(failed, metricName(step))
			stepErrs = append(stepErrs, fmt.Errorf("%s: %w", step.Tool, err))
			continue
		}
		metrics[metricName(step)] = value
	}
	if len(metrics) == 0 {
		if len(stepErrs) > 0 {
			return nil, nil, fmt.Errorf("all plan steps failed: %w", errors.Join(stepErrs...))
		}
		return nil, nil, fmt.Errorf("%w: plan has no executable steps", appErr.ErrPlanRejected)
	}
	return metrics, failed, nil
}

// runStep serves one computation from the cheapest tier able to answer
// it. Per-entity metrics go through the feature store; parameterized
// calls go through the exact-match tool cache.
func (s *AskService) runStep(ctx context.Context, tool *tools.Tool, step model.PlanStep) (float64, error) {
	if tool.PerEntity {
		symbol, ok := step.Params["symbol"].(string)
		if ok && symbol != "" {
			value, stale, err := s.features.GetOrCompute(ctx, symbol, tool.Name, tool.Category, func(ctx context.Context) (float64, error) {
				return tool.Run(ctx, step.Params)
			}, feature.WithStaleFallback())
			if err != nil {
				return 0, err
			}
			if stale {
				logutil.GetLogger(ctx).Info("serving stale feature",
					zap.String("entity_id", symbol), zap.String("feature", tool.Name))
			}
			return value, nil
		}
	}
	cached, err := s.toolCache.Lookup(ctx, tool.Name, step.Params)
	if err != nil {
		return 0, err
	}
	if cached.Outcome == cache.Hit {
		return cached.Value, nil
	}
	value, err := tool.Run(ctx, step.Params)
	if err != nil {
		return 0, err
	}
	if err := s.toolCache.Store(context.WithoutCancel(ctx), tool.Name, step.Params, value); err != nil {
		return 0, err
	}
	return value, nil
}

func (s *AskService) synthesize(ctx context.Context, question string, plan *model.Plan, metrics map[string]float64) (string, *ai.Completion, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s: %.6f\n", name, metrics[name])
	}
	prompt := fmt.Sprintf(`You are a financial analysis assistant.
Answer the question below using ONLY the computed metrics.
- Be concise and factual.
- Do not invent numbers that are not in the metrics.
- Output plain text only.

METRICS (workflow %s):
%s
QUESTION:
%s`, plan.WorkflowID, sb.String(), question)
	completion, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return "", nil, fmt.Errorf("empty ai response")
	}
	return text, completion, nil
}

func (s *AskService) cleanInput(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", appErr.ErrInvalid
	}
	if s.maxInputChars > 0 && len(trimmed) > s.maxInputChars {
		return "", appErr.ErrInvalid
	}
	return trimmed, nil
}

func metricName(step model.PlanStep) string {
	if window, ok := step.Params["window"].(float64); ok && window > 0 {
		return fmt.Sprintf("%s_%d", step.Tool, int(window))
	}
	if window, ok := step.Params["window"].(int); ok && window > 0 {
		return fmt.Sprintf("%s_%d", step.Tool, window)
	}
	return step.Tool
}
