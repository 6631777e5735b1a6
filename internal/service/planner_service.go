package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/finquery/finquery/internal/ai"
	"github.com/finquery/finquery/internal/cache"
	"github.com/finquery/finquery/internal/model"
	appErr "github.com/finquery/finquery/internal/pkg/errors"
	"github.com/finquery/finquery/internal/tools"
)

// workflowTools maps each workflow the orchestrator recognizes to its
// default per-entity tool list. Route cache hits referencing anything
// else are treated as misses.
var workflowTools = map[string][]string{
	"technical_analysis": {"sma_20", "sma_50", "rsi_14"},
	"risk_assessment":    {"volatility_30d", "max_drawdown", "var_95"},
	"valuation":          {"pe_ratio", "dividend_yield", "price_to_book"},
	"full_report": {
		"sma_20", "sma_50", "rsi_14",
		"volatility_30d", "max_drawdown", "var_95",
		"pe_ratio", "dividend_yield", "price_to_book",
	},
}

// PlannerService decides which computations answer a question. The
// decision comes from the completion model and is expensive, so it is
// fronted by the route cache. Caching is decision-only: the entity
// parameter is always re-resolved from the incoming question, never
// reused from the cached plan.
type PlannerService struct {
	generator  ai.IGenerator
	registry   *tools.Registry
	routeCache *cache.RouteCache
	routeTTL   time.Duration
	timeout    time.Duration
}

func NewPlannerService(generator ai.IGenerator, registry *tools.Registry, routeCache *cache.RouteCache, routeTTL, timeout time.Duration) *PlannerService {
	return &PlannerService{
		generator:  generator,
		registry:   registry,
		routeCache: routeCache,
		routeTTL:   routeTTL,
		timeout:    timeout,
	}
}

// KnownWorkflow is the route cache's staleness check.
func KnownWorkflow(id string) bool {
	_, ok := workflowTools[id]
	return ok
}

func (s *PlannerService) Plan(ctx context.Context, question string) (*model.Plan, error) {
	logger := logutil.GetLogger(ctx)
	lookup := s.routeCache.Lookup(ctx, question)
	if lookup.Outcome == cache.Hit {
		return s.rebindPlan(lookup.Plan, question), nil
	}
	plan, err := s.planWithModel(ctx, question)
	if err != nil {
		logger.Error("planner failed", zap.Error(err))
		return nil, err
	}
	// populate the cache even if the caller goes away
	s.routeCache.Store(context.WithoutCancel(ctx), question, lookup.Embedding, plan.WorkflowID, plan, s.routeTTL)
	return plan, nil
}

type plannerReply struct {
	WorkflowID string `json:"workflow_id"`
	Symbol     string `json:"symbol"`
	Steps      []struct {
		Tool   string                 `json:"tool"`
		Params map[string]interface{} `json:"params"`
	} `json:"steps"`
}

func (s *PlannerService) planWithModel(ctx context.Context, question string) (*model.Plan, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	prompt := s.buildPrompt(question)
	completion, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	reply, err := parsePlannerReply(completion.Text)
	if err != nil {
		return nil, err
	}
	return s.resolvePlan(ctx, reply)
}

func (s *PlannerService) buildPrompt(question string) string {
	var workflows []string
	for id := range workflowTools {
		workflows = append(workflows, id)
	}
	return fmt.Sprintf(`You are a routing assistant for a financial analysis system.
Pick ONE workflow and the instrument symbol for the question below.
- Workflows: %s
- Available tools: %s
- Reply with JSON only, no extra text:
  {"workflow_id": "...", "symbol": "TICKER", "steps": [{"tool": "...", "params": {"symbol": "TICKER"}}]}
- steps may be empty; the workflow's default tools are used then.

QUESTION:
%s`, strings.Join(workflows, ", "), strings.Join(s.registry.Names(), ", "), question)
}

func parsePlannerReply(output string) (*plannerReply, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	var reply plannerReply
	if err := json.Unmarshal([]byte(clean), &reply); err != nil {
		return nil, fmt.Errorf("parse planner reply: %w", err)
	}
	return &reply, nil
}

func (s *PlannerService) resolvePlan(ctx context.Context, reply *plannerReply) (*model.Plan, error) {
	if !KnownWorkflow(reply.WorkflowID) {
		return nil, fmt.Errorf("%w: unknown workflow %q", appErr.ErrPlanRejected, reply.WorkflowID)
	}
	symbol := strings.ToUpper(strings.TrimSpace(reply.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: planner resolved no symbol", appErr.ErrPlanRejected)
	}
	plan := &model.Plan{WorkflowID: reply.WorkflowID}
	for _, step := range reply.Steps {
		if _, ok := s.registry.Get(step.Tool); !ok {
			logutil.GetLogger(ctx).Warn("planner proposed unknown tool, dropped", zap.String("tool", step.Tool))
			continue
		}
		params := step.Params
		if params == nil {
			params = map[string]interface{}{}
		}
		params["symbol"] = symbol
		plan.Steps = append(plan.Steps, model.PlanStep{Tool: step.Tool, Params: params})
	}
	if len(plan.Steps) == 0 {
		for _, tool := range workflowTools[reply.WorkflowID] {
			plan.Steps = append(plan.Steps, model.PlanStep{
				Tool:   tool,
				Params: map[string]interface{}{"symbol": symbol},
			})
		}
	}
	return plan, nil
}

var tickerRegex = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

var tickerStopwords = map[string]struct{}{
	"A": {}, "I": {}, "THE": {}, "IS": {}, "FOR": {}, "WHAT": {}, "HOW": {},
	"PE": {}, "RSI": {}, "SMA": {}, "EMA": {}, "VAR": {}, "ETF": {},
}

// rebindPlan re-resolves the entity parameter from the live question: a
// cached route is a reusable decision, its parameters are not. When the
// question carries no recognizable ticker the cached symbol stands.
func (s *PlannerService) rebindPlan(cached *model.Plan, question string) *model.Plan {
	symbol := extractTicker(question)
	plan := &model.Plan{WorkflowID: cached.WorkflowID}
	for _, step := range cached.Steps {
		params := make(map[string]interface{}, len(step.Params))
		for k, v := range step.Params {
			params[k] = v
		}
		if symbol != "" {
			params["symbol"] = symbol
		}
		plan.Steps = append(plan.Steps, model.PlanStep{Tool: step.Tool, Params: params})
	}
	return plan
}

func extractTicker(question string) string {
	for _, match := range tickerRegex.FindAllString(question, -1) {
		if _, ok := tickerStopwords[match]; ok {
			continue
		}
		return match
	}
	return ""
}
