package model

// AnswerPayload is the typed body stored by the response cache: the
// synthesized answer plus the cost metadata of producing it.
type AnswerPayload struct {
	Answer       string             `json:"answer"`
	WorkflowID   string             `json:"workflow_id"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	PromptTokens int64              `json:"prompt_tokens"`
	OutputTokens int64              `json:"output_tokens"`
	Cached       bool               `json:"cached"`
	// FailedSteps names plan steps that errored while the rest of the
	// plan still produced an answer. Empty means every step succeeded.
	FailedSteps []string `json:"failed_steps,omitempty"`
}

type CacheRecord struct {
	ID        string        `json:"id"`
	QueryText string        `json:"query_text"`
	Embedding []float32     `json:"embedding"`
	Payload   AnswerPayload `json:"payload"`
	Ctime     int64         `json:"ctime"`
	ExpireAt  int64         `json:"expire_at"`
}

type RouteRecord struct {
	ID         string    `json:"id"`
	QueryText  string    `json:"query_text"`
	Embedding  []float32 `json:"embedding"`
	WorkflowID string    `json:"workflow_id"`
	Plan       Plan      `json:"plan"`
	Ctime      int64     `json:"ctime"`
	ExpireAt   int64     `json:"expire_at"`
}

// Plan is a fully resolved computation plan: executable without
// re-invoking the planner.
type Plan struct {
	WorkflowID string     `json:"workflow_id"`
	Steps      []PlanStep `json:"steps"`
}

type PlanStep struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

type ToolOutputRecord struct {
	ToolName  string  `json:"tool_name"`
	ParamHash string  `json:"param_hash"`
	Result    float64 `json:"result"`
	Ctime     int64   `json:"ctime"`
	ExpireAt  int64   `json:"expire_at"`
}

// Key is the exact-match storage key, tool name joined with the
// canonical parameter hash.
func (r *ToolOutputRecord) Key() string {
	return r.ToolName + ":" + r.ParamHash
}
