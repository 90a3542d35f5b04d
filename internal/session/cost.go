package session

import "sessiond/internal/stream"

// CostBreakdown is the final cost of a Response: base model cost plus each
// tool call's share, keyed by tool-call id.
type CostBreakdown struct {
	Base    float64            `json:"base"`
	PerTool map[string]float64 `json:"per_tool,omitempty"`
	Total   float64            `json:"total"`
}

// CostModel computes response cost from usage and tool calls. Pricing data
// changes often, so it lives behind this interface rather than in the core.
type CostModel interface {
	Cost(model string, usage *stream.Usage, calls []*ToolCall) CostBreakdown
}

// RateTable is a static CostModel: per-1K token rates per model plus flat
// per-invocation fees per tool type.
type RateTable struct {
	InputPer1K  map[string]float64 // model -> $ per 1K input tokens
	OutputPer1K map[string]float64 // model -> $ per 1K output tokens
	PerToolCall map[string]float64 // tool type -> flat fee
}

func (t RateTable) Cost(model string, usage *stream.Usage, calls []*ToolCall) CostBreakdown {
	b := CostBreakdown{}

	if usage != nil {
		b.Base = float64(usage.InputTokens)/1000*t.InputPer1K[model] +
			float64(usage.OutputTokens)/1000*t.OutputPer1K[model]
	}

	for _, call := range calls {
		fee, ok := t.PerToolCall[call.ToolType]
		if !ok {
			continue
		}
		if b.PerTool == nil {
			b.PerTool = make(map[string]float64)
		}
		b.PerTool[call.ID] = fee
	}

	b.Total = b.Base
	for _, fee := range b.PerTool {
		b.Total += fee
	}
	return b
}

var _ CostModel = RateTable{}
