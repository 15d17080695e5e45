package tracebrain

import (
	"github.com/m-mizutani/goerr/v2"
)

// ChildIndex maps a parent span ID to its direct children in input order.
// Root spans are indexed under the empty string.
type ChildIndex map[string][]*Span

// Roots returns the spans without a parent, in input order.
func (idx ChildIndex) Roots() []*Span {
	return idx[""]
}

// BuildChildIndex indexes the spans of one trace by parent ID, preserving
// the relative order of siblings as they appear in the input.
func BuildChildIndex(spans []*Span) ChildIndex {
	idx := make(ChildIndex, len(spans))
	for _, s := range spans {
		idx[s.ParentID] = append(idx[s.ParentID], s)
	}
	return idx
}

// ReconstructContext rebuilds the full chronological conversation context up
// to and including the target span. It walks parent_id links backwards from
// the target, collecting the delta content of each step, then reverses the
// collected fragments and prepends the trace-level system prompt.
//
// The walk is O(depth of the chain). Failures are input-validation errors,
// never transient: ErrSpanNotFound if the target is absent, ErrBrokenChain
// if a parent_id points outside the trace or the links form a cycle.
func ReconstructContext(t *Trace, targetSpanID string) ([]Message, error) {
	chain, err := spanChain(t, targetSpanID)
	if err != nil {
		return nil, err
	}

	buf := make([]Message, 0, len(chain)+1)
	if prompt := t.SystemPrompt(); prompt != "" {
		buf = append(buf, Message{Role: RoleSystem, Content: prompt})
	}

	// chain is ordered root first, so a forward pass yields chronological
	// order directly.
	for _, s := range chain {
		buf = appendSpanContent(buf, s)
	}
	return buf, nil
}

// appendSpanContent appends the context fragments contributed by one span.
// LLM spans contribute their delta messages; tool spans contribute a single
// synthetic fragment carrying the tool output. Only tool_output is folded
// in, matching the recorded encoding: tool_input is already present in the
// next inference's delta when the agent framework echoes it.
func appendSpanContent(buf []Message, s *Span) []Message {
	switch s.Type {
	case SpanTypeLLMInference:
		if s.LLMInference != nil {
			buf = append(buf, s.LLMInference.NewContent...)
		}
	case SpanTypeToolExecution:
		if s.ToolExecution != nil {
			buf = append(buf, Message{
				Role:    ToolRole(s.ToolExecution.ToolName),
				Content: s.ToolExecution.ToolOutput,
			})
		}
	}
	return buf
}

// ExpandPathTo returns the ancestor span IDs of the target, nearest first.
// A tree view expands exactly these nodes to reveal the target.
func ExpandPathTo(t *Trace, spanID string) ([]string, error) {
	chain, err := spanChain(t, spanID)
	if err != nil {
		return nil, err
	}

	ancestors := make([]string, 0, len(chain)-1)
	// chain is root-first and ends with the target itself.
	for i := len(chain) - 2; i >= 0; i-- {
		ancestors = append(ancestors, chain[i].SpanID)
	}
	return ancestors, nil
}

// Turn is one LLM inference step with its fully reconstructed prompt, as
// exported for training data.
type Turn struct {
	Prompt      []Message `json:"prompt_for_model"`
	Completion  string    `json:"model_completion"`
	Thought     string    `json:"thought,omitempty"`
	ToolCode    string    `json:"tool_code,omitempty"`
	FinalAnswer string    `json:"final_answer,omitempty"`
	ToolOutput  string    `json:"tool_output,omitempty"`
}

// ReconstructTurns rebuilds one Turn per llm_inference span on the chain
// from the root to the target span. Each turn's prompt is the accumulated
// context the model saw at that step; ToolOutput carries the output of the
// tool span executed in direct response to the turn, if any.
func ReconstructTurns(t *Trace, targetSpanID string) ([]Turn, error) {
	chain, err := spanChain(t, targetSpanID)
	if err != nil {
		return nil, err
	}
	idx := BuildChildIndex(t.Spans)

	var prompt []Message
	if p := t.SystemPrompt(); p != "" {
		prompt = append(prompt, Message{Role: RoleSystem, Content: p})
	}

	var turns []Turn
	for _, s := range chain {
		prompt = appendSpanContent(prompt, s)
		if s.Type != SpanTypeLLMInference || s.LLMInference == nil {
			continue
		}

		turn := Turn{
			Prompt:      append([]Message(nil), prompt...),
			Completion:  s.LLMInference.Completion,
			Thought:     s.LLMInference.Thought,
			ToolCode:    s.LLMInference.ToolCode,
			FinalAnswer: s.LLMInference.FinalAnswer,
		}
		for _, child := range idx[s.SpanID] {
			if child.Type == SpanTypeToolExecution && child.ToolExecution != nil {
				turn.ToolOutput = child.ToolExecution.ToolOutput
				break
			}
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// spanChain resolves the causal chain from a root span down to the target,
// ordered root first.
func spanChain(t *Trace, targetSpanID string) ([]*Span, error) {
	byID := spanIndex(t)
	target, ok := byID[targetSpanID]
	if !ok {
		return nil, goerr.Wrap(ErrSpanNotFound, "target span is not part of the trace",
			goerr.Value("trace_id", t.TraceID),
			goerr.Value("span_id", targetSpanID),
		)
	}

	var reversed []*Span
	visited := make(map[string]bool, len(t.Spans))
	for cur := target; ; {
		reversed = append(reversed, cur)
		visited[cur.SpanID] = true

		if cur.IsRoot() {
			break
		}
		parent, ok := byID[cur.ParentID]
		if !ok {
			return nil, goerr.Wrap(ErrBrokenChain, "parent_id references a span outside the trace",
				goerr.Value("trace_id", t.TraceID),
				goerr.Value("span_id", cur.SpanID),
				goerr.Value("parent_id", cur.ParentID),
			)
		}
		if visited[parent.SpanID] {
			return nil, goerr.Wrap(ErrBrokenChain, "span chain contains a cycle",
				goerr.Value("trace_id", t.TraceID),
				goerr.Value("span_id", parent.SpanID),
			)
		}
		cur = parent
	}

	chain := make([]*Span, len(reversed))
	for i, s := range reversed {
		chain[len(reversed)-1-i] = s
	}
	return chain, nil
}
