package tracebrain

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// RecorderOption is a functional option for configuring a Recorder.
type RecorderOption func(*Recorder)

// WithTraceID sets a custom trace ID. If not set, a random 32-hex ID is
// generated.
func WithTraceID(id string) RecorderOption {
	return func(r *Recorder) {
		r.traceID = id
	}
}

// WithEpisodeID attaches the trace to an episode.
func WithEpisodeID(id string) RecorderOption {
	return func(r *Recorder) {
		r.episodeID = id
	}
}

// WithRepository sets the repository Finish persists the trace to.
func WithRepository(repo Repository) RecorderOption {
	return func(r *Recorder) {
		r.repo = repo
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.clock = clock
	}
}

// Recorder builds a delta-encoded trace from agent execution steps. It keeps
// the context reconstructed so far and stores, per inference, only the
// suffix of the prompt that was not recorded before. ReconstructContext is
// the exact inverse: applied to the last recorded span it returns the full
// prompt of that step.
type Recorder struct {
	mu         sync.Mutex
	trace      *Trace
	lastSpanID string
	recorded   []Message

	traceID   string
	episodeID string
	repo      Repository
	clock     func() time.Time
}

// NewRecorder creates a Recorder for one agent execution attempt.
func NewRecorder(systemPrompt string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.traceID == "" {
		r.traceID = newTraceID()
	}

	attrs := map[string]any{
		attrSystemPrompt: systemPrompt,
		attrTraceStatus:  string(TraceStatusRunning),
	}
	if r.episodeID != "" {
		attrs[attrEpisodeID] = r.episodeID
	}
	r.trace = &Trace{
		TraceID:    r.traceID,
		Attributes: attrs,
	}
	if systemPrompt != "" {
		r.recorded = append(r.recorded, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return r
}

// Inference describes one LLM call. Messages is the full prompt the model
// saw, including fragments already recorded in earlier steps; the Recorder
// stores only the new suffix. At most one of ToolCode and FinalAnswer may be
// set.
type Inference struct {
	Messages    []Message
	Completion  string
	Thought     string
	ToolCode    string
	FinalAnswer string
}

// RecordInference appends an llm_inference span chained to the previous
// step and returns its span ID.
func (r *Recorder) RecordInference(inf Inference) (string, error) {
	if inf.ToolCode != "" && inf.FinalAnswer != "" {
		return "", goerr.Wrap(ErrInvalidParameter, "tool_code and final_answer are mutually exclusive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var delta []Message
	if len(inf.Messages) > len(r.recorded) {
		delta = append(delta, inf.Messages[len(r.recorded):]...)
	}

	now := r.clock()
	span := &Span{
		SpanID:    newSpanID(),
		ParentID:  r.lastSpanID,
		Name:      "LLM Inference",
		StartTime: now,
		EndTime:   now,
		Type:      SpanTypeLLMInference,
		LLMInference: &LLMInference{
			NewContent:  delta,
			Completion:  inf.Completion,
			Thought:     inf.Thought,
			ToolCode:    inf.ToolCode,
			FinalAnswer: inf.FinalAnswer,
		},
	}

	r.trace.Spans = append(r.trace.Spans, span)
	r.lastSpanID = span.SpanID
	r.recorded = append(r.recorded, delta...)
	return span.SpanID, nil
}

// RecordToolExecution appends a tool_execution span chained to the previous
// step and returns its span ID. The tool output becomes part of the
// reconstructed context as a synthetic "tool:<name>" fragment.
func (r *Recorder) RecordToolExecution(toolName, input, output string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	span := &Span{
		SpanID:    newSpanID(),
		ParentID:  r.lastSpanID,
		Name:      "Tool Execution: " + toolName,
		StartTime: now,
		EndTime:   now,
		Type:      SpanTypeToolExecution,
		ToolExecution: &ToolExecution{
			ToolName:   toolName,
			ToolInput:  input,
			ToolOutput: output,
		},
	}

	r.trace.Spans = append(r.trace.Spans, span)
	r.lastSpanID = span.SpanID
	r.recorded = append(r.recorded, Message{Role: ToolRole(toolName), Content: output})
	return span.SpanID
}

// RecordError appends a root-level crash span with OTLP error status and
// marks the trace failed, unless the trace contains an active human
// intervention request in which case the status is left untouched.
func (r *Recorder) RecordError(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	span := &Span{
		SpanID:            newSpanID(),
		Name:              "Agent Crash",
		StartTime:         now,
		EndTime:           now,
		StatusCode:        "ERROR",
		StatusDescription: description,
	}
	r.trace.Spans = append(r.trace.Spans, span)

	if !hasActiveHelpRequest(r.trace) {
		r.trace.Attributes[attrTraceStatus] = string(TraceStatusFailed)
	}
}

// Finish marks the trace completed (unless already failed) and persists it
// if a repository was configured.
func (r *Recorder) Finish(ctx context.Context) error {
	r.mu.Lock()
	if r.trace.Status() == TraceStatusRunning {
		r.trace.Attributes[attrTraceStatus] = string(TraceStatusCompleted)
	}
	trace := r.trace
	repo := r.repo
	r.mu.Unlock()

	if repo == nil {
		return nil
	}
	return repo.Save(ctx, trace)
}

// Trace returns the trace recorded so far. The returned value is shared
// with the Recorder; callers that keep recording should not mutate it.
func (r *Recorder) Trace() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace
}

// hasActiveHelpRequest detects request_human_intervention tool activity,
// which keeps a trace out of the failed state even when an error span is
// present.
func hasActiveHelpRequest(t *Trace) bool {
	const helpTool = "request_human_intervention"
	for _, s := range t.Spans {
		if te := s.ToolExecution; te != nil && strings.Contains(te.ToolName, helpTool) {
			return true
		}
		if inf := s.LLMInference; inf != nil && strings.Contains(inf.ToolCode, helpTool) {
			return true
		}
	}
	return false
}

func newTraceID() string {
	return hexID(32)
}

func newSpanID() string {
	return hexID(16)
}

func hexID(n int) string {
	id := uuid.New()
	hex := strings.ReplaceAll(id.String(), "-", "")
	return hex[:n]
}
