package tracebrain

// TraceStatus is the lifecycle state recorded in trace attributes.
type TraceStatus string

const (
	TraceStatusRunning   TraceStatus = "running"
	TraceStatusCompleted TraceStatus = "completed"
	TraceStatusFailed    TraceStatus = "failed"
)

// Trace represents one complete agent execution attempt: a forest of spans
// chained by parent_id. Spans keep insertion order; causal order is
// reconstructed, not stored. The trace-level attribute bag stays open-ended
// because the store appends feedback and evaluation entries to it; typed
// accessors cover the keys this package cares about.
type Trace struct {
	TraceID    string         `json:"trace_id"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Spans      []*Span        `json:"spans"`
}

// SystemPrompt returns the trace-level system prompt, stored once rather
// than repeated per span.
func (t *Trace) SystemPrompt() string {
	return stringAttr(t.Attributes, attrSystemPrompt)
}

// EpisodeID returns the episode grouping key, or "" if the trace does not
// belong to an episode. The bare "episode_id" spelling used by early SDKs is
// accepted alongside the namespaced key.
func (t *Trace) EpisodeID() string {
	if v := stringAttr(t.Attributes, attrEpisodeID); v != "" {
		return v
	}
	return stringAttr(t.Attributes, "episode_id")
}

// Status returns the recorded lifecycle status, or "" if none was set.
func (t *Trace) Status() TraceStatus {
	return TraceStatus(stringAttr(t.Attributes, attrTraceStatus))
}

// HasErrorSpan reports whether any span carries an OTLP error status.
func (t *Trace) HasErrorSpan() bool {
	for _, s := range t.Spans {
		if s.IsError() {
			return true
		}
	}
	return false
}

// spanIndex maps span_id to span. Later duplicates of the same ID are
// ignored; the first occurrence wins.
func spanIndex(t *Trace) map[string]*Span {
	byID := make(map[string]*Span, len(t.Spans))
	for _, s := range t.Spans {
		if _, ok := byID[s.SpanID]; !ok {
			byID[s.SpanID] = s
		}
	}
	return byID
}
