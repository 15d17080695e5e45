package tracebrain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// SpanType discriminates the type-specific payload of a Span.
type SpanType string

const (
	SpanTypeLLMInference  SpanType = "llm_inference"
	SpanTypeToolExecution SpanType = "tool_execution"
)

// LLMInference is the payload of an llm_inference span. NewContent holds
// only the messages added at this step (delta encoding); the accumulated
// context is rebuilt via ReconstructContext. At most one of ToolCode and
// FinalAnswer is set.
type LLMInference struct {
	NewContent  []Message `json:"new_content"`
	Completion  string    `json:"completion,omitempty"`
	Thought     string    `json:"thought,omitempty"`
	ToolCode    string    `json:"tool_code,omitempty"`
	FinalAnswer string    `json:"final_answer,omitempty"`
}

// ToolExecution is the payload of a tool_execution span.
type ToolExecution struct {
	ToolName   string `json:"tool_name"`
	ToolInput  string `json:"tool_input,omitempty"`
	ToolOutput string `json:"tool_output,omitempty"`
}

// Span represents a single unit of work in a trace. The wire format carries
// type-specific data in an OTLP-style attribute bag; on decode it is lifted
// into the typed payload matching Type, so exactly one of LLMInference and
// ToolExecution is non-nil for the known span types.
type Span struct {
	SpanID    string
	ParentID  string // empty for a root span
	Name      string
	StartTime time.Time
	EndTime   time.Time

	Type          SpanType
	LLMInference  *LLMInference
	ToolExecution *ToolExecution

	StatusCode        string
	StatusDescription string

	// extra preserves attributes this package does not model, so that a
	// decoded trace can be re-encoded without losing them.
	extra map[string]any
}

// IsRoot reports whether the span has no causal predecessor.
func (s *Span) IsRoot() bool {
	return s.ParentID == ""
}

// Duration is derived from the stored timestamps, never persisted.
func (s *Span) Duration() time.Duration {
	if s.StartTime.IsZero() || s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// IsError reports whether the span carries an OTLP error status.
func (s *Span) IsError() bool {
	return strings.EqualFold(s.StatusCode, "ERROR")
}

// spanWire is the JSON shape of a span on the wire.
type spanWire struct {
	SpanID    string         `json:"span_id"`
	ParentID  *string        `json:"parent_id"`
	Name      string         `json:"name"`
	StartTime string         `json:"start_time,omitempty"`
	EndTime   string         `json:"end_time,omitempty"`
	Attrs     map[string]any `json:"attributes"`
}

// UnmarshalJSON decodes the OTLP wire shape and lifts the attribute bag into
// the typed payload selected by tracebrain.span.type. Unknown span types are
// kept with both payloads nil.
func (s *Span) UnmarshalJSON(data []byte) error {
	var w spanWire
	if err := json.Unmarshal(data, &w); err != nil {
		return goerr.Wrap(err, "failed to decode span")
	}

	s.SpanID = w.SpanID
	if w.ParentID != nil {
		s.ParentID = *w.ParentID
	} else {
		s.ParentID = ""
	}
	s.Name = w.Name

	var err error
	if s.StartTime, err = parseTimestamp(w.StartTime); err != nil {
		return goerr.Wrap(err, "invalid start_time", goerr.Value("span_id", w.SpanID))
	}
	if s.EndTime, err = parseTimestamp(w.EndTime); err != nil {
		return goerr.Wrap(err, "invalid end_time", goerr.Value("span_id", w.SpanID))
	}

	attrs := w.Attrs
	s.Type = SpanType(stringAttr(attrs, attrSpanType))
	s.StatusCode = stringAttr(attrs, attrStatusCode)
	s.StatusDescription = stringAttr(attrs, attrStatusDescription)
	s.LLMInference = nil
	s.ToolExecution = nil

	switch s.Type {
	case SpanTypeLLMInference:
		raw, _ := lookupAttr(attrs, attrLLMNewContent)
		newContent, err := decodeNewContent(raw)
		if err != nil {
			return goerr.Wrap(err, "failed to decode llm span", goerr.Value("span_id", w.SpanID))
		}
		s.LLMInference = &LLMInference{
			NewContent:  newContent,
			Completion:  stringAttr(attrs, attrLLMCompletion),
			Thought:     stringAttr(attrs, attrLLMThought),
			ToolCode:    stringAttr(attrs, attrLLMToolCode),
			FinalAnswer: stringAttr(attrs, attrLLMFinalAnswer),
		}
	case SpanTypeToolExecution:
		s.ToolExecution = &ToolExecution{
			ToolName:   stringAttr(attrs, attrToolName),
			ToolInput:  stringAttr(attrs, attrToolInput),
			ToolOutput: stringAttr(attrs, attrToolOutput),
		}
	}

	s.extra = extraAttrs(attrs)
	return nil
}

// MarshalJSON re-encodes the span into the wire shape with current
// ("tracebrain.") attribute keys.
func (s *Span) MarshalJSON() ([]byte, error) {
	attrs := make(map[string]any, len(s.extra)+8)
	for k, v := range s.extra {
		attrs[k] = v
	}
	if s.Type != "" {
		attrs[attrSpanType] = string(s.Type)
	}
	if s.StatusCode != "" {
		attrs[attrStatusCode] = s.StatusCode
	}
	if s.StatusDescription != "" {
		attrs[attrStatusDescription] = s.StatusDescription
	}

	if inf := s.LLMInference; inf != nil {
		newContent, err := json.Marshal(inf.NewContent)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode new_content", goerr.Value("span_id", s.SpanID))
		}
		attrs[attrLLMNewContent] = string(newContent)
		if inf.Completion != "" {
			attrs[attrLLMCompletion] = inf.Completion
		}
		if inf.Thought != "" {
			attrs[attrLLMThought] = inf.Thought
		}
		if inf.ToolCode != "" {
			attrs[attrLLMToolCode] = inf.ToolCode
		}
		if inf.FinalAnswer != "" {
			attrs[attrLLMFinalAnswer] = inf.FinalAnswer
		}
	}
	if te := s.ToolExecution; te != nil {
		attrs[attrToolName] = te.ToolName
		if te.ToolInput != "" {
			attrs[attrToolInput] = te.ToolInput
		}
		if te.ToolOutput != "" {
			attrs[attrToolOutput] = te.ToolOutput
		}
	}

	w := spanWire{
		SpanID:    s.SpanID,
		Name:      s.Name,
		StartTime: formatTimestamp(s.StartTime),
		EndTime:   formatTimestamp(s.EndTime),
		Attrs:     attrs,
	}
	if s.ParentID != "" {
		w.ParentID = &s.ParentID
	}
	return json.Marshal(w)
}

// decodeNewContent accepts the JSON-encoded string form produced by SDKs and
// the already-decoded array form produced by lenient ingestion paths.
func decodeNewContent(raw any) ([]Message, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var messages []Message
		if err := json.Unmarshal([]byte(v), &messages); err != nil {
			return nil, goerr.Wrap(ErrMalformedContent, "new_content is not a message array", goerr.Value("raw", v))
		}
		return messages, nil
	case []any:
		var messages []Message
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, goerr.Wrap(ErrMalformedContent, "new_content element is not an object")
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			if role == "" {
				return nil, goerr.Wrap(ErrMalformedContent, "new_content element has no role")
			}
			messages = append(messages, Message{Role: role, Content: content})
		}
		return messages, nil
	default:
		return nil, goerr.Wrap(ErrMalformedContent, "unexpected new_content type")
	}
}

// extraAttrs returns the attributes not lifted into typed fields.
func extraAttrs(attrs map[string]any) map[string]any {
	modeled := map[string]bool{
		attrSpanType:          true,
		attrLLMNewContent:     true,
		attrLLMCompletion:     true,
		attrLLMThought:        true,
		attrLLMToolCode:       true,
		attrLLMFinalAnswer:    true,
		attrToolName:          true,
		attrToolInput:         true,
		attrToolOutput:        true,
		attrStatusCode:        true,
		attrStatusDescription: true,
	}

	var extra map[string]any
	for k, v := range attrs {
		key := k
		if rest, ok := strings.CutPrefix(k, legacyPrefix); ok {
			key = currentPrefix + rest
		} else if !strings.HasPrefix(k, currentPrefix) && modeled[currentPrefix+k] {
			key = currentPrefix + k
		}
		if modeled[key] {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = v
	}
	return extra
}

// parseTimestamp parses an ISO-8601 timestamp. Fractional seconds of any
// precision and both "Z" and numeric offsets are accepted; timestamps
// without a zone are treated as UTC. An empty string yields the zero time.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, goerr.New("failed to parse timestamp", goerr.Value("timestamp", s))
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
