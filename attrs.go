package tracebrain

import "strings"

// Attribute keys of the TraceBrain OTLP wire format. The typed Span payloads
// are the source of truth inside this package; these keys only appear in the
// JSON codec so that attribute key typos cannot spread through the code.
const (
	attrSpanType = "tracebrain.span.type"

	// Trace-level attributes.
	attrSystemPrompt = "system_prompt"
	attrEpisodeID    = "tracebrain.episode.id"
	attrTraceStatus  = "tracebrain.trace.status"

	// LLM inference span attributes.
	attrLLMNewContent  = "tracebrain.llm.new_content"
	attrLLMCompletion  = "tracebrain.llm.completion"
	attrLLMThought     = "tracebrain.llm.thought"
	attrLLMToolCode    = "tracebrain.llm.tool_code"
	attrLLMFinalAnswer = "tracebrain.llm.final_answer"

	// Tool execution span attributes.
	attrToolName   = "tracebrain.tool.name"
	attrToolInput  = "tracebrain.tool.input"
	attrToolOutput = "tracebrain.tool.output"

	// OpenTelemetry status attributes.
	attrStatusCode        = "otel.status_code"
	attrStatusDescription = "otel.status_description"
)

const (
	// Earlier revisions of the schema used the "toolbrain." prefix.
	// Accepted on decode, never written.
	legacyPrefix  = "toolbrain."
	currentPrefix = "tracebrain."
)

// lookupAttr reads a namespaced attribute, falling back to the legacy
// "toolbrain." prefix for traces ingested before the rename and to the bare
// unprefixed key emitted by some early SDKs.
func lookupAttr(attrs map[string]any, key string) (any, bool) {
	if v, ok := attrs[key]; ok {
		return v, true
	}
	if rest, ok := strings.CutPrefix(key, currentPrefix); ok {
		if v, ok := attrs[legacyPrefix+rest]; ok {
			return v, true
		}
		if v, ok := attrs[rest]; ok {
			return v, true
		}
	}
	return nil, false
}

func stringAttr(attrs map[string]any, key string) string {
	v, ok := lookupAttr(attrs, key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
