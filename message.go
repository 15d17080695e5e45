// Package tracebrain provides the data model and reconstruction logic for
// TraceBrain agent execution traces. Traces store prompts delta-encoded:
// each LLM inference span carries only the messages newly introduced at that
// step, and the full conversational context is rebuilt on demand by walking
// the span chain backwards via parent_id.
package tracebrain

// Message is a single role/content fragment of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Standard conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolRole returns the synthetic role used for tool output fragments in a
// reconstructed context, e.g. "tool:search".
func ToolRole(toolName string) string {
	return "tool:" + toolName
}
