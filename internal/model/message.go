package model

import "time"

// Role identifies which side of the conversation produced a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Message is one conversational turn as stored and as sent to the browser.
// The timestamp is UTC and serves as the addressable key for edit truncation:
// if two messages ever share a timestamp, truncation matches the first one in
// storage order.
type Message struct {
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// Batch is the atomic persistence unit: the messages produced by a single
// turn, normally one user message followed by one model message. A batch is
// written as one row, so it is never partially visible.
type Batch []Message

// PromptMessage is the LLM-facing projection of a message: role and content
// only, no timestamp.
type PromptMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt returns the batch flattened to the transcript shape handed to the
// generation client.
func (b Batch) Prompt() []PromptMessage {
	out := make([]PromptMessage, 0, len(b))
	for _, m := range b {
		out = append(out, PromptMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
