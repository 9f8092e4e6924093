package core

import "encoding/json"

const (
	TuskName          = "TuskMem"
	TuskUserAgent     = "TuskMem-Agent/0.1"
	TuskRepositoryURL = "https://github.com/sandevgo/tuskmem"
	TuskVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// MessageKind tags the variant a Message carries.
type MessageKind string

const (
	KindSystem     MessageKind = "system"
	KindUser       MessageKind = "user"
	KindText       MessageKind = "text"
	KindToolCalls  MessageKind = "tool_calls"
	KindToolResult MessageKind = "tool_result"
)

type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one entry of a conversation. Kind decides which of the
// optional fields are meaningful.
type Message struct {
	Kind       MessageKind `json:"kind"`
	Content    string      `json:"content"`
	Reasoning  string      `json:"reasoning,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	IsError    bool        `json:"is_error,omitempty"`
}

func NewSystemMessage(content string) Message {
	return Message{Kind: KindSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Kind: KindUser, Content: content}
}

func NewTextMessage(content string) Message {
	return Message{Kind: KindText, Content: content}
}

// NewToolCallMessage builds an assistant message requesting tools. Content
// may carry text the model emitted alongside the calls.
func NewToolCallMessage(content string, calls []ToolCall) Message {
	return Message{Kind: KindToolCalls, Content: content, ToolCalls: calls}
}

func NewToolResultMessage(callID, content string) Message {
	return Message{Kind: KindToolResult, Content: content, ToolCallID: callID}
}

func NewToolErrorMessage(callID string, err error) Message {
	return Message{Kind: KindToolResult, Content: "Error: " + err.Error(), ToolCallID: callID, IsError: true}
}

// Role maps the variant to its wire role.
func (m Message) Role() string {
	switch m.Kind {
	case KindSystem:
		return RoleSystem
	case KindUser:
		return RoleUser
	case KindToolResult:
		return RoleTool
	default:
		return RoleAssistant
	}
}

func (m Message) IsAssistant() bool {
	return m.Kind == KindText || m.Kind == KindToolCalls
}

// KindFromRole restores the variant of a persisted or wire message.
func KindFromRole(role string, hasToolCalls bool) MessageKind {
	switch role {
	case RoleSystem:
		return KindSystem
	case RoleUser:
		return KindUser
	case RoleTool:
		return KindToolResult
	default:
		if hasToolCalls {
			return KindToolCalls
		}
		return KindText
	}
}

type Conversation struct {
	ID       string
	Messages []Message
}

func NewConversation(id string, history ...Message) *Conversation {
	msgs := make([]Message, len(history))
	copy(msgs, history)
	return &Conversation{ID: id, Messages: msgs}
}

func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}

func (c *Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// History returns a copy safe to hand to providers.
func (c *Conversation) History() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}
