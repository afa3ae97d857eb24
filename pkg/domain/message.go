package domain

import (
	"fmt"
	"maps"
	"time"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversational turn.
// Its fields are unexported: build it with NewMessage and persist it through
// MarshalDurable, never by reflecting over the struct.
type Message struct {
	role      Role
	content   string
	metadata  map[string]any
	createdAt time.Time
}

// NewMessage creates a message stamped with the current UTC time.
func NewMessage(role Role, content string, metadata map[string]any) Message {
	return Message{
		role:      role,
		content:   content,
		metadata:  metadata,
		createdAt: time.Now().UTC(),
	}
}

// UserMessage is a shorthand for NewMessage(RoleUser, content, nil).
func UserMessage(content string) Message {
	return NewMessage(RoleUser, content, nil)
}

// AssistantMessage is a shorthand for NewMessage(RoleAssistant, content, nil).
func AssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content, nil)
}

// SystemMessage is a shorthand for NewMessage(RoleSystem, content, nil).
func SystemMessage(content string) Message {
	return NewMessage(RoleSystem, content, nil)
}

func (m Message) Role() Role { return m.role }
func (m Message) Content() string { return m.content }
func (m Message) CreatedAt() time.Time { return m.createdAt }
func (m Message) Metadata() map[string]any { return m.metadata }

// WithMetadata returns a copy of the message with key set to value.
func (m Message) WithMetadata(key string, value any) Message {
	meta := make(map[string]any, len(m.metadata)+1)
	maps.Copy(meta, m.metadata)
	meta[key] = value
	m.metadata = meta
	return m
}

// MarshalDurable converts the message into a plain map of the form
// {"type": role, "data": {"content", "created_at", "metadata"}}.
func (m Message) MarshalDurable() (map[string]any, error) {
	data := map[string]any{
		"content":    m.content,
		"created_at": m.createdAt.Format(time.RFC3339Nano),
	}
	if len(m.metadata) > 0 {
		data["metadata"] = m.metadata
	}
	return map[string]any{
		"type": string(m.role),
		"data": data,
	}, nil
}

// UnmarshalDurable restores a message produced by MarshalDurable.
func (m *Message) UnmarshalDurable(raw map[string]any) error {
	role, _ := raw["type"].(string)
	if role == "" {
		return fmt.Errorf("message: missing type")
	}
	data, ok := raw["data"].(map[string]any)
	if !ok {
		return fmt.Errorf("message: missing data for %q", role)
	}

	content, _ := data["content"].(string)
	out := Message{role: Role(role), content: content}

	switch ts := data["created_at"].(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("message: invalid created_at: %w", err)
		}
		out.createdAt = parsed
	case time.Time:
		out.createdAt = ts
	}

	if meta, ok := data["metadata"].(map[string]any); ok {
		out.metadata = meta
	}

	*m = out
	return nil
}
