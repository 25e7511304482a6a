package chat

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Attachment describes a file the user sent with a turn. Content stays nil
// when the file could not be read.
type Attachment struct {
	Name    string  `json:"name"`
	Size    int64   `json:"size"`
	Type    string  `json:"type"`
	Content *string `json:"content,omitempty"`
}

// HasContent reports whether text was extracted from the file.
func (a Attachment) HasContent() bool {
	return a.Content != nil && *a.Content != ""
}

// Message is one turn of the conversation. Turns are never changed once
// they are in the transcript.
type Message struct {
	ID              string       `json:"id"`
	SessionID       string       `json:"sessionId"`
	Role            Role         `json:"role"`
	Content         string       `json:"content"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	ProcessingSteps []string     `json:"processingSteps,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}
