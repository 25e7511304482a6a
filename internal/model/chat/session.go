package chat

import (
	"time"

	"github.com/zhouzirui/jr-studio/backend/internal/model/document"
)

// Session captures a transient conversation with the assistant.
type Session struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	CreatedAt time.Time `json:"createdAt"`
}

// State is an immutable snapshot of everything a session shows the user.
// Every With/Append method returns a new snapshot and leaves the receiver
// untouched, so snapshots handed to callers never change underneath them.
type State struct {
	Turns    []Message           `json:"turns"`
	Busy     bool                `json:"busy"`
	Progress []string            `json:"progress"`
	Document *document.Generated `json:"document,omitempty"`
}

// Append returns a snapshot with msg added at the end of the transcript.
func (s State) Append(msg Message) State {
	turns := make([]Message, len(s.Turns), len(s.Turns)+1)
	copy(turns, s.Turns)
	s.Turns = append(turns, cloneMessage(msg))
	return s
}

// WithBusy returns a snapshot with the busy flag set to busy.
func (s State) WithBusy(busy bool) State {
	s.Busy = busy
	return s
}

// WithProgress returns a snapshot whose progress trace is labels.
func (s State) WithProgress(labels []string) State {
	s.Progress = append([]string(nil), labels...)
	return s
}

// WithDocument returns a snapshot whose current document is doc.
func (s State) WithDocument(doc *document.Generated) State {
	if doc == nil {
		s.Document = nil
		return s
	}
	copied := *doc
	s.Document = &copied
	return s
}

// Clone deep-copies the snapshot so it can leave the owning service.
func (s State) Clone() State {
	out := State{Busy: s.Busy}
	out.Turns = make([]Message, len(s.Turns))
	for i, msg := range s.Turns {
		out.Turns[i] = cloneMessage(msg)
	}
	out.Progress = append([]string{}, s.Progress...)
	if s.Document != nil {
		copied := *s.Document
		out.Document = &copied
	}
	return out
}

func cloneMessage(msg Message) Message {
	if msg.Attachments != nil {
		attachments := make([]Attachment, len(msg.Attachments))
		for i, a := range msg.Attachments {
			if a.Content != nil {
				content := *a.Content
				a.Content = &content
			}
			attachments[i] = a
		}
		msg.Attachments = attachments
	}
	if msg.ProcessingSteps != nil {
		msg.ProcessingSteps = append([]string(nil), msg.ProcessingSteps...)
	}
	return msg
}
