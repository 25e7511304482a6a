package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/jr-studio/backend/internal/model/document"
)

func TestStateAppendAlternatingPreservesOrder(t *testing.T) {
	const n = 5
	state := State{}
	for i := 0; i < n; i++ {
		state = state.Append(Message{ID: fmt.Sprintf("u%d", i), Role: RoleUser, Content: fmt.Sprintf("hỏi %d", i)})
		state = state.Append(Message{ID: fmt.Sprintf("a%d", i), Role: RoleAssistant, Content: fmt.Sprintf("đáp %d", i)})
	}

	require.Len(t, state.Turns, 2*n)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("u%d", i), state.Turns[2*i].ID)
		assert.Equal(t, RoleUser, state.Turns[2*i].Role)
		assert.Equal(t, fmt.Sprintf("a%d", i), state.Turns[2*i+1].ID)
		assert.Equal(t, RoleAssistant, state.Turns[2*i+1].Role)
	}
}

func TestStateAppendLeavesEarlierSnapshotUntouched(t *testing.T) {
	first := State{}.Append(Message{ID: "1", Content: "xin chào"})
	second := first.Append(Message{ID: "2", Content: "tạm biệt"})

	assert.Len(t, first.Turns, 1)
	assert.Len(t, second.Turns, 2)
	assert.Equal(t, "xin chào", second.Turns[0].Content)
}

func TestStateAppendCopiesAttachmentContent(t *testing.T) {
	content := "CMND số 123"
	msg := Message{ID: "1", Attachments: []Attachment{{Name: "cmnd.txt", Content: &content}}}
	state := State{}.Append(msg)

	content = "changed"
	msg.Attachments[0].Name = "other.txt"

	got := state.Turns[0].Attachments[0]
	assert.Equal(t, "cmnd.txt", got.Name)
	require.NotNil(t, got.Content)
	assert.Equal(t, "CMND số 123", *got.Content)
}

func TestStateWithDocumentReplaces(t *testing.T) {
	doc := &document.Generated{ID: "d1", Status: document.StatusDraft}
	state := State{}.WithDocument(doc)
	doc.ID = "mutated"

	require.NotNil(t, state.Document)
	assert.Equal(t, "d1", state.Document.ID)

	next := state.WithDocument(&document.Generated{ID: "d2", Status: document.StatusDraft})
	assert.Equal(t, "d2", next.Document.ID)
	assert.Equal(t, "d1", state.Document.ID)
}

func TestStateCloneIsIndependent(t *testing.T) {
	state := State{}.Append(Message{ID: "1", ProcessingSteps: []string{"a"}}).WithProgress([]string{"x"})
	clone := state.Clone()
	clone.Turns[0].ProcessingSteps[0] = "b"
	clone.Progress[0] = "y"

	assert.Equal(t, "a", state.Turns[0].ProcessingSteps[0])
	assert.Equal(t, "x", state.Progress[0])
}

func TestAttachmentHasContent(t *testing.T) {
	empty := ""
	text := "nội dung"
	assert.False(t, Attachment{}.HasContent())
	assert.False(t, Attachment{Content: &empty}.HasContent())
	assert.True(t, Attachment{Content: &text}.HasContent())
}
