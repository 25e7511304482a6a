package assistant

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/jr-studio/backend/internal/model/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/model/profile"
	"github.com/zhouzirui/jr-studio/backend/internal/model/source"
	"github.com/zhouzirui/jr-studio/backend/internal/service/ai"
	chatService "github.com/zhouzirui/jr-studio/backend/internal/service/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/service/reader"
)

type fakeModel struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []ai.Request
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeModel) Generate(ctx context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

type staticSources []source.Document

func (s staticSources) List() []source.Document { return s }

func newTestService(t *testing.T, model Generator, docs staticSources) (*Service, *chatService.Service, chat.Session) {
	t.Helper()
	chats := chatService.NewService()
	svc := NewService(chats, profile.NewMemoryStore(profile.Seed()), docs, reader.New(0), model)
	session, err := svc.StartSession(context.Background(), "")
	require.NoError(t, err)
	return svc, chats, session
}

func TestStartSessionSeedsGreeting(t *testing.T) {
	_, chats, session := newTestService(t, &fakeModel{reply: "ok"}, nil)

	assert.Equal(t, profile.DefaultID, session.ProfileID)
	turns, err := chats.LoadTranscript(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, chat.RoleAssistant, turns[0].Role)
	assert.Contains(t, turns[0].Content, "Chào Mr V")
}

func TestStartSessionUnknownProfile(t *testing.T) {
	svc := NewService(chatService.NewService(), profile.NewMemoryStore(profile.Seed()), nil, nil, nil)
	_, err := svc.StartSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestStartSessionUsesStoreDefault(t *testing.T) {
	store := profile.NewMemoryStore([]profile.Profile{{ID: "firm", OpeningLine: "Xin chào"}})
	svc := NewService(chatService.NewService(), store, nil, nil, nil)

	session, err := svc.StartSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "firm", session.ProfileID)

	greeting, err := svc.Greeting("")
	require.NoError(t, err)
	assert.Equal(t, "Xin chào", greeting)
}

func TestStartSessionEmptyStore(t *testing.T) {
	svc := NewService(chatService.NewService(), profile.NewMemoryStore(nil), nil, nil, nil)
	_, err := svc.StartSession(context.Background(), "")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSubmitRejectsEmptySubmission(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	svc, chats, session := newTestService(t, model, nil)

	_, err := svc.Submit(context.Background(), session.ID, Submission{Text: "   "}, nil)
	assert.ErrorIs(t, err, ErrEmptySubmission)
	assert.Empty(t, model.requests)

	turns, _ := chats.LoadTranscript(context.Background(), session.ID)
	assert.Len(t, turns, 1, "nothing is appended")
}

func TestSubmitUnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeModel{reply: "ok"}, nil)
	_, err := svc.Submit(context.Background(), "missing", Submission{Text: "hi"}, nil)
	assert.ErrorIs(t, err, chatService.ErrSessionNotFound)
}

func TestSubmitHappyPath(t *testing.T) {
	model := &fakeModel{reply: "Theo Nghị định 168, mức phạt là 2 triệu đồng."}
	docs := staticSources{{ID: "1", Name: "Nghị định 168", Type: source.Decree, FileName: "Nghị định 168.txt", Content: "Điều 5"}}
	svc, chats, session := newTestService(t, model, docs)

	var labels []string
	out, err := svc.Submit(context.Background(), session.ID, Submission{Text: "Mức phạt vượt đèn đỏ?"}, func(label string) {
		labels = append(labels, label)
	})
	require.NoError(t, err)
	require.NoError(t, out.Err)

	want := []string{StepReceived, StepReading, StepCrossCheck, StepTemplates, StepCompiling, StepCompleted}
	assert.Equal(t, want, labels)
	assert.Equal(t, want, out.Assistant.ProcessingSteps)
	assert.Nil(t, out.Document)

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Contains(t, req.SourceContext, "[NGUỒN: Nghị định 168]")
	require.Len(t, req.History, 2)
	assert.Equal(t, ai.HistoryModel, req.History[0].Role)
	assert.Equal(t, ai.HistoryUser, req.History[1].Role)
	assert.Equal(t, "Mức phạt vượt đèn đỏ?", req.History[1].Text)

	turns, _ := chats.LoadTranscript(context.Background(), session.ID)
	require.Len(t, turns, 3)
	assert.Equal(t, model.reply, turns[2].Content)

	state, _ := chats.Snapshot(context.Background(), session.ID)
	assert.False(t, state.Busy)
	assert.Empty(t, state.Progress)
}

func TestSubmitEmptyRegistryUsesPlaceholder(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	svc, _, session := newTestService(t, model, nil)

	_, err := svc.Submit(context.Background(), session.ID, Submission{Text: "hi"}, nil)
	require.NoError(t, err)
	require.Len(t, model.requests, 1)
	assert.Equal(t, ai.EmptySourcesPlaceholder, model.requests[0].SourceContext)
}

func TestSubmitProjectsDocument(t *testing.T) {
	reply := "CỘNG HÒA XÃ HỘI CHỦ NGHĨA VIỆT NAM\nĐộc lập - Tự do - Hạnh phúc\n# GIẤY ĐỀ NGHỊ"
	svc, chats, session := newTestService(t, &fakeModel{reply: reply}, nil)

	out, err := svc.Submit(context.Background(), session.ID, Submission{Text: "Soạn giấy đề nghị"}, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Document)
	assert.Equal(t, "Hồ sơ dự thảo", out.Document.Title)
	assert.Equal(t, reply, out.Document.Content)

	state, _ := chats.Snapshot(context.Background(), session.ID)
	require.NotNil(t, state.Document)
	assert.Equal(t, out.Document.ID, state.Document.ID)
}

func TestSubmitKeepsDocumentWhenNoMarker(t *testing.T) {
	model := &fakeModel{reply: "GIẤY ĐỀ NGHỊ"}
	svc, chats, session := newTestService(t, model, nil)

	first, err := svc.Submit(context.Background(), session.ID, Submission{Text: "soạn"}, nil)
	require.NoError(t, err)
	require.NotNil(t, first.Document)

	model.reply = "Đã ghi nhận."
	second, err := svc.Submit(context.Background(), session.ID, Submission{Text: "cảm ơn"}, nil)
	require.NoError(t, err)
	assert.Nil(t, second.Document)

	state, _ := chats.Snapshot(context.Background(), session.ID)
	require.NotNil(t, state.Document)
	assert.Equal(t, first.Document.ID, state.Document.ID)
}

func TestSubmitModelFailureAppendsFallback(t *testing.T) {
	quota := errors.New("quota exceeded")
	svc, chats, session := newTestService(t, &fakeModel{err: &ai.ModelCallError{Provider: "fake", Err: quota}}, nil)

	var labels []string
	out, err := svc.Submit(context.Background(), session.ID, Submission{Text: "hi"}, func(l string) { labels = append(labels, l) })
	require.NoError(t, err)
	assert.ErrorIs(t, out.Err, quota)
	assert.Equal(t, FallbackMessage, out.Assistant.Content)
	assert.Empty(t, out.Assistant.ProcessingSteps)
	assert.NotContains(t, labels, StepCompleted)

	turns, _ := chats.LoadTranscript(context.Background(), session.ID)
	require.Len(t, turns, 3)
	assert.Equal(t, FallbackMessage, turns[2].Content)

	state, _ := chats.Snapshot(context.Background(), session.ID)
	assert.False(t, state.Busy)
	assert.Empty(t, state.Progress)
}

func TestSubmitWithoutModelFallsBack(t *testing.T) {
	svc, _, session := newTestService(t, nil, nil)

	out, err := svc.Submit(context.Background(), session.ID, Submission{Text: "hi"}, nil)
	require.NoError(t, err)

	var callErr *ai.ModelCallError
	require.ErrorAs(t, out.Err, &callErr)
	assert.ErrorIs(t, out.Err, ErrModelUnavailable)
	assert.Equal(t, FallbackMessage, out.Assistant.Content)
}

func TestSubmitAttachmentsKeepOrderAndSkipUnreadable(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	svc, chats, session := newTestService(t, model, nil)

	broken := reader.File{Name: "hỏng.txt", Size: 4, Open: func() (io.ReadCloser, error) {
		return nil, errors.New("disk error")
	}}
	files := []reader.File{
		reader.FromBytes("tờ khai.txt", "text/plain", []byte("Họ tên: Mr V")),
		broken,
		reader.FromBytes("tờ khai.txt", "text/plain", []byte("bản thứ hai")),
	}

	out, err := svc.Submit(context.Background(), session.ID, Submission{Text: "Kiểm tra", Files: files}, nil)
	require.NoError(t, err)

	atts := out.User.Attachments
	require.Len(t, atts, 3)
	require.True(t, atts[0].HasContent())
	assert.Equal(t, "Họ tên: Mr V", *atts[0].Content)
	assert.Nil(t, atts[1].Content)
	require.True(t, atts[2].HasContent())
	assert.Equal(t, "bản thứ hai", *atts[2].Content, "duplicate names are matched by position")

	assert.Equal(t, []string{"hỏng.txt"}, out.Unread)
	require.NotNil(t, out.Notice)
	assert.Equal(t, chat.RoleSystem, out.Notice.Role)

	history := model.requests[0].History
	last := history[len(history)-1].Text
	assert.True(t, strings.HasPrefix(last, "Kiểm tra"))
	assert.Contains(t, last, "[FILE ĐÍNH KÈM: tờ khai.txt]\nNỘI DUNG TRÍCH XUẤT:\nHọ tên: Mr V")
	assert.NotContains(t, last, "hỏng.txt")

	turns, _ := chats.LoadTranscript(context.Background(), session.ID)
	require.Len(t, turns, 4)
	assert.Equal(t, chat.RoleSystem, turns[3].Role)
}

func TestSubmitAttachmentOnly(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	svc, _, session := newTestService(t, model, nil)

	out, err := svc.Submit(context.Background(), session.ID, Submission{
		Files: []reader.File{reader.FromBytes("mẫu.txt", "text/plain", []byte("Mẫu số 01"))},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, out.User.Content)
	assert.Len(t, model.requests, 1)
}

func TestSubmitRejectsWhileBusy(t *testing.T) {
	model := &fakeModel{reply: "ok", block: make(chan struct{}), started: make(chan struct{})}
	svc, chats, session := newTestService(t, model, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), session.ID, Submission{Text: "một"}, nil)
		done <- err
	}()
	<-model.started

	_, err := svc.Submit(context.Background(), session.ID, Submission{Text: "hai"}, nil)
	assert.ErrorIs(t, err, chatService.ErrBusy)

	state, _ := chats.Snapshot(context.Background(), session.ID)
	assert.True(t, state.Busy)
	assert.NotEmpty(t, state.Progress)

	close(model.block)
	require.NoError(t, <-done)

	turns, _ := chats.LoadTranscript(context.Background(), session.ID)
	assert.Len(t, turns, 3, "the rejected submission left no turn")
}
