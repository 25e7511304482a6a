package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	analysis "github.com/zhouzirui/jr-studio/backend/internal/analysis/document"
	"github.com/zhouzirui/jr-studio/backend/internal/model/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/model/document"
	"github.com/zhouzirui/jr-studio/backend/internal/model/profile"
	"github.com/zhouzirui/jr-studio/backend/internal/model/source"
	"github.com/zhouzirui/jr-studio/backend/internal/service/ai"
	chatService "github.com/zhouzirui/jr-studio/backend/internal/service/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/service/reader"
)

var (
	ErrEmptySubmission  = errors.New("submission needs text or at least one attachment")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrModelUnavailable = errors.New("no model backend configured")
)

// FallbackMessage replaces the assistant reply when the model call fails.
const FallbackMessage = "Hệ thống Jr- Studio gặp sự cố kết nối. Mr V vui lòng kiểm tra lại."

// 进度文案是固定脚本，仅用于展示，不反映真实的处理阶段。
const (
	StepReceived     = "Jr- Studio đang tiếp nhận yêu cầu..."
	StepReading      = "Đang đọc các file đính kèm..."
	StepCrossCheck   = "Đang đối chiếu với Nghị định 168 trong nguồn..."
	StepTemplates    = "Đang tìm kiếm mẫu biểu tại Thông tư 68..."
	StepCompiling    = "Đang tổng hợp dữ liệu hồ sơ cho Mr V..."
	StepCompleted    = "Đã hoàn tất phân tích."
	unreadableNotice = "Jr- Studio không đọc được file đính kèm: %s"
)

// Generator is the model collaborator. *ai.Service satisfies it.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

// SourceLister exposes the loaded legal library.
type SourceLister interface {
	List() []source.Document
}

// ProgressFunc receives each narration label as it is published.
type ProgressFunc func(label string)

// Submission is one user request: text plus optional attachments.
type Submission struct {
	Text  string
	Files []reader.File
}

// Outcome 汇总一次提交产生的全部变化。Err 记录模型调用失败，此时 Assistant 为兜底回复。
type Outcome struct {
	User      chat.Message        `json:"user"`
	Assistant chat.Message        `json:"assistant"`
	Notice    *chat.Message       `json:"notice,omitempty"`
	Document  *document.Generated `json:"document,omitempty"`
	Unread    []string            `json:"unread,omitempty"`
	Err       error               `json:"-"`
}

// Service drives a submission through the conversation store, the
// attachment reader, the model and the document projector.
type Service struct {
	chats    *chatService.Service
	profiles profile.Store
	sources  SourceLister
	reader   *reader.Reader
	model    Generator
}

// NewService wires the submission pipeline. A nil model makes every
// submission end with the fallback reply.
func NewService(chats *chatService.Service, profiles profile.Store, sources SourceLister, r *reader.Reader, model Generator) *Service {
	if r == nil {
		r = reader.New(reader.DefaultMaxBytes)
	}
	return &Service{
		chats:    chats,
		profiles: profiles,
		sources:  sources,
		reader:   r,
		model:    model,
	}
}

// Greeting returns the opening line for a profile. An empty id means the
// store's default profile.
func (s *Service) Greeting(profileID string) (string, error) {
	p, ok := s.profiles.Resolve(profileID)
	if !ok {
		return "", ErrProfileNotFound
	}
	return p.OpeningLine, nil
}

// StartSession creates a session seeded with the profile's opening line.
func (s *Service) StartSession(ctx context.Context, profileID string) (chat.Session, error) {
	p, ok := s.profiles.Resolve(profileID)
	if !ok {
		return chat.Session{}, ErrProfileNotFound
	}
	return s.chats.CreateSession(ctx, p.ID, p.OpeningLine)
}

// Submit processes one submission. Validation, lookup and busy errors are
// returned before any turn is recorded. Once the user turn is appended the
// call always records an assistant turn and returns a nil error; a model
// failure is reported through Outcome.Err.
func (s *Service) Submit(ctx context.Context, sessionID string, sub Submission, progress ProgressFunc) (Outcome, error) {
	if strings.TrimSpace(sub.Text) == "" && len(sub.Files) == 0 {
		return Outcome{}, ErrEmptySubmission
	}

	session, err := s.chats.GetSession(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	p, ok := s.profiles.FindByID(session.ProfileID)
	if !ok {
		return Outcome{}, ErrProfileNotFound
	}

	if err := s.chats.Begin(ctx, sessionID); err != nil {
		return Outcome{}, err
	}
	defer func() {
		if err := s.chats.End(context.WithoutCancel(ctx), sessionID); err != nil {
			log.Printf("[assistant] failed to clear busy flag for session=%s: %v", sessionID, err)
		}
	}()

	var steps []string
	publish := func(label string) {
		steps = append(steps, label)
		if err := s.chats.SetProgress(ctx, sessionID, steps); err != nil {
			log.Printf("[assistant] failed to publish progress for session=%s: %v", sessionID, err)
		}
		if progress != nil {
			progress(label)
		}
	}

	publish(StepReceived)
	publish(StepReading)
	attachments, unread := s.readAttachments(ctx, sub.Files)

	publish(StepCrossCheck)
	publish(StepTemplates)

	var out Outcome
	out.Unread = unread
	out.User, err = s.chats.AppendUser(ctx, sessionID, sub.Text, attachments)
	if err != nil {
		return Outcome{}, fmt.Errorf("append user turn: %w", err)
	}

	publish(StepCompiling)
	response, genErr := s.generate(ctx, p, sessionID)
	if genErr != nil {
		log.Printf("[assistant] model call failed for session=%s: %v", sessionID, genErr)
		out.Err = genErr
		out.Assistant, err = s.chats.AppendAssistant(ctx, sessionID, FallbackMessage, nil)
		if err != nil {
			return out, fmt.Errorf("append fallback turn: %w", err)
		}
		s.appendNotice(ctx, sessionID, &out)
		return out, nil
	}

	publish(StepCompleted)
	out.Assistant, err = s.chats.AppendAssistant(ctx, sessionID, response, append([]string(nil), steps...))
	if err != nil {
		return out, fmt.Errorf("append assistant turn: %w", err)
	}

	if doc, ok := analysis.Project(response); ok {
		if err := s.chats.SetDocument(ctx, sessionID, doc); err != nil {
			return out, fmt.Errorf("set document: %w", err)
		}
		out.Document = &doc
	}
	s.appendNotice(ctx, sessionID, &out)
	return out, nil
}

func (s *Service) generate(ctx context.Context, p profile.Profile, sessionID string) (string, error) {
	if s.model == nil {
		return "", &ai.ModelCallError{Provider: "none", Err: ErrModelUnavailable}
	}

	turns, err := s.chats.LoadTranscript(ctx, sessionID)
	if err != nil {
		return "", err
	}

	var docs []source.Document
	if s.sources != nil {
		docs = s.sources.List()
	}
	return s.model.Generate(ctx, ai.BuildRequest(p, turns, docs))
}

// readAttachments 并发读取附件，结果按提交顺序对应，不按文件名匹配。
func (s *Service) readAttachments(ctx context.Context, files []reader.File) ([]chat.Attachment, []string) {
	if len(files) == 0 {
		return nil, nil
	}

	results := s.reader.ReadAll(ctx, files)
	attachments := make([]chat.Attachment, len(files))
	var unread []string
	for i, f := range files {
		attachments[i] = chat.Attachment{Name: f.Name, Size: f.Size, Type: f.MediaType}
		if results[i].Err != nil {
			log.Printf("[assistant] warning: could not read attachment %q: %v", f.Name, results[i].Err)
			unread = append(unread, f.Name)
			continue
		}
		text := results[i].Text
		attachments[i].Content = &text
	}
	return attachments, unread
}

// appendNotice records unreadable attachments after the reply so the
// current request history is unaffected.
func (s *Service) appendNotice(ctx context.Context, sessionID string, out *Outcome) {
	if len(out.Unread) == 0 {
		return
	}
	notice, err := s.chats.AppendSystemError(ctx, sessionID, fmt.Sprintf(unreadableNotice, strings.Join(out.Unread, ", ")))
	if err != nil {
		log.Printf("[assistant] failed to record attachment notice for session=%s: %v", sessionID, err)
		return
	}
	out.Notice = &notice
}
