package chat

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/zhouzirui/jr-studio/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/jr-studio/backend/internal/service/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/service/reader"
)

// maxMultipartMemory 超出部分由 net/http 落盘。
const maxMultipartMemory = 32 << 20

// ErrInvalidBody marks a request body that could not be decoded.
var ErrInvalidBody = errors.New("invalid request body")

// AttachmentPayload is a file sent inline as base64.
type AttachmentPayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// SubmissionPayload is the JSON form of a submission.
type SubmissionPayload struct {
	Text        string              `json:"text"`
	Attachments []AttachmentPayload `json:"attachments,omitempty"`
}

// Submission decodes the inline attachments.
func (p SubmissionPayload) Submission() (assistant.Submission, error) {
	sub := assistant.Submission{Text: p.Text}
	for _, a := range p.Attachments {
		if strings.TrimSpace(a.Name) == "" {
			return assistant.Submission{}, fmt.Errorf("%w: attachment name is required", ErrInvalidBody)
		}
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			return assistant.Submission{}, fmt.Errorf("%w: attachment %s is not base64: %v", ErrInvalidBody, a.Name, err)
		}
		sub.Files = append(sub.Files, reader.FromBytes(a.Name, a.Type, data))
	}
	return sub, nil
}

// ParseSubmission reads a multipart form (text, files) or a JSON payload.
func ParseSubmission(r *http.Request) (assistant.Submission, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return assistant.Submission{}, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		sub := assistant.Submission{Text: r.FormValue("text")}
		for _, header := range r.MultipartForm.File["files"] {
			sub.Files = append(sub.Files, reader.FromMultipart(header))
		}
		return sub, nil
	}

	var payload SubmissionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return assistant.Submission{}, ErrInvalidBody
	}
	return payload.Submission()
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidBody),
		errors.Is(err, assistant.ErrEmptySubmission),
		errors.Is(err, assistant.ErrProfileNotFound),
		errors.Is(err, chatService.ErrProfileRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
