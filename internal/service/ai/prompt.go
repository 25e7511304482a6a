package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/jr-studio/backend/internal/model/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/model/profile"
	"github.com/zhouzirui/jr-studio/backend/internal/model/source"
)

// EmptySourcesPlaceholder stands in for the source block when nothing has
// been loaded, so the model is told explicitly instead of seeing silence.
const EmptySourcesPlaceholder = "TRỐNG - Yêu cầu Mr V tải nguồn lên."

const sourceSectionHeader = "DỮ LIỆU NGUỒN HIỆN CÓ (CHỈ DÙNG DỮ LIỆU NÀY):"

const instructionTemplate = `
BẠN LÀ: Hệ thống Trợ lý Pháp lý "%[1]s", phục vụ riêng cho %[2]s.
NGUYÊN TẮC TỐI THƯỢNG:
1. KHÔNG TRA CỨU MẠNG. Bạn chỉ được phép sử dụng thông tin trong mục "DỮ LIỆU NGUỒN HIỆN CÓ" bên dưới.
2. Nếu %[2]s yêu cầu một thủ tục (ví dụ: lập địa điểm kinh doanh), bạn phải:
   a. Tra cứu Nghị định 168 (trong nguồn) để tìm quy định về hồ sơ.
   b. Tra cứu Thông tư 68 (trong nguồn) để lấy đúng mẫu Phụ lục quy định.
   c. Nếu KHÔNG tìm thấy tài liệu tương ứng trong nguồn, bạn phải thông báo: "%[2]s ơi, trong nguồn tài liệu hiện tại chưa có [Tên tài liệu], %[2]s vui lòng bổ sung để %[1]s xử lý chính xác."
3. TRÍCH XUẤT THÔNG TIN: Đọc kỹ các file đính kèm của %[2]s để tự điền vào mẫu. Chỉ hỏi những thông tin mà cả nguồn và file đính kèm đều không có.
4. TRUY VẤN NGƯỢC: Nếu có mâu thuẫn giữa các văn bản (ví dụ: địa chỉ trong CMND khác địa chỉ %[2]s cung cấp), hãy hỏi lại %[2]s.
5. THÔNG TƯ 68: Mọi mẫu biểu phải lấy từ Phụ lục của Thông tư 68 có trong nguồn.

Xưng hô: Luôn gọi "%[2]s".
Ngôn ngữ: %[3]s.
`

// BuildSystemInstruction renders the fixed instruction for a profile.
func BuildSystemInstruction(p profile.Profile) string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "Jr- Studio"
	}
	client := strings.TrimSpace(p.Client)
	if client == "" {
		client = "Mr V"
	}
	tone := strings.TrimSpace(p.Tone)
	if tone == "" {
		tone = "Tiếng Việt hành chính, chuyên nghiệp"
	}
	return fmt.Sprintf(instructionTemplate, name, client, tone)
}

// FormatSources serializes the registry into one labelled block per
// document. An empty registry yields EmptySourcesPlaceholder.
func FormatSources(docs []source.Document) string {
	if len(docs) == 0 {
		return EmptySourcesPlaceholder
	}

	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		blocks = append(blocks, fmt.Sprintf("[NGUỒN: %s]\nLOẠI: %s\nNỘI DUNG:\n%s", doc.Name, doc.Type, doc.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatTurn returns the text of a turn followed by the extracted text of
// every readable attachment.
func FormatTurn(msg chat.Message) string {
	var files []string
	for _, a := range msg.Attachments {
		if !a.HasContent() {
			continue
		}
		files = append(files, fmt.Sprintf("[FILE ĐÍNH KÈM: %s]\nNỘI DUNG TRÍCH XUẤT:\n%s", a.Name, *a.Content))
	}
	if len(files) == 0 {
		return msg.Content
	}
	return msg.Content + "\n\n" + strings.Join(files, "\n\n")
}

// HistoryRole is the speaker of a history entry as the model sees it.
type HistoryRole string

const (
	HistoryUser  HistoryRole = "user"
	HistoryModel HistoryRole = "model"
)

// HistoryEntry is one serialized turn.
type HistoryEntry struct {
	Role HistoryRole
	Text string
}

// Request is the whole payload of one model call.
type Request struct {
	SystemInstruction string
	SourceContext     string
	History           []HistoryEntry
}

// SystemPrompt joins the instruction and the source block the way the
// model receives them.
func (r Request) SystemPrompt() string {
	return r.SystemInstruction + "\n\n" + sourceSectionHeader + "\n" + r.SourceContext
}

// BuildRequest assembles the payload for a conversation and a registry.
// Assistant turns become model turns; user and system turns are sent as
// user turns.
func BuildRequest(p profile.Profile, turns []chat.Message, docs []source.Document) Request {
	history := make([]HistoryEntry, 0, len(turns))
	for _, msg := range turns {
		role := HistoryUser
		if msg.Role == chat.RoleAssistant {
			role = HistoryModel
		}
		history = append(history, HistoryEntry{Role: role, Text: FormatTurn(msg)})
	}

	return Request{
		SystemInstruction: BuildSystemInstruction(p),
		SourceContext:     FormatSources(docs),
		History:           history,
	}
}
