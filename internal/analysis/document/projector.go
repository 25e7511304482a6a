package document

import (
	"strings"

	"github.com/google/uuid"

	"github.com/zhouzirui/jr-studio/backend/internal/model/document"
)

// 识别行政文书的标记，任一出现即视为草稿。
const (
	NationalMarker = "CỘNG HÒA XÃ HỘI CHỦ NGHĨA VIỆT NAM"
	FormMarker     = "GIẤY ĐỀ NGHỊ"
	Motto          = "Độc lập - Tự do - Hạnh phúc"

	DraftTitle = "Hồ sơ dự thảo"
	DraftType  = "draft"
)

// Markers lists the phrases that turn a response into a document.
var Markers = []string{NationalMarker, FormMarker}

// BlockKind 标识预览中一行的排版方式。
type BlockKind string

const (
	BlockTitle     BlockKind = "title"
	BlockHeading   BlockKind = "heading"
	BlockNational  BlockKind = "national"
	BlockMotto     BlockKind = "motto"
	BlockParagraph BlockKind = "paragraph"
)

// Block is one preview line with its markdown prefix removed.
type Block struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text"`
}

// Detect reports whether the response contains any document marker.
func Detect(response string) bool {
	if strings.TrimSpace(response) == "" {
		return false
	}
	for _, marker := range Markers {
		if strings.Contains(response, marker) {
			return true
		}
	}
	return false
}

// Project 根据模型回复生成新的草稿文书。未命中标记时返回 false，调用方保留原文书。
func Project(response string) (document.Generated, bool) {
	if !Detect(response) {
		return document.Generated{}, false
	}
	return document.Generated{
		ID:      uuid.NewString(),
		Title:   DraftTitle,
		Content: response,
		Type:    DraftType,
		Status:  document.StatusDraft,
	}, true
}

// Layout splits content into preview blocks, one per line.
func Layout(content string) []Block {
	if content == "" {
		return nil
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		blocks = append(blocks, classifyLine(line))
	}
	return blocks
}

func classifyLine(line string) Block {
	// 前缀判断优先于标记判断，"# CỘNG HÒA..." 仍是标题。
	switch {
	case strings.HasPrefix(line, "# "):
		return Block{Kind: BlockTitle, Text: strings.TrimPrefix(line, "# ")}
	case strings.HasPrefix(line, "## "):
		return Block{Kind: BlockHeading, Text: strings.TrimPrefix(line, "## ")}
	case strings.Contains(line, NationalMarker):
		return Block{Kind: BlockNational, Text: line}
	case strings.Contains(line, Motto):
		return Block{Kind: BlockMotto, Text: line}
	default:
		return Block{Kind: BlockParagraph, Text: line}
	}
}
