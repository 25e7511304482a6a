package document

// Status tracks how far a generated document has progressed.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusComplete Status = "complete"
)

// Generated is the administrative document currently shown in the preview
// pane. A session holds at most one; a newer one replaces it wholesale.
type Generated struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type"`
	Status  Status `json:"status"`
}
