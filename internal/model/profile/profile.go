package profile

// DefaultID is the profile used when a session does not name one.
const DefaultID = "jr-studio"

// Profile captures how the assistant presents itself to its client.
type Profile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Client      string   `json:"client"`      // how the user is addressed
	Tone        string   `json:"tone"`
	OpeningLine string   `json:"openingLine"` // first assistant turn of every session
	Expertise   []string `json:"expertise,omitempty"`
}

// Seed provides the profiles available out of the box.
func Seed() []Profile {
	return []Profile{
		{
			ID:          DefaultID,
			Name:        "Jr- Studio",
			Title:       "Trợ lý pháp lý",
			Client:      "Mr V",
			Tone:        "Tiếng Việt hành chính, chuyên nghiệp",
			OpeningLine: "Chào Mr V, Jr- Studio đã sẵn sàng. Hãy cung cấp nguồn tài liệu pháp lý và yêu cầu của Mr V để tôi bắt đầu phân tích thực tế.",
			Expertise:   []string{"Luật Doanh nghiệp", "Nghị định 168", "Thông tư 68", "Hồ sơ đăng ký kinh doanh"},
		},
	}
}
