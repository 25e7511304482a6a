package source

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Category tags a reference document by its legal kind.
type Category string

const (
	Law      Category = "law"
	Circular Category = "circular"
	Decree   Category = "decree"
	Template Category = "template"
)

// Document is one reference text loaded into the registry. It is never
// mutated after it has been created.
type Document struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     Category `json:"type"`
	FileName string   `json:"fileName"`
	Content  string   `json:"content"`
}

// keywordRules are checked in order; the first match wins.
var keywordRules = []struct {
	keyword  string
	category Category
}{
	{"luật", Law},
	{"thông tư", Circular},
	{"nghị định", Decree},
}

// Classify infers the category of a file from its name. Matching is a
// case-insensitive substring test; names that match nothing are templates.
func Classify(filename string) Category {
	normalized := normalizeName(filename)
	for _, rule := range keywordRules {
		if strings.Contains(normalized, rule.keyword) {
			return rule.category
		}
	}
	return Template
}

// DisplayName strips the last extension from a file name.
func DisplayName(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return filename
	}
	if strings.Contains(filename[idx+1:], "/") {
		return filename
	}
	return filename[:idx]
}

// normalizeName lower-cases and recomposes the name. File pickers on macOS
// hand out decomposed (NFD) names, which would otherwise never contain the
// precomposed keywords.
func normalizeName(filename string) string {
	return norm.NFC.String(strings.ToLower(norm.NFC.String(filename)))
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case Law, Circular, Decree, Template:
		return true
	default:
		return false
	}
}
