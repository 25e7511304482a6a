package reader

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

// Extractor converts raw file bytes into text.
type Extractor func(data []byte) (string, error)

func defaultExtractors() map[string]Extractor {
	return map[string]Extractor{
		".html": htmlText,
		".htm":  htmlText,
		".xlsx": spreadsheetText,
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// plainText decodes data as UTF-8, replacing invalid sequences the same way
// a browser FileReader does.
func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	content := doc.Find("body").Text()
	if strings.TrimSpace(content) == "" {
		content = doc.Text()
	}
	return cleanLines(content), nil
}

// spreadsheetText renders every sheet as tab separated rows under a
// "## <sheet>" heading.
func spreadsheetText(data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer book.Close()

	var builder strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("## ")
		builder.WriteString(sheet)
		builder.WriteString("\n")
		for _, row := range rows {
			builder.WriteString(strings.Join(row, "\t"))
			builder.WriteString("\n")
		}
	}
	return strings.TrimRight(builder.String(), "\n"), nil
}

// cleanLines trims every line and drops the blank ones.
func cleanLines(content string) string {
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
