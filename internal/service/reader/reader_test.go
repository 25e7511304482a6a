package reader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadPlainText(t *testing.T) {
	r := New(0)
	text, err := r.Read(context.Background(), FromBytes("cmnd.txt", "text/plain", []byte("Họ tên: Nguyễn Văn V")))
	require.NoError(t, err)
	assert.Equal(t, "Họ tên: Nguyễn Văn V", text)
}

func TestReadStripsBOM(t *testing.T) {
	r := New(0)
	text, err := r.Read(context.Background(), FromBytes("a.txt", "", append([]byte{0xEF, 0xBB, 0xBF}, []byte("abc")...)))
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestReadReplacesInvalidUTF8(t *testing.T) {
	r := New(0)
	text, err := r.Read(context.Background(), FromBytes("scan.pdf", "application/pdf", []byte{'%', 'P', 0xff, 'D'}))
	require.NoError(t, err)
	assert.Equal(t, "%P�D", text)
}

func TestReadHTML(t *testing.T) {
	page := `<html><head><style>p{}</style></head><body>
		<h1>Nghị định 168</h1>
		<script>alert(1)</script>
		<p>Điều 1.   Phạm vi điều chỉnh</p>
	</body></html>`

	r := New(0)
	text, err := r.Read(context.Background(), FromBytes("nghi-dinh.html", "text/html", []byte(page)))
	require.NoError(t, err)
	assert.Equal(t, "Nghị định 168\nĐiều 1. Phạm vi điều chỉnh", text)
}

func TestReadSpreadsheet(t *testing.T) {
	book := excelize.NewFile()
	require.NoError(t, book.SetCellValue("Sheet1", "A1", "Mẫu số"))
	require.NoError(t, book.SetCellValue("Sheet1", "B1", "Tên mẫu"))
	require.NoError(t, book.SetCellValue("Sheet1", "A2", "Phụ lục I-1"))
	require.NoError(t, book.SetCellValue("Sheet1", "B2", "Giấy đề nghị"))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	r := New(0)
	text, err := r.Read(context.Background(), FromBytes("mẫu biểu.xlsx", "", buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "## Sheet1\nMẫu số\tTên mẫu\nPhụ lục I-1\tGiấy đề nghị", text)
}

func TestReadCorruptSpreadsheetIsReadError(t *testing.T) {
	r := New(0)
	_, err := r.Read(context.Background(), FromBytes("broken.xlsx", "", []byte("not a zip")))

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "broken.xlsx", readErr.Name)
}

func TestReadTooLarge(t *testing.T) {
	r := New(4)
	_, err := r.Read(context.Background(), FromBytes("big.txt", "", []byte("12345")))
	assert.ErrorIs(t, err, ErrTooLarge)

	text, err := r.Read(context.Background(), FromBytes("ok.txt", "", []byte("1234")))
	require.NoError(t, err)
	assert.Equal(t, "1234", text)
}

func TestReadOpenFailure(t *testing.T) {
	boom := errors.New("permission denied")
	f := File{Name: "locked.txt", Open: func() (io.ReadCloser, error) { return nil, boom }}

	_, err := New(0).Read(context.Background(), f)

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "locked.txt", readErr.Name)
	assert.ErrorIs(t, err, boom)
}

func TestReadCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(0).Read(ctx, FromBytes("a.txt", "", []byte("a")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadAllKeepsSubmissionOrder(t *testing.T) {
	slow := func(name, body string, delay time.Duration) File {
		return File{Name: name, Open: func() (io.ReadCloser, error) {
			time.Sleep(delay)
			return io.NopCloser(strings.NewReader(body)), nil
		}}
	}
	files := []File{
		slow("first.txt", "một", 30*time.Millisecond),
		slow("second.txt", "hai", 0),
		{Name: "broken.txt", Open: func() (io.ReadCloser, error) { return nil, errors.New("io") }},
		slow("fourth.txt", "bốn", 10*time.Millisecond),
	}

	results := New(0).ReadAll(context.Background(), files)

	require.Len(t, results, 4)
	assert.Equal(t, "first.txt", results[0].Name)
	assert.Equal(t, "một", results[0].Text)
	assert.Equal(t, "hai", results[1].Text)
	assert.Error(t, results[2].Err)
	assert.Empty(t, results[2].Text)
	assert.Equal(t, "bốn", results[3].Text)
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Luật Doanh Nghiệp.txt")
	require.NoError(t, os.WriteFile(path, []byte("Điều 1"), 0o644))

	f, err := FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "Luật Doanh Nghiệp.txt", f.Name)
	assert.EqualValues(t, len("Điều 1"), f.Size)

	text, err := New(0).Read(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "Điều 1", text)

	_, err = FromPath(dir)
	assert.Error(t, err)
}
