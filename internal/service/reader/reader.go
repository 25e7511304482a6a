package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultMaxBytes bounds a single file read when no limit is configured.
const DefaultMaxBytes int64 = 20 << 20

// ErrTooLarge reports a file above the configured size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// File is a handle on a user supplied file. Open may be called once per read.
type File struct {
	Name      string
	Size      int64
	MediaType string
	Open      func() (io.ReadCloser, error)
}

// FromBytes wraps an in-memory payload.
func FromBytes(name, mediaType string, data []byte) File {
	return File{
		Name:      name,
		Size:      int64(len(data)),
		MediaType: mediaType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromMultipart wraps an uploaded form file.
func FromMultipart(header *multipart.FileHeader) File {
	return File{
		Name:      header.Filename,
		Size:      header.Size,
		MediaType: header.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}

// FromPath wraps a file on disk. The name is the base name of path.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// ReadError reports a file that could not be read as text.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one read inside ReadAll.
type Result struct {
	Name string
	Text string
	Err  error
}

// Reader turns files into plain text, picking an extractor by extension.
type Reader struct {
	maxBytes   int64
	extractors map[string]Extractor
}

// New creates a Reader with the built-in extractors. maxBytes <= 0 selects
// DefaultMaxBytes.
func New(maxBytes int64) *Reader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Reader{
		maxBytes:   maxBytes,
		extractors: defaultExtractors(),
	}
}

// Read extracts the text of f. Every failure is a *ReadError.
func (r *Reader) Read(ctx context.Context, f File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ReadError{Name: f.Name, Err: err}
	}
	if f.Open == nil {
		return "", &ReadError{Name: f.Name, Err: errors.New("no content")}
	}

	rc, err := f.Open()
	if err != nil {
		return "", &ReadError{Name: f.Name, Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, r.maxBytes+1))
	if err != nil {
		return "", &ReadError{Name: f.Name, Err: err}
	}
	if int64(len(data)) > r.maxBytes {
		return "", &ReadError{Name: f.Name, Err: ErrTooLarge}
	}

	extract, ok := r.extractors[strings.ToLower(filepath.Ext(f.Name))]
	if !ok {
		extract = plainText
	}

	text, err := extract(data)
	if err != nil {
		return "", &ReadError{Name: f.Name, Err: err}
	}
	return text, nil
}

// ReadAll reads every file concurrently. Results keep the position of the
// file they belong to, whatever order the reads finish in.
func (r *Reader) ReadAll(ctx context.Context, files []File) []Result {
	results := make([]Result, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			text, err := r.Read(ctx, f)
			results[i] = Result{Name: f.Name, Text: text, Err: err}
		}(i, f)
	}
	wg.Wait()

	return results
}
