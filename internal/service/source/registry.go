package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/jr-studio/backend/internal/model/source"
	"github.com/zhouzirui/jr-studio/backend/internal/service/reader"
)

// Policy decides what happens to a batch when some files cannot be read.
type Policy string

const (
	// BestEffort skips unreadable files and keeps the rest.
	BestEffort Policy = "best-effort"
	// Atomic rejects the whole batch when any file fails.
	Atomic Policy = "atomic"
)

// ErrNoFiles is returned for an empty batch.
var ErrNoFiles = errors.New("no source files provided")

// ParsePolicy maps a configuration value onto a Policy.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BestEffort:
		return BestEffort, nil
	case Atomic:
		return Atomic, nil
	default:
		return "", fmt.Errorf("unknown source batch policy %q", raw)
	}
}

// BatchResult lists what a batch load added and which files were skipped.
type BatchResult struct {
	Added  []source.Document  `json:"added"`
	Failed []*reader.ReadError `json:"-"`
}

// FailedNames returns the names of the skipped files.
func (b BatchResult) FailedNames() []string {
	names := make([]string, 0, len(b.Failed))
	for _, f := range b.Failed {
		names = append(names, f.Name)
	}
	return names
}

// Registry is the in-memory library of reference documents. It only grows.
type Registry struct {
	mu     sync.RWMutex
	docs   []source.Document
	reader *reader.Reader
	policy Policy
}

// NewRegistry creates an empty registry.
func NewRegistry(r *reader.Reader, policy Policy) *Registry {
	if policy == "" {
		policy = BestEffort
	}
	return &Registry{
		docs:   make([]source.Document, 0, 16),
		reader: r,
		policy: policy,
	}
}

// Policy reports the configured batch policy.
func (r *Registry) Policy() Policy {
	return r.policy
}

// AddBatch reads, classifies and appends files in submission order.
func (r *Registry) AddBatch(ctx context.Context, files []reader.File) (BatchResult, error) {
	if len(files) == 0 {
		return BatchResult{}, ErrNoFiles
	}

	results := r.reader.ReadAll(ctx, files)

	var batch BatchResult
	docs := make([]source.Document, 0, len(files))
	for _, res := range results {
		if res.Err != nil {
			var readErr *reader.ReadError
			if !errors.As(res.Err, &readErr) {
				readErr = &reader.ReadError{Name: res.Name, Err: res.Err}
			}
			if r.policy == Atomic {
				return BatchResult{}, fmt.Errorf("source batch aborted: %w", readErr)
			}
			log.Printf("[source] warning: skipping %s: %v", res.Name, readErr.Err)
			batch.Failed = append(batch.Failed, readErr)
			continue
		}

		docs = append(docs, source.Document{
			ID:       uuid.NewString(),
			Name:     source.DisplayName(res.Name),
			Type:     source.Classify(res.Name),
			FileName: res.Name,
			Content:  res.Text,
		})
	}

	r.mu.Lock()
	r.docs = append(r.docs, docs...)
	total := len(r.docs)
	r.mu.Unlock()

	batch.Added = docs
	log.Printf("[source] loaded %d sources (%d skipped), registry size=%d", len(docs), len(batch.Failed), total)
	return batch, nil
}

// LoadDir adds every regular, non-hidden file directly inside dir, in name
// order.
func (r *Registry) LoadDir(ctx context.Context, dir string) (BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BatchResult{}, fmt.Errorf("read source dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	files := make([]reader.File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		f, err := reader.FromPath(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Printf("[source] warning: skipping %s: %v", entry.Name(), err)
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return BatchResult{}, nil
	}
	return r.AddBatch(ctx, files)
}

// List returns a copy of the registry in insertion order.
func (r *Registry) List() []source.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]source.Document(nil), r.docs...)
}

// Len reports how many documents are loaded.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// HasFile reports whether a document loaded from fileName is already present.
func (r *Registry) HasFile(fileName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.docs {
		if doc.FileName == fileName {
			return true
		}
	}
	return false
}
