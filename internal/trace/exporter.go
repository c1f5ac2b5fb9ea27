package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileExporter appends spans as JSONL to a file.
type FileExporter struct {
	path string
	mu   sync.Mutex
}

// NewFileExporter creates the parent directory and returns an exporter
// for the given path.
func NewFileExporter(path string) (*FileExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("trace: create directory: %w", err)
	}
	return &FileExporter{path: path}, nil
}

// Export writes the batch, one span per line.
func (e *FileExporter) Export(spans []Span) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("trace: open span file: %w", err)
	}
	defer f.Close()

	for _, s := range spans {
		line, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("trace: marshal span: %w", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("trace: write span: %w", err)
		}
	}
	return nil
}
