// Package commitlog writes anchor snapshot digests to an append-only file
// so an external witness can mirror the published digests.
package commitlog

import (
	"fmt"
	"os"
	"sync"
)

type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Append writes one line "<timestamp> | <digest>". The file is opened in
// append mode on every call so external rotation does not break the writer.
func (f *File) Append(timestamp, digest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open commit log: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%s | %s\n", timestamp, digest); err != nil {
		return fmt.Errorf("write commit log line: %w", err)
	}
	return file.Sync()
}
