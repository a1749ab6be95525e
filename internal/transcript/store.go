// Package transcript provides the append-only JSON-lines store of chat
// interactions. It is the sole data source for observability: the chat proxy
// appends one line per completed interaction, and the snapshot builder scans
// the tail of the file on every request. Lines are never mutated or deleted.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Store wraps the transcript file. Appends are serialized through a mutex;
// reads load the file whole, so concurrent readers need no coordination.
type Store struct {
	path string

	mu     sync.Mutex
	closed bool

	writeQueue     chan string
	writeStop      chan struct{}
	writeDone      chan struct{}
	writeDropLogAt atomic.Int64
}

// NewStore opens (creating if needed) the transcript file at path and starts
// the background append queue.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("transcript path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create transcript directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close transcript file: %w", err)
	}

	s := &Store{path: path}
	s.startWriteQueue()

	log.Infof("transcript store initialized at %s", path)
	return s, nil
}

// Path returns the transcript file location.
func (s *Store) Path() string {
	return s.path
}

// Append writes one record line to the end of the file synchronously.
func (s *Store) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	line = strings.TrimRight(line, "\n")
	if strings.TrimSpace(line) == "" {
		return fmt.Errorf("empty transcript line")
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append transcript line: %w", err)
	}
	return nil
}

// ReadTail returns up to the last n lines of the transcript. A missing file
// is an empty transcript, not an error.
func (s *Store) ReadTail(n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the append queue and marks the store closed.
func (s *Store) Close() error {
	s.stopWriteQueue()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
