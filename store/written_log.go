package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// WrittenLog is an append-only file of IDs that have been fully processed,
// one per line. It is loaded into memory on open; Add appends and fsyncs.
// A torn final line from a crash is read back as an unknown ID and simply
// reprocessed.
type WrittenLog struct {
	mu   sync.RWMutex
	file *os.File
	ids  map[string]struct{}
}

// OpenWrittenLog loads the IDs already in path and opens it for appending.
func OpenWrittenLog(path string) (*WrittenLog, error) {
	if path == "" {
		return nil, errors.New("log path is required")
	}

	ids, err := readIDs(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &WrittenLog{file: file, ids: ids}, nil
}

func readIDs(path string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return ids, nil
}

func (l *WrittenLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *WrittenLog) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

func (l *WrittenLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// Snapshot returns a copy of the known IDs.
func (l *WrittenLog) Snapshot() map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m := make(map[string]bool, len(l.ids))
	for id := range l.ids {
		m[id] = true
	}
	return m
}

// Add appends ids not already present and syncs once. Empty IDs are skipped.
func (l *WrittenLog) Add(ids ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New("log file is closed")
	}

	var b strings.Builder
	var fresh []string
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || pending[id] {
			continue
		}
		if _, ok := l.ids[id]; ok {
			continue
		}
		b.WriteString(id)
		b.WriteByte('\n')
		fresh = append(fresh, id)
		pending[id] = true
	}
	if len(fresh) == 0 {
		return nil
	}

	if _, err := l.file.WriteString(b.String()); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	for _, id := range fresh {
		l.ids[id] = struct{}{}
	}
	return nil
}
