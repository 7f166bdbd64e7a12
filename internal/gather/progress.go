package gather

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	emptyFile     = ".tried-empty"
	completedFile = ".last-completed"
)

// progressTracker keeps the .tried-empty and .last-completed files that make
// a history run resumable and idempotent per day.
type progressTracker struct {
	mu     sync.Mutex
	dir    string
	empty  map[string]struct{}
	file   *os.File
	writer *bufio.Writer
}

// newProgressTracker opens the tracker in dir, loading any codes already
// recorded as empty.
func newProgressTracker(dir string) (*progressTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}
	p := &progressTracker{dir: dir, empty: make(map[string]struct{})}
	if data, err := os.ReadFile(filepath.Join(dir, emptyFile)); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if code := strings.TrimSpace(line); code != "" {
				p.empty[code] = struct{}{}
			}
		}
	}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *progressTracker) open() error {
	f, err := os.OpenFile(filepath.Join(p.dir, emptyFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", emptyFile, err)
	}
	p.file = f
	p.writer = bufio.NewWriter(f)
	return nil
}

// IsEmpty reports whether code already came back without bars.
func (p *progressTracker) IsEmpty(code string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.empty[code]
	return ok
}

// MarkEmpty records code as having no history.
func (p *progressTracker) MarkEmpty(code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.empty[code]; ok {
		return nil
	}
	p.empty[code] = struct{}{}
	if _, err := p.writer.WriteString(code + "\n"); err != nil {
		return fmt.Errorf("writing %s: %w", emptyFile, err)
	}
	return p.writer.Flush()
}

// LastCompleted returns the date of the last finished run, or "".
func (p *progressTracker) LastCompleted() string {
	data, err := os.ReadFile(filepath.Join(p.dir, completedFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// MarkCompleted records date as finished.
func (p *progressTracker) MarkCompleted(date string) error {
	return os.WriteFile(filepath.Join(p.dir, completedFile), []byte(date), 0o644)
}

// Reset forgets the empty set. A new trading day may list new codes.
func (p *progressTracker) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file != nil {
		p.file.Close()
	}
	p.empty = make(map[string]struct{})
	if err := os.Remove(filepath.Join(p.dir, emptyFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", emptyFile, err)
	}
	return p.open()
}

// Close flushes and closes the .tried-empty file.
func (p *progressTracker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		p.writer.Flush()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
