package refresher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const journalTimeFormat = "2006-01-02 15:04:05"

// Journal is the operator-facing run log: timestamped text lines appended to
// a file and mirrored to the structured logger. Write failures are dropped;
// a broken journal never fails a run.
type Journal struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewJournal creates a Journal appending to path. An empty path only logs.
func NewJournal(path string, logger *slog.Logger) *Journal {
	return &Journal{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

// Printf formats and records one journal line.
func (j *Journal) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	j.logger.Info(msg, "component", "tlefetch")

	if j.path == "" {
		return
	}

	line := j.now().Format(journalTimeFormat) + " - " + msg + "\n"

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	f.WriteString(line)
	f.Close()
}
