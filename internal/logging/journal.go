package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JournalFileName is the migration log file under the storage root.
const JournalFileName = "migration_log.txt"

// Journal is the durable, append-only migration log. Every line has the form
// "[RFC3339 timestamp] message". It is safe for concurrent appends and
// tolerates being read while appended to.
type Journal struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewJournal creates a journal under the given storage root, creating the
// directory if needed.
func NewJournal(storageRoot string) (*Journal, error) {
	if err := os.MkdirAll(storageRoot, 0o755); err != nil {
		return nil, err
	}
	return &Journal{
		path: filepath.Join(storageRoot, JournalFileName),
		now:  time.Now,
	}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Append writes one timestamped line to the journal. Append failures are
// returned but callers generally treat them as non-fatal.
func (j *Journal) Append(format string, args ...interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s\n", j.now().Format(time.RFC3339), fmt.Sprintf(format, args...))
	_, err = f.WriteString(line)
	return err
}

// Read returns the full journal contents. A missing file reads as empty.
func (j *Journal) Read() (string, error) {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
