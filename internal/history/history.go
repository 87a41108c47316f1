// Package history persists a one-line-per-run log of finished ramps so
// consecutive runs against the same target can be compared.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/rampede/rampede/internal/ramp"
)

// Entry is one finished run in the history log.
type Entry struct {
	RunID       string          `json:"run_id"`
	StartedAt   time.Time       `json:"started_at"`
	StopReason  ramp.StopReason `json:"stop_reason"`
	StoppedRate int             `json:"stopped_rate,omitempty"`
	TopRate     int             `json:"top_rate"`
	Levels      int             `json:"levels"`
}

// FromResult builds the history entry for a finished run.
func FromResult(res *ramp.RunResult) Entry {
	return Entry{
		RunID:       res.RunID,
		StartedAt:   res.StartedAt,
		StopReason:  res.StopReason,
		StoppedRate: res.StoppedRate,
		TopRate:     res.TopRate(),
		Levels:      len(res.Levels),
	}
}

// Append writes one entry to the history file as a single JSON line. A
// sidecar lock file guards the append so concurrent runs on the same host
// cannot interleave lines.
func Append(path string, entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock history file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to write history entry: %w", err)
	}
	return f.Close()
}

// Load returns the trailing n entries of the history file, oldest first.
// n <= 0 loads everything. A missing file is an empty history, not an error.
func Load(path string, n int) ([]Entry, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock history file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("failed to parse history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
