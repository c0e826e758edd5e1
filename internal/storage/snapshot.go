package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SnapshotLog appends realtime snapshots to one JSONL file per day.
type SnapshotLog struct {
	dir string
	mu  sync.Mutex
}

// NewSnapshotLog returns a log rooted at dir.
func NewSnapshotLog(dir string) *SnapshotLog {
	return &SnapshotLog{dir: dir}
}

// Path returns the file holding snapshots of day.
func (l *SnapshotLog) Path(day time.Time) string {
	return filepath.Join(l.dir, "realtime_"+day.Format(dateLayout)+".jsonl")
}

// Append writes {"timestamp":ts,"data":data} as one line.
func (l *SnapshotLog) Append(ts time.Time, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	line, err := json.Marshal(Snapshot{Timestamp: ts, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.Path(ts)
	if err := ensureDir(path); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshot log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Read returns every snapshot logged on day. Malformed lines are skipped.
func (l *SnapshotLog) Read(day time.Time) ([]Snapshot, error) {
	file, err := os.Open(l.Path(day))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var out []Snapshot
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var snap Snapshot
		if err := json.Unmarshal(scanner.Bytes(), &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, scanner.Err()
}
