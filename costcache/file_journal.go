package costcache

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// FileJournal stores one JSON section per line. Appends are synced before
// they are acknowledged, so a crash loses at most the section in flight.
type FileJournal struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenFileJournal opens or creates the journal at path.
func OpenFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &FileJournal{path: path, f: f}, nil
}

// Load decodes every record. A torn final line, left by a crash mid-append,
// is cut off; a corrupt record elsewhere makes the journal stale.
func (j *FileJournal) Load(ctx context.Context) ([]Section, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek journal: %w", err)
	}
	r := bufio.NewReader(j.f)
	var (
		sections []Section
		offset   int64
		line     int
	)
	for {
		raw, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		complete := err == nil
		if len(bytes.TrimSpace(raw)) > 0 {
			line++
			var s Section
			if decErr := json.Unmarshal(raw, &s); decErr != nil {
				if !complete {
					slog.WarnContext(ctx, "truncating torn journal record", "path", j.path, "offset", offset)
					if err := j.f.Truncate(offset); err != nil {
						return nil, fmt.Errorf("truncate journal: %w", err)
					}
					break
				}
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrStaleJournal, j.path, line, decErr)
			}
			sections = append(sections, s)
		}
		offset += int64(len(raw))
		if !complete {
			break
		}
	}
	return sections, nil
}

func (j *FileJournal) Append(ctx context.Context, s Section) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode section %d: %w", s.Index, err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(data); err != nil {
		return fmt.Errorf("append section %d: %w", s.Index, err)
	}
	return j.f.Sync()
}

func (j *FileJournal) Reset(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.f.Truncate(0); err != nil {
		return fmt.Errorf("reset journal: %w", err)
	}
	return j.f.Sync()
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
