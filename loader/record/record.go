package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Suffixes of the sidecar files kept next to each input file.
const (
	TargetSuffix = ".target"
	StatusSuffix = ".status"
)

// ErrNoRecord is returned by Load when no record has been persisted for the file yet.
var ErrNoRecord = errors.New("no upload record found")

// Record is the durable per-file state of the two-phase upload. The JSON
// keys of the URI fields follow the wire format of the target-assignment
// service, so the response body can be persisted as-is.
type Record struct {
	PostTarget  string    `json:"post-target"`
	PollResult  string    `json:"poll-result"`
	Uploaded    bool      `json:"uploaded"`
	AcquireTime time.Time `json:"acquire_time"`
}

// Fresh reports whether the acquired target can still be reused without
// re-acquiring. An uploaded record is terminal and never fresh; the upload
// step short-circuits on it separately.
func (r Record) Fresh(ttl time.Duration, now time.Time) bool {
	return !r.Uploaded && now.Sub(r.AcquireTime) < ttl
}

// Store reads and writes the record sidecar of a single input file.
type Store struct {
	path string
}

// NewStore returns the store for the record belonging to filePath.
func NewStore(filePath string) Store {
	return Store{path: filePath + TargetSuffix}
}

// Path returns the location of the record sidecar.
func (s Store) Path() string {
	return s.path
}

// Load reads the persisted record. ErrNoRecord is returned when the sidecar
// does not exist.
func (s Store) Load() (Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, fmt.Errorf("read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record %s: %w", s.path, err)
	}
	return rec, nil
}

// Save persists the record atomically: the content is written to a temp file
// in the same directory and renamed over the old record, so a concurrent
// reader never observes a partial write.
func (s Store) Save(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}
