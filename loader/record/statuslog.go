package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StatusLog appends fetched status documents to the append-only status
// sidecar of a single input file. Entries are stored as one JSON object per
// line and are never overwritten.
type StatusLog struct {
	path string
}

// NewStatusLog returns the status log belonging to filePath.
func NewStatusLog(filePath string) StatusLog {
	return StatusLog{path: filePath + StatusSuffix}
}

// Path returns the location of the status log sidecar.
func (l StatusLog) Path() string {
	return l.path
}

// Append records one status document, tagged with the query time under the
// query_time key.
func (l StatusLog) Append(status json.RawMessage, queryTime time.Time) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(status, &doc); err != nil {
		return fmt.Errorf("decode status document: %w", err)
	}
	stamp, err := json.Marshal(queryTime.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("encode query time: %w", err)
	}
	doc["query_time"] = stamp

	line, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode status entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open status log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append status entry: %w", err)
	}
	return f.Close()
}

// Entries reads back every recorded status document in append order.
func (l StatusLog) Entries() ([]map[string]json.RawMessage, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open status log: %w", err)
	}
	defer f.Close()

	var entries []map[string]json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry map[string]json.RawMessage
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("decode status entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read status log: %w", err)
	}
	return entries, nil
}
