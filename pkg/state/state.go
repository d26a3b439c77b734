// Package state persists the last seen version ids per container between
// runs.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/snappy"
)

// VersionRecord keeps the currently live version id and the one seen before
// it for a single container.
type VersionRecord struct {
	LiveVersion string `json:"live_version"`
	OldVersion  string `json:"old_version"`
}

// Store is the on-disk map of container public id to version record. The
// file is snappy-compressed JSON; plain JSON files written by earlier
// versions are still readable.
type Store struct {
	path    string
	records map[string]VersionRecord
}

// Open loads the state file, or starts empty when it does not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path, records: make(map[string]VersionRecord)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	raw := data
	if data[0] != '{' {
		raw, err = snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("decompress state %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(raw, &s.records); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return s, nil
}

// Get returns the record for a container and whether one exists.
func (s *Store) Get(publicID string) (VersionRecord, bool) {
	rec, ok := s.records[publicID]
	return rec, ok
}

// Set records a newly observed live version, shifting the previous live
// version into OldVersion.
func (s *Store) Set(publicID, liveVersion string) {
	prev := s.records[publicID]
	s.records[publicID] = VersionRecord{
		LiveVersion: liveVersion,
		OldVersion:  prev.LiveVersion,
	}
}

// ContainerIDs returns the tracked container ids in sorted order.
func (s *Store) ContainerIDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save writes the store atomically via a sibling temp file.
func (s *Store) Save() error {
	raw, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, raw)

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("write state %s: %w", s.path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write state %s: %w", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write state %s: %w", s.path, err)
	}
	return nil
}
