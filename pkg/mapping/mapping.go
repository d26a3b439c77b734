// Package mapping loads the CSV file pairing GTM containers with the GA4
// properties their annotations go to.
package mapping

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrNoEntries = errors.New("mapping file has no entries")

// Entry links one GTM container to one GA4 property.
type Entry struct {
	ContainerPublicID string
	PropertyID        string
}

// Load reads a mapping CSV. The header row must contain gtm_public_id and
// ga4_property_id columns; extra columns are ignored. Rows with an empty
// public id or property id are skipped.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping %s: %w", path, err)
	}
	defer f.Close()
	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	return entries, nil
}

// Parse reads mapping rows from r.
func Parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idCol, propCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "gtm_public_id":
			idCol = i
		case "ga4_property_id":
			propCol = i
		}
	}
	if idCol < 0 || propCol < 0 {
		return nil, fmt.Errorf("header must contain gtm_public_id and ga4_property_id, got %v", header)
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if idCol >= len(record) || propCol >= len(record) {
			continue
		}
		entry := Entry{
			ContainerPublicID: strings.TrimSpace(record[idCol]),
			PropertyID:        strings.TrimSpace(record[propCol]),
		}
		if entry.ContainerPublicID == "" || entry.PropertyID == "" {
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	return entries, nil
}
