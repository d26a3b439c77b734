// Package report writes the per-run analysis report consumed by the TUI
// viewer.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tagwatch/tagwatch/pkg/changes"
)

// Report is the full output of one tagwatch run.
type Report struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Containers  []ContainerReport `json:"containers"`
}

// ContainerReport summarizes one container analysis.
type ContainerReport struct {
	PublicID     string `json:"public_id"`
	PropertyID   string `json:"property_id"`
	Name         string `json:"name,omitempty"`
	OldVersionID string `json:"old_version_id,omitempty"`
	NewVersionID string `json:"new_version_id"`
	Rollback     bool   `json:"rollback,omitempty"`
	FirstRun     bool   `json:"first_run,omitempty"`
	Error        string `json:"error,omitempty"`

	Changes ChangeSummary `json:"changes"`

	Impacted     bool     `json:"impacted"`
	Descriptions []string `json:"descriptions,omitempty"`
	Paths        []string `json:"paths,omitempty"`
}

// ChangeSummary holds the diff broken down by entity type.
type ChangeSummary struct {
	Tags            EntityChanges `json:"tags"`
	Variables       EntityChanges `json:"variables"`
	Triggers        EntityChanges `json:"triggers"`
	Clients         EntityChanges `json:"clients"`
	Transformations EntityChanges `json:"transformations"`
}

// EntityChanges lists the changed ids of one entity type.
type EntityChanges struct {
	Added    []string `json:"added,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
}

// Total counts every changed element across all entity types.
func (s ChangeSummary) Total() int {
	n := 0
	for _, e := range []EntityChanges{s.Tags, s.Variables, s.Triggers, s.Clients, s.Transformations} {
		n += len(e.Added) + len(e.Modified) + len(e.Deleted)
	}
	return n
}

// SummarizeChanges converts a diff into its report form.
func SummarizeChanges(cs changes.ChangeSet) ChangeSummary {
	conv := func(d changes.Delta) EntityChanges {
		return EntityChanges{Added: d.Added, Modified: d.Modified, Deleted: d.Deleted}
	}
	return ChangeSummary{
		Tags:            conv(cs.Tags),
		Variables:       conv(cs.Variables),
		Triggers:        conv(cs.Triggers),
		Clients:         conv(cs.Clients),
		Transformations: conv(cs.Transformations),
	}
}

// Write saves the report as indented JSON.
func Write(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// Load reads a report written by Write.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
