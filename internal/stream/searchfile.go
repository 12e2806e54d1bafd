// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/shahabnazari/litstream/internal/reconcile"
	"github.com/shahabnazari/litstream/pkg/types"
)

// SearchFile is the on-disk representation of a finished search. The
// researcher can save a session to a file, reload it later, and rerun the
// same query without retyping flags.
type SearchFile struct {
	Query   string              `yaml:"query"`
	Options types.SearchOptions `yaml:"options"`
	Results []types.Paper       `yaml:"results"`
	Summary SearchSummary       `yaml:"summary"`
}

// SearchSummary stores session statistics and a timestamp.
type SearchSummary struct {
	SearchID     string    `yaml:"search_id"`
	Status       string    `yaml:"status"`
	Total        int       `yaml:"total"`
	Selected     int       `yaml:"selected,omitempty"`
	SourceErrors []string  `yaml:"source_errors,omitempty"`
	TimeMs       int64     `yaml:"time_ms"`
	Timestamp    time.Time `yaml:"timestamp"`
}

// WriteSearchFile saves a session snapshot and the options that produced
// it to a YAML file.
func WriteSearchFile(path string, opts types.SearchOptions, snap reconcile.Snapshot) error {
	sf := SearchFile{
		Query:   snap.Query,
		Options: opts,
		Results: snap.Papers,
		Summary: SearchSummary{
			SearchID:  snap.SearchID,
			Status:    string(snap.Status),
			Total:     len(snap.Papers),
			TimeMs:    snap.FinalTimeMs,
			Timestamp: time.Now(),
		},
	}
	if snap.Selection != nil {
		sf.Summary.Selected = snap.Selection.SelectedCount
	}
	for _, src := range snap.Sources {
		if src.Status == types.SourceError && src.Error != "" {
			sf.Summary.SourceErrors = append(sf.Summary.SourceErrors,
				fmt.Sprintf("%s: %s", src.Source, src.Error))
		}
	}

	data, err := yaml.Marshal(&sf)
	if err != nil {
		return fmt.Errorf("marshaling search file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSearchFile loads a previously saved search file from disk.
func ReadSearchFile(path string) (*SearchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading search file: %w", err)
	}
	var sf SearchFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing search file: %w", err)
	}
	return &sf, nil
}
