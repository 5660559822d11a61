package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const DefaultSnapshotPath = ".sentinel-snapshot.json"

// Snapshot is a saved set of findings used as a comparison baseline.
type Snapshot struct {
	ScanID   string    `json:"scan_id"`
	Target   string    `json:"target"`
	SavedAt  time.Time `json:"saved_at"`
	Findings []Finding `json:"findings"`
}

// SnapshotDiff is the result of comparing current findings with a baseline.
type SnapshotDiff struct {
	New       []Finding
	Fixed     []Finding
	Unchanged []Finding
}

// SaveSnapshot writes s to path as indented JSON.
func SaveSnapshot(path string, s Snapshot) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(path string) (Snapshot, error) {
	var s Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return s, nil
}

// CompareSnapshot classifies current findings against baseline by
// (Issue, Category).
func CompareSnapshot(current, baseline []Finding) SnapshotDiff {
	var diff SnapshotDiff

	base := make(map[DedupKey]struct{}, len(baseline))
	for _, f := range baseline {
		base[f.Key()] = struct{}{}
	}
	cur := make(map[DedupKey]struct{}, len(current))
	for _, f := range current {
		k := f.Key()
		if _, dup := cur[k]; dup {
			continue
		}
		cur[k] = struct{}{}
		if _, ok := base[k]; ok {
			diff.Unchanged = append(diff.Unchanged, f)
		} else {
			diff.New = append(diff.New, f)
		}
	}

	fixed := make(map[DedupKey]struct{})
	for _, f := range baseline {
		k := f.Key()
		if _, ok := cur[k]; ok {
			continue
		}
		if _, dup := fixed[k]; dup {
			continue
		}
		fixed[k] = struct{}{}
		diff.Fixed = append(diff.Fixed, f)
	}
	return diff
}
