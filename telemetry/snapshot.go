package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the complete simulation state after a given year, enough to
// resume the run with identical results.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`
	Year    int   `json:"year"`

	Map string `json:"map"`

	// RNGState is the marshalled random source.
	RNGState []byte `json:"rng_state"`

	Species   map[string]map[string]float64 `json:"species"`
	Landscape map[string]map[string]float64 `json:"landscape"`

	Cells []CellState `json:"cells"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// CellState holds one passable cell. Locations are 1-based.
type CellState struct {
	Row     int           `json:"row"`
	Col     int           `json:"col"`
	Fodder  float64       `json:"fodder"`
	Animals []AnimalState `json:"animals,omitempty"`
}

// AnimalState holds one animal.
type AnimalState struct {
	Species string  `json:"species"`
	Age     int     `json:"age"`
	Weight  float64 `json:"weight"`
}

// Population counts the animals in the snapshot by species name.
func (s *Snapshot) Population() map[string]int {
	counts := make(map[string]int)
	for _, c := range s.Cells {
		for _, a := range c.Animals {
			counts[a.Species]++
		}
	}
	return counts
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%04d", snapshot.Year)
	if snapshot.Bookmark != nil {
		name = fmt.Sprintf("snapshot_%04d_%s", snapshot.Year, snapshot.Bookmark.Type)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
