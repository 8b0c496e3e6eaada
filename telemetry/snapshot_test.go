package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version:  SnapshotVersion,
		Seed:     42,
		Year:     30,
		Map:      "WWW\nWLW\nWWW",
		RNGState: []byte{1, 2, 3, 4},
		Species: map[string]map[string]float64{
			"Herbivore": {"F": 10},
		},
		Cells: []CellState{
			{
				Row: 2, Col: 2, Fodder: 120.5,
				Animals: []AnimalState{
					{Species: "Herbivore", Age: 3, Weight: 21.5},
					{Species: "Herbivore", Age: 1, Weight: 9},
					{Species: "Carnivore", Age: 4, Weight: 30},
				},
			},
		},
		Bookmark: &Bookmark{Type: BookmarkHerbivoreCrash, Year: 30, Description: "test"},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if want := "snapshot_0030_herbivore_crash.json"; filepath.Base(path) != want {
		t.Errorf("file = %s, want %s", filepath.Base(path), want)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if string(loaded.RNGState) != string(snapshot.RNGState) {
		t.Errorf("rng state = %v, want %v", loaded.RNGState, snapshot.RNGState)
	}
	pop := loaded.Population()
	if pop["Herbivore"] != 2 || pop["Carnivore"] != 1 {
		t.Errorf("population = %v", pop)
	}
	if loaded.Species["Herbivore"]["F"] != 10 {
		t.Error("species parameters lost")
	}
}

func TestLoadSnapshotRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadSnapshot(path)
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("err = %v, want version error", err)
	}
}
