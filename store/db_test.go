package store

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pthm-cable/biosim/telemetry"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "biosim.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.CreateRun(42, []byte("seed: 42\n"))
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	records := []telemetry.YearStats{
		{Seed: 42, Year: 1, Herbivores: 150, Total: 150, HerbBirths: 12, FodderEaten: 1500, HerbWeightMean: 21.25},
		{Seed: 42, Year: 2, Herbivores: 160, Carnivores: 40, Total: 200, Kills: 3, CarnFitnessMean: 0.75},
	}
	if err := db.AppendRecords(runID, records); err != nil {
		t.Fatalf("AppendRecords: %v", err)
	}
	if err := db.AppendRecords(runID, []telemetry.YearStats{{Seed: 42, Year: 3}}); err != nil {
		t.Fatalf("AppendRecords: %v", err)
	}

	got, err := db.Records(runID)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if !reflect.DeepEqual(got[:2], records) {
		t.Errorf("records = %+v, want %+v", got[:2], records)
	}
}

func TestDuplicateYearRejected(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.CreateRun(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := []telemetry.YearStats{{Seed: 1, Year: 1}}
	if err := db.AppendRecords(runID, rec); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendRecords(runID, rec); err == nil {
		t.Error("expected error storing the same year twice")
	}
}

func TestRunsAreSeparate(t *testing.T) {
	db := openTestDB(t)

	a, err := db.CreateRun(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := db.CreateRun(2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("run IDs collide")
	}
	if err := db.AppendRecords(a, []telemetry.YearStats{{Seed: 1, Year: 1}}); err != nil {
		t.Fatal(err)
	}

	got, err := db.Records(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("run b has %d records, want 0", len(got))
	}

	runs, err := db.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}
}

func TestBookmarks(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.CreateRun(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []telemetry.Bookmark{
		{Type: telemetry.BookmarkHerbivoreCrash, Year: 12, Description: "crash"},
		{Type: telemetry.BookmarkExtinction, Year: 40, Description: "gone"},
	}
	if err := db.SaveBookmarks(runID, want); err != nil {
		t.Fatalf("SaveBookmarks: %v", err)
	}
	got, err := db.Bookmarks(runID)
	if err != nil {
		t.Fatalf("Bookmarks: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bookmarks = %+v, want %+v", got, want)
	}
}
