package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/sim"
	"github.com/pthm-cable/biosim/store"
	"github.com/pthm-cable/biosim/telemetry"
)

// dbBatch is the number of yearly records buffered before a database write.
const dbBatch = 50

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	mapPath := flag.String("map", "", "Path to an island map file (overrides island.map)")
	randomRows := flag.Int("random-rows", 0, "Generate a random island with this many rows")
	randomCols := flag.Int("random-cols", 0, "Generate a random island with this many columns")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed, then time-based)")
	years := flag.Int("years", 0, "Years to simulate (0 = use config)")
	logStats := flag.Bool("log-stats", false, "Output yearly stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	dbPath := flag.String("db", "", "SQLite database for run history")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	resume := flag.String("resume", "", "Resume from a snapshot file")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg().Clone()

	// CLI flags override the config file
	if *mapPath != "" {
		data, err := os.ReadFile(*mapPath)
		if err != nil {
			slog.Error("failed to read map", "path", *mapPath, "error", err)
			os.Exit(1)
		}
		cfg.SetMap(string(data))
	}
	if *randomRows > 0 || *randomCols > 0 {
		cfg.SetRandomMap(*randomRows, *randomCols)
	}
	if *years > 0 {
		cfg.Years = *years
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *dbPath != "" {
		cfg.Output.DB = *dbPath
	}
	if *logStats {
		cfg.Telemetry.LogStats = true
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	cfg.Seed = rngSeed

	if err := run(cfg, *snapshotDir, *resume); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, snapshotDir, resume string) error {
	om, err := telemetry.NewOutputManager(cfg.Output.Dir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config", "error", err)
	}

	rec, err := newRecorder(cfg)
	if err != nil {
		return err
	}
	defer rec.close()

	var eng *sim.Engine
	opts := sim.Options{
		Seed:     cfg.Seed,
		LogStats: cfg.Telemetry.LogStats,
		StatsCallback: func(s telemetry.YearStats) {
			if err := om.WriteHistory(s); err != nil {
				slog.Warn("failed to write history", "year", s.Year, "error", err)
			}
			rec.add(s)
			if w := cfg.Telemetry.PerfWindow; w > 0 && s.Year%w == 0 {
				perf := eng.Perf()
				if cfg.Telemetry.LogStats {
					perf.LogStats(nil)
				}
				if err := om.WritePerf(perf, s.Year); err != nil {
					slog.Warn("failed to write perf", "year", s.Year, "error", err)
				}
			}
		},
		BookmarkCallback: func(b telemetry.Bookmark) {
			if err := om.WriteBookmark(b); err != nil {
				slog.Warn("failed to write bookmark", "year", b.Year, "error", err)
			}
			rec.bookmarks = append(rec.bookmarks, b)
			if cfg.Telemetry.SnapshotOnBookmark && snapshotDir != "" {
				saveSnapshot(eng, snapshotDir, &b)
			}
		},
	}

	if resume != "" {
		snap, err := telemetry.LoadSnapshot(resume)
		if err != nil {
			return err
		}
		if eng, err = sim.Restore(snap, cfg, opts); err != nil {
			return err
		}
	} else {
		m, err := sim.BuildMap(cfg, cfg.Seed)
		if err != nil {
			return err
		}
		if eng, err = sim.New(m, cfg, opts); err != nil {
			return err
		}
	}

	herb, carn := eng.Counts()
	slog.Info("starting simulation",
		"seed", eng.Seed(),
		"from_year", eng.Year(),
		"years", cfg.Years,
		"herbivores", herb,
		"carnivores", carn,
		"output_dir", om.Dir(),
		"db", cfg.Output.DB,
	)

	start := time.Now()
	eng.Run(cfg.Years)
	elapsed := time.Since(start)

	if snapshotDir != "" {
		saveSnapshot(eng, snapshotDir, nil)
	}
	rec.flush()

	herb, carn = eng.Counts()
	perf := eng.Perf()
	slog.Info("simulation complete",
		"year", eng.Year(),
		"herbivores", humanize.Comma(int64(herb)),
		"carnivores", humanize.Comma(int64(carn)),
		"bookmarks", len(eng.Bookmarks()),
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"years_per_sec", humanize.CommafWithDigits(perf.YearsPerSecond, 1),
	)
	return nil
}

func saveSnapshot(eng *sim.Engine, dir string, b *telemetry.Bookmark) {
	snap, err := eng.Snapshot()
	if err != nil {
		slog.Error("failed to take snapshot", "error", err)
		return
	}
	snap.Bookmark = b
	path, err := telemetry.SaveSnapshot(snap, dir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "year", snap.Year)
}

// recorder batches records into the SQLite store. A nil store disables it.
type recorder struct {
	db        *store.DB
	runID     string
	pending   []telemetry.YearStats
	bookmarks []telemetry.Bookmark
}

func newRecorder(cfg *config.Config) (*recorder, error) {
	rec := &recorder{}
	if cfg.Output.DB == "" {
		return rec, nil
	}
	db, err := store.Open(cfg.Output.DB)
	if err != nil {
		return nil, err
	}
	data, err := cfg.YAML()
	if err != nil {
		db.Close()
		return nil, err
	}
	runID, err := db.CreateRun(cfg.Seed, data)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("recording run", "db", cfg.Output.DB, "run_id", runID)
	rec.db, rec.runID = db, runID
	return rec, nil
}

func (r *recorder) add(s telemetry.YearStats) {
	if r.db == nil {
		return
	}
	r.pending = append(r.pending, s)
	if len(r.pending) >= dbBatch {
		r.flush()
	}
}

func (r *recorder) flush() {
	if r.db == nil {
		return
	}
	if len(r.pending) > 0 {
		if err := r.db.AppendRecords(r.runID, r.pending); err != nil {
			slog.Warn("failed to store records", "error", err)
		}
		r.pending = r.pending[:0]
	}
	if len(r.bookmarks) > 0 {
		if err := r.db.SaveBookmarks(r.runID, r.bookmarks); err != nil {
			slog.Warn("failed to store bookmarks", "error", err)
		}
		r.bookmarks = nil
	}
}

func (r *recorder) close() {
	if r.db != nil {
		r.db.Close()
	}
}
