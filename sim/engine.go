// Package sim runs the island simulation year by year and keeps its history.
package sim

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/fauna"
	"github.com/pthm-cable/biosim/geography"
	"github.com/pthm-cable/biosim/island"
	"github.com/pthm-cable/biosim/telemetry"
)

// pcgStream is the second PCG word; the engine seed supplies the first.
const pcgStream = 0x9e3779b97f4a7c15

// Options configures an Engine.
type Options struct {
	Seed     int64
	Logger   *slog.Logger // nil = slog.Default()
	LogStats bool         // Log every year's stats and bookmarks

	// StatsCallback receives each year's record after it is committed.
	StatsCallback func(telemetry.YearStats)
	// BookmarkCallback receives each bookmark as it fires.
	BookmarkCallback func(telemetry.Bookmark)
}

// Engine owns the island, the random source and the history of a run.
// It is not safe for concurrent use.
type Engine struct {
	cfg    *config.Config
	m      *geography.Map
	isl    *island.Island
	params [len(fauna.AllSpecies)]fauna.Params

	src  *rand.PCG
	rng  *rand.Rand
	seed int64
	year int

	pending []config.Introduction

	history   []telemetry.YearStats
	bookmarks []telemetry.Bookmark
	collector *telemetry.Collector
	detector  *telemetry.BookmarkDetector
	perf      *telemetry.PerfCollector

	logger           *slog.Logger
	logStats         bool
	statsCallback    func(telemetry.YearStats)
	bookmarkCallback func(telemetry.Bookmark)
}

// New configures a simulation on map m. The configuration supplies species
// and landscape parameters, the initial population and staged introductions.
// cfg may be nil for the defaults. Invalid input yields a *config.Error.
func New(m *geography.Map, cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, config.Invalid("island.map", "no map given")
	}

	isl, err := island.New(m, cfg.Landscape.Table())
	if err != nil {
		return nil, config.Wrap("island.map", err)
	}

	e := newEngine(m, isl, cfg, opts)
	for _, s := range fauna.AllSpecies {
		e.params[s] = *cfg.Species.Params(s)
	}

	for i, in := range cfg.Introductions {
		if err := e.checkLocations(fmt.Sprintf("introductions[%d].placements", i), in.Placements); err != nil {
			return nil, err
		}
	}
	if err := e.AddPopulation(cfg.Population); err != nil {
		return nil, err
	}
	e.pending = slices.Clone(cfg.Introductions)
	slices.SortStableFunc(e.pending, func(a, b config.Introduction) int { return a.Year - b.Year })

	return e, nil
}

// BuildMap returns the island geography named by cfg: a generated island when
// random dimensions are set, otherwise the parsed map text.
func BuildMap(cfg *config.Config, seed int64) (*geography.Map, error) {
	if r := cfg.Island.Random; r.Rows > 0 && r.Cols > 0 {
		return geography.Generate(geography.DefaultGenConfig(r.Rows, r.Cols, seed)), nil
	}
	m, err := geography.Parse(cfg.Island.Map)
	if err != nil {
		return nil, config.Wrap("island.map", err)
	}
	return m, nil
}

func newEngine(m *geography.Map, isl *island.Island, cfg *config.Config, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	src := rand.NewPCG(uint64(opts.Seed), pcgStream)
	cfg.Seed = opts.Seed

	return &Engine{
		cfg:              cfg,
		m:                m,
		isl:              isl,
		src:              src,
		rng:              rand.New(src),
		seed:             opts.Seed,
		collector:        telemetry.NewCollector(opts.Seed),
		detector:         telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistorySize),
		perf:             telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		logger:           logger,
		logStats:         opts.LogStats,
		statsCallback:    opts.StatsCallback,
		bookmarkCallback: opts.BookmarkCallback,
	}
}

// Run simulates the given number of years. It can be called repeatedly to
// continue the same run.
func (e *Engine) Run(years int) {
	for range years {
		e.Step()
	}
}

// Step simulates one year and returns its record.
func (e *Engine) Step() telemetry.YearStats {
	e.applyIntroductions()

	e.perf.StartYear()
	ev := e.isl.RunYear(e.rng, e.perf)

	e.perf.StartPhase(telemetry.PhaseTelemetry)
	for _, s := range fauna.AllSpecies {
		e.collector.RecordBirths(s, ev.Births[s])
		e.collector.RecordDeaths(s, ev.Deaths[s])
		e.collector.RecordMigrations(s, ev.Migrations[s])
	}
	e.collector.RecordKills(ev.Kills)
	e.collector.RecordEaten(ev.Eaten)

	e.year++
	herb, carn := e.sample()
	stats := e.collector.Flush(e.year, herb, carn, e.isl.TotalFodder())
	e.history = append(e.history, stats)
	e.perf.EndYear()

	if e.logStats {
		stats.LogStats(e.logger)
	}
	for _, bm := range e.detector.Check(stats) {
		e.bookmarks = append(e.bookmarks, bm)
		if e.logStats {
			bm.LogBookmark(e.logger)
		}
		if e.bookmarkCallback != nil {
			e.bookmarkCallback(bm)
		}
	}
	if e.statsCallback != nil {
		e.statsCallback(stats)
	}
	return stats
}

// applyIntroductions adds the staged animals due after the years completed so far.
func (e *Engine) applyIntroductions() {
	for len(e.pending) > 0 && e.pending[0].Year <= e.year {
		in := e.pending[0]
		e.pending = e.pending[1:]
		if in.Year < e.year {
			continue
		}
		// Locations and specs were checked when the engine was built.
		if err := e.AddPopulation(in.Placements); err != nil {
			e.logger.Error("introduction failed", "year", in.Year, "error", err)
			continue
		}
		for s, n := range countBySpecies(in.Placements) {
			e.collector.RecordIntroduced(fauna.Species(s), n)
		}
		e.logger.Info("introduction", "year", in.Year, "animals", countAnimals(in.Placements))
	}
}

// sample collects weights and fitness of every animal, by species.
func (e *Engine) sample() (herb, carn telemetry.Sample) {
	for _, c := range e.isl.Cells() {
		for _, a := range c.Herbivores {
			herb.Weights = append(herb.Weights, a.Weight())
			herb.Fitness = append(herb.Fitness, a.Fitness())
		}
		for _, a := range c.Carnivores {
			carn.Weights = append(carn.Weights, a.Weight())
			carn.Fitness = append(carn.Fitness, a.Fitness())
		}
	}
	return herb, carn
}

// History returns a copy of every record so far, one per simulated year.
func (e *Engine) History() []telemetry.YearStats {
	return slices.Clone(e.history)
}

// Latest returns the most recent record.
func (e *Engine) Latest() (telemetry.YearStats, bool) {
	if len(e.history) == 0 {
		return telemetry.YearStats{}, false
	}
	return e.history[len(e.history)-1], true
}

// Year is the number of years simulated so far.
func (e *Engine) Year() int { return e.year }

// Seed is the seed the random source was created from.
func (e *Engine) Seed() int64 { return e.seed }

// Counts returns the current number of herbivores and carnivores.
func (e *Engine) Counts() (herb, carn int) { return e.isl.Counts() }

// Bookmarks returns a copy of the bookmarks fired so far.
func (e *Engine) Bookmarks() []telemetry.Bookmark {
	return slices.Clone(e.bookmarks)
}

// Perf returns timing statistics over the recent years.
func (e *Engine) Perf() telemetry.PerfStats { return e.perf.Stats() }

// Island exposes the grid for inspection. Callers must not modify it.
func (e *Engine) Island() *island.Island { return e.isl }

// Map returns the geography the island was built from.
func (e *Engine) Map() *geography.Map { return e.m }

// Config returns a copy of the effective configuration, including parameter
// changes made since the engine was built.
func (e *Engine) Config() *config.Config { return e.cfg.Clone() }
