package sim

import (
	"fmt"

	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/fauna"
	"github.com/pthm-cable/biosim/geography"
	"github.com/pthm-cable/biosim/island"
	"github.com/pthm-cable/biosim/landscape"
	"github.com/pthm-cable/biosim/telemetry"
)

// Snapshot captures the full state after the last completed year.
func (e *Engine) Snapshot() (*telemetry.Snapshot, error) {
	rngState, err := e.src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal rng: %w", err)
	}

	snap := &telemetry.Snapshot{
		Version:   telemetry.SnapshotVersion,
		Seed:      e.seed,
		Year:      e.year,
		Map:       e.m.String(),
		RNGState:  rngState,
		Species:   make(map[string]map[string]float64),
		Landscape: make(map[string]map[string]float64),
	}
	for _, s := range fauna.AllSpecies {
		snap.Species[s.String()] = paramValues(e.params[s].Fields())
	}
	for _, t := range landscape.AllTerrains {
		p := e.isl.TerrainParams(t)
		snap.Landscape[string(t.Code())] = paramValues(p.Fields())
	}

	for loc, c := range e.isl.Cells() {
		if !c.Passable() {
			continue
		}
		cs := telemetry.CellState{Row: loc.Row, Col: loc.Col, Fodder: c.Fodder()}
		for _, group := range [][]*fauna.Animal{c.Herbivores, c.Carnivores} {
			for _, a := range group {
				cs.Animals = append(cs.Animals, telemetry.AnimalState{
					Species: a.Species().String(),
					Age:     a.Age(),
					Weight:  a.Weight(),
				})
			}
		}
		snap.Cells = append(snap.Cells, cs)
	}
	return snap, nil
}

func paramValues(fields map[string]*float64) map[string]float64 {
	out := make(map[string]float64, len(fields))
	for k, v := range fields {
		out[k] = *v
	}
	return out
}

// Restore rebuilds an engine from a snapshot. cfg supplies the staged
// introductions and telemetry settings; nil means none. Introductions scheduled for years
// already simulated are dropped. Stepping the restored engine reproduces the
// years that followed the snapshot in the uninterrupted run.
func Restore(snap *telemetry.Snapshot, cfg *config.Config, opts Options) (*Engine, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	if snap.Version != telemetry.SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, telemetry.SnapshotVersion)
	}
	if cfg == nil {
		cfg = config.Default()
		cfg.Introductions = nil
	}
	cfg = cfg.Clone()
	cfg.Population = nil

	for name, overrides := range snap.Species {
		s, err := config.SpeciesByName("species", name)
		if err != nil {
			return nil, err
		}
		if err := config.ApplySpeciesOverrides(cfg.Species.Params(s), overrides); err != nil {
			return nil, err
		}
	}
	for code, overrides := range snap.Landscape {
		t, err := config.TerrainByCode("landscape", code)
		if err != nil {
			return nil, err
		}
		if err := config.ApplyLandscapeOverrides(t, cfg.Landscape.Params(t), overrides); err != nil {
			return nil, err
		}
	}

	m, err := geography.Parse(snap.Map)
	if err != nil {
		return nil, config.Wrap("snapshot.map", err)
	}

	opts.Seed = snap.Seed
	e, err := New(m, cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := e.src.UnmarshalBinary(snap.RNGState); err != nil {
		return nil, fmt.Errorf("restore rng: %w", err)
	}
	e.year = snap.Year

	for _, cs := range snap.Cells {
		loc := island.Loc{Row: cs.Row, Col: cs.Col}
		c := e.isl.Cell(loc)
		if c == nil || !c.Passable() {
			return nil, fmt.Errorf("snapshot cell %s is not a passable cell of the map", loc)
		}
		c.SetFodder(cs.Fodder)
		for _, as := range cs.Animals {
			s, err := fauna.ParseSpecies(as.Species)
			if err != nil {
				return nil, fmt.Errorf("snapshot cell %s: %w", loc, err)
			}
			a, err := fauna.NewAnimal(s, &e.params[s], as.Age, as.Weight)
			if err != nil {
				return nil, fmt.Errorf("snapshot cell %s: %w", loc, err)
			}
			if err := c.Add(a); err != nil {
				return nil, fmt.Errorf("snapshot cell %s: %w", loc, err)
			}
		}
	}
	e.logger.Info("restored snapshot", "year", snap.Year, "seed", snap.Seed, "population", snap.Population())
	return e, nil
}
