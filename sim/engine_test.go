package sim

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"

	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/fauna"
	"github.com/pthm-cable/biosim/geography"
	"github.com/pthm-cable/biosim/island"
	"github.com/pthm-cable/biosim/landscape"
	"github.com/pthm-cable/biosim/telemetry"
)

const (
	singleLowland = "WWW\nWLW\nWWW"
	singleDesert  = "WWW\nWDW\nWWW"
	smallIsland   = `
		WWWWWWW
		WLLLLLW
		WLHHDLW
		WLLLLLW
		WWWWWWW`
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func herbivores(row, col, n int) config.Placement {
	w := 20.0
	return config.Placement{
		Loc: [2]int{row, col},
		Pop: []config.AnimalSpec{{Species: "Herbivore", Age: 5, Weight: &w, Count: n}},
	}
}

func carnivores(row, col, n int) config.Placement {
	w := 20.0
	return config.Placement{
		Loc: [2]int{row, col},
		Pop: []config.AnimalSpec{{Species: "Carnivore", Age: 5, Weight: &w, Count: n}},
	}
}

// testConfig returns the defaults with an empty scenario.
func testConfig(t *testing.T, pop ...config.Placement) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Population = pop
	cfg.Introductions = nil
	return cfg
}

func startEngine(t *testing.T, text string, cfg *config.Config, seed int64) *Engine {
	t.Helper()
	e, err := New(geography.MustParse(text), cfg, Options{Seed: seed, Logger: quiet})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestDeterminism(t *testing.T) {
	run := func(seed int64) []telemetry.YearStats {
		cfg := testConfig(t, herbivores(2, 2, 50), carnivores(3, 4, 10))
		e := startEngine(t, smallIsland, cfg, seed)
		e.Run(40)
		return e.History()
	}

	a, b := run(7), run(7)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different histories")
	}
	csvA, err := telemetry.MarshalHistory(a)
	if err != nil {
		t.Fatal(err)
	}
	csvB, err := telemetry.MarshalHistory(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(csvA, csvB) {
		t.Error("same seed produced different CSV")
	}

	if reflect.DeepEqual(a, run(8)) {
		t.Error("different seeds produced identical histories")
	}
}

func TestHistoryOneRecordPerYear(t *testing.T) {
	e := startEngine(t, smallIsland, testConfig(t, herbivores(2, 2, 20)), 1)
	e.Run(5)
	e.Run(3)

	h := e.History()
	if len(h) != 8 || e.Year() != 8 {
		t.Fatalf("len(history) = %d, year = %d; want 8, 8", len(h), e.Year())
	}
	for i, s := range h {
		if s.Year != i+1 {
			t.Errorf("history[%d].Year = %d, want %d", i, s.Year, i+1)
		}
		if s.Total != s.Herbivores+s.Carnivores {
			t.Errorf("year %d: total %d != %d + %d", s.Year, s.Total, s.Herbivores, s.Carnivores)
		}
	}
	herb, carn := e.Counts()
	last, _ := e.Latest()
	if herb != last.Herbivores || carn != last.Carnivores {
		t.Errorf("Counts() = %d, %d; latest record %d, %d", herb, carn, last.Herbivores, last.Carnivores)
	}

	// The returned history is a copy.
	h[0].Herbivores = -1
	if e.History()[0].Herbivores == -1 {
		t.Error("History() exposes internal storage")
	}
}

func singleCellRun(t *testing.T, fMax float64, seed int64) []telemetry.YearStats {
	t.Helper()
	cfg := testConfig(t, herbivores(2, 2, 50))
	cfg.Landscape.Lowland.FMax = fMax
	e := startEngine(t, singleLowland, cfg, seed)
	e.Run(50)
	return e.History()
}

func TestSingleCellGrowthFollowsFodder(t *testing.T) {
	p := fauna.DefaultParams(fauna.Herbivore)
	seeds := []int64{3, 4, 5}

	late := make(map[float64]float64)
	for _, fMax := range []float64{400, 800} {
		// Feeding adds at most beta*f_max a year and a birth costs the parent
		// xi >= 1 times the newborn, so year-end biomass W obeys
		// W' <= (1-eta)(W + beta*f_max) and never passes the fixed point.
		limit := (1 - p.Eta) * p.Beta * fMax / p.Eta

		for _, seed := range seeds {
			h := singleCellRun(t, fMax, seed)
			for _, s := range h {
				if biomass := s.HerbWeightMean * float64(s.Herbivores); biomass > limit*(1+1e-9) {
					t.Fatalf("f_max %v seed %d year %d: biomass %.1f above %.1f", fMax, seed, s.Year, biomass, limit)
				}
			}
			for _, s := range h[40:] {
				late[fMax] += float64(s.Herbivores)
			}
		}
		late[fMax] /= float64(10 * len(seeds))
	}

	if late[800] == 0 {
		t.Fatal("herbivores went extinct with full fodder")
	}
	// Halving the fodder roughly halves the level the population settles at.
	if ratio := late[400] / late[800]; ratio < 0.2 || ratio > 0.8 {
		t.Errorf("mean of years 41-50: %.1f at f_max 400, %.1f at f_max 800 (ratio %.2f)", late[400], late[800], ratio)
	}
}

func TestCarnivoresReduceHerbivores(t *testing.T) {
	cfg := testConfig(t, herbivores(2, 2, 50))
	cfg.Introductions = []config.Introduction{{Year: 20, Placements: []config.Placement{carnivores(2, 2, 20)}}}
	e := startEngine(t, singleLowland, cfg, 11)
	e.Run(30)
	h := e.History()

	before := h[19]
	if before.Carnivores != 0 {
		t.Fatalf("carnivores present before the introduction: %d", before.Carnivores)
	}
	lowest := before.Herbivores
	for _, s := range h[20:30] {
		lowest = min(lowest, s.Herbivores)
	}
	if lowest >= before.Herbivores {
		t.Errorf("herbivores never fell below %d after carnivores arrived", before.Herbivores)
	}
}

func TestIntroductionTiming(t *testing.T) {
	cfg := testConfig(t, herbivores(2, 2, 30))
	cfg.Species.Carnivore.Omega = 0
	cfg.Species.Carnivore.Mu = 0
	cfg.Introductions = []config.Introduction{{Year: 3, Placements: []config.Placement{carnivores(2, 3, 10)}}}
	e := startEngine(t, smallIsland, cfg, 5)
	e.Run(4)
	h := e.History()

	if h[2].Carnivores != 0 {
		t.Errorf("year 3: %d carnivores, want 0", h[2].Carnivores)
	}
	if h[3].Carnivores < 10 {
		t.Errorf("year 4: %d carnivores, want >= 10", h[3].Carnivores)
	}
}

func TestStarvation(t *testing.T) {
	t.Run("lone animal", func(t *testing.T) {
		p := fauna.DefaultParams(fauna.Herbivore)
		const w0 = 20.0
		deadline := int(math.Ceil(w0 / p.Eta))

		for seed := int64(1); seed <= 20; seed++ {
			e := startEngine(t, singleDesert, testConfig(t, herbivores(2, 2, 1)), seed)
			for e.Year() < deadline {
				if herb, _ := e.Counts(); herb == 0 {
					break
				}
				e.Step()
			}
			if herb, _ := e.Counts(); herb != 0 {
				t.Errorf("seed %d: still alive after %d years without fodder", seed, e.Year())
			}
		}
	})

	t.Run("total weight loss", func(t *testing.T) {
		cfg := testConfig(t, herbivores(2, 2, 20))
		cfg.Species.Herbivore.Eta = 1
		e := startEngine(t, singleDesert, cfg, 1)
		e.Run(1)
		if herb, _ := e.Counts(); herb != 0 {
			t.Errorf("%d herbivores survived a year with eta = 1", herb)
		}
	})

	t.Run("gradual weight loss", func(t *testing.T) {
		cfg := testConfig(t, herbivores(2, 2, 20))
		cfg.Species.Herbivore.Omega = 0
		cfg.Species.Herbivore.Gamma = 0
		e := startEngine(t, singleDesert, cfg, 1)
		e.Run(10)

		prev := 20.0
		for _, s := range e.History() {
			if s.Herbivores != 20 {
				t.Fatalf("year %d: %d herbivores, want 20", s.Year, s.Herbivores)
			}
			if !(s.HerbWeightMean < prev) {
				t.Fatalf("year %d: mean weight %v did not drop below %v", s.Year, s.HerbWeightMean, prev)
			}
			prev = s.HerbWeightMean
		}
	})
}

func TestAddPopulationErrors(t *testing.T) {
	neg := -1.0
	tests := []struct {
		name string
		ps   []config.Placement
	}{
		{"water", []config.Placement{herbivores(1, 1, 1)}},
		{"outside", []config.Placement{herbivores(10, 10, 1)}},
		{"negative age", []config.Placement{{Loc: [2]int{2, 2}, Pop: []config.AnimalSpec{{Species: "Herbivore", Age: -1}}}}},
		{"negative weight", []config.Placement{{Loc: [2]int{2, 2}, Pop: []config.AnimalSpec{{Species: "Herbivore", Weight: &neg}}}}},
		{"unknown species", []config.Placement{{Loc: [2]int{2, 2}, Pop: []config.AnimalSpec{{Species: "Herbivor"}}}}},
		{"valid then invalid", []config.Placement{herbivores(2, 2, 5), herbivores(1, 3, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := startEngine(t, smallIsland, testConfig(t, herbivores(2, 2, 3)), 1)
			err := e.AddPopulation(tt.ps)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("error %v does not match config.ErrInvalid", err)
			}
			if herb, carn := e.Counts(); herb != 3 || carn != 0 {
				t.Errorf("counts = %d, %d after failed insert; want 3, 0", herb, carn)
			}
		})
	}
}

func TestAddPopulationDrawsWeights(t *testing.T) {
	e := startEngine(t, smallIsland, testConfig(t), 1)
	err := e.AddPopulation([]config.Placement{{
		Loc: [2]int{3, 2},
		Pop: []config.AnimalSpec{{Species: "carnivore", Age: 0, Count: 25}},
	}})
	if err != nil {
		t.Fatalf("AddPopulation: %v", err)
	}
	c := e.Island().Cell(island.Loc{Row: 3, Col: 2})
	if c.NumCarnivores() != 25 {
		t.Fatalf("placed %d carnivores, want 25", c.NumCarnivores())
	}
	for _, a := range c.Carnivores {
		if a.Weight() <= 0 {
			t.Errorf("drawn weight %v, want > 0", a.Weight())
		}
	}
}

func TestFailedAddPopulationKeepsRandomStream(t *testing.T) {
	cfg := testConfig(t, herbivores(2, 2, 20))
	cfg.Species.Herbivore.WBirth = 0
	cfg.Species.Herbivore.SigmaBirth = 0
	tried := startEngine(t, smallIsland, cfg, 9)
	clean := startEngine(t, smallIsland, cfg, 9)

	// Carnivore weights are drawn first; the herbivore weight can never be positive.
	err := tried.AddPopulation([]config.Placement{{
		Loc: [2]int{2, 3},
		Pop: []config.AnimalSpec{
			{Species: "Carnivore", Age: 3, Count: 5},
			{Species: "Herbivore", Age: 3},
		},
	}})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("AddPopulation error = %v, want config.ErrInvalid", err)
	}

	tried.Run(10)
	clean.Run(10)
	if !reflect.DeepEqual(tried.History(), clean.History()) {
		t.Error("a rejected insert changed the following years")
	}
}

func TestHistoryReconcilesIntroductions(t *testing.T) {
	cfg := testConfig(t, herbivores(2, 2, 30))
	cfg.Introductions = []config.Introduction{
		{Year: 3, Placements: []config.Placement{herbivores(2, 3, 15), carnivores(3, 4, 6)}},
		{Year: 6, Placements: []config.Placement{carnivores(2, 2, 4)}},
	}
	e := startEngine(t, smallIsland, cfg, 21)
	e.Run(10)
	h := e.History()

	if h[3].HerbIntroduced != 15 || h[3].CarnIntroduced != 6 || h[6].CarnIntroduced != 4 {
		t.Errorf("introduced = %d/%d in year 4, %d carnivores in year 7; want 15/6, 4",
			h[3].HerbIntroduced, h[3].CarnIntroduced, h[6].CarnIntroduced)
	}

	herb, carn := 30, 0
	for _, s := range h {
		herb += s.HerbIntroduced + s.HerbBirths - s.HerbDeaths - s.Kills
		carn += s.CarnIntroduced + s.CarnBirths - s.CarnDeaths
		if s.Herbivores != herb || s.Carnivores != carn {
			t.Fatalf("year %d: recorded %d/%d, events give %d/%d", s.Year, s.Herbivores, s.Carnivores, herb, carn)
		}
	}
}

func TestNewRejectsBadScenario(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		setup func(*config.Config)
	}{
		{"land on border", "WLW\nWLW\nWWW", func(*config.Config) {}},
		{"population on water", smallIsland, func(c *config.Config) {
			c.Population = []config.Placement{herbivores(1, 1, 1)}
		}},
		{"introduction outside", smallIsland, func(c *config.Config) {
			c.Introductions = []config.Introduction{{Year: 5, Placements: []config.Placement{carnivores(9, 9, 1)}}}
		}},
		{"bad parameter", smallIsland, func(c *config.Config) { c.Species.Herbivore.Eta = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.setup(cfg)
			_, err := New(geography.MustParse(tt.text), cfg, Options{Logger: quiet})
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("New error = %v, want config.ErrInvalid", err)
			}
		})
	}
}

func TestSetAnimalParameters(t *testing.T) {
	e := startEngine(t, smallIsland, testConfig(t, herbivores(2, 2, 10)), 1)

	bad := []struct {
		name      string
		species   string
		overrides map[string]float64
	}{
		{"unknown name", "Herbivore", map[string]float64{"F": 20, "appetite": 1}},
		{"out of range", "Herbivore", map[string]float64{"F": 20, "eta": 2}},
		{"unknown species", "Omnivore", map[string]float64{"F": 20}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			err := e.SetAnimalParameters(tt.species, tt.overrides)
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("error = %v, want config.ErrInvalid", err)
			}
			if got := e.Config().Species.Herbivore.F; got != 10 {
				t.Errorf("F = %v after failed update, want 10", got)
			}
		})
	}

	if err := e.SetAnimalParameters("herbivore", map[string]float64{"F": 20, "phi_weight": 0.2}); err != nil {
		t.Fatalf("SetAnimalParameters: %v", err)
	}
	p := e.Config().Species.Herbivore
	if p.F != 20 || p.PhiWeight != 0.2 {
		t.Errorf("params = %+v, want F 20 and phi_weight 0.2", p)
	}
	a := e.Island().Cell(island.Loc{Row: 2, Col: 2}).Herbivores[0]
	if a.Params().F != 20 {
		t.Error("living animals do not see the new parameters")
	}
}

func TestSetLandscapeParameters(t *testing.T) {
	e := startEngine(t, smallIsland, testConfig(t), 1)

	for _, tc := range []struct {
		code      string
		overrides map[string]float64
	}{
		{"W", map[string]float64{"f_max": 10}},
		{"X", map[string]float64{"f_max": 10}},
		{"L", map[string]float64{"alpha": 1.5}},
		{"L", map[string]float64{"fmax": 10}},
	} {
		if err := e.SetLandscapeParameters(tc.code, tc.overrides); !errors.Is(err, config.ErrInvalid) {
			t.Errorf("SetLandscapeParameters(%q, %v) = %v, want config.ErrInvalid", tc.code, tc.overrides, err)
		}
	}
	if got := e.Island().TerrainParams(landscape.Lowland); got != landscape.DefaultTable()[landscape.Lowland] {
		t.Errorf("lowland changed after failed updates: %+v", got)
	}

	if err := e.SetLandscapeParameters("L", map[string]float64{"f_max": 100}); err != nil {
		t.Fatalf("SetLandscapeParameters: %v", err)
	}
	for _, c := range e.Island().Cells() {
		if c.Terrain() == landscape.Lowland && c.Fodder() > 100 {
			t.Errorf("lowland fodder %v exceeds new f_max", c.Fodder())
		}
	}
	if got := e.Config().Landscape.Lowland.FMax; got != 100 {
		t.Errorf("config f_max = %v, want 100", got)
	}
}

func TestBookmarkCallback(t *testing.T) {
	cfg := testConfig(t, herbivores(2, 2, 5))
	cfg.Species.Herbivore.Eta = 1

	var got []telemetry.Bookmark
	var years []int
	e, err := New(geography.MustParse(singleDesert), cfg, Options{
		Seed:             1,
		Logger:           quiet,
		BookmarkCallback: func(b telemetry.Bookmark) { got = append(got, b) },
		StatsCallback:    func(s telemetry.YearStats) { years = append(years, s.Year) },
	})
	if err != nil {
		t.Fatal(err)
	}
	e.Run(3)

	if !reflect.DeepEqual(years, []int{1, 2, 3}) {
		t.Errorf("stats callback years = %v", years)
	}
	if !reflect.DeepEqual(got, e.Bookmarks()) {
		t.Errorf("callback bookmarks %v differ from Bookmarks() %v", got, e.Bookmarks())
	}
}
