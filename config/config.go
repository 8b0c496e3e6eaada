// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/biosim/fauna"
	"github.com/pthm-cable/biosim/landscape"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Seed          int64           `yaml:"seed"`  // 0 = time-based
	Years         int             `yaml:"years"` // Years to simulate from the CLI
	Island        IslandConfig    `yaml:"island"`
	Species       SpeciesConfig   `yaml:"species"`
	Landscape     LandscapeConfig `yaml:"landscape"`
	Population    []Placement     `yaml:"population"`
	Introductions []Introduction  `yaml:"introductions"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Output        OutputConfig    `yaml:"output"`
}

// IslandConfig holds the island geography.
// When Random has non-zero dimensions the map text is ignored and a random
// island is generated from the run seed.
type IslandConfig struct {
	Map    string          `yaml:"map"`
	Random RandomMapConfig `yaml:"random"`
}

// RandomMapConfig sizes a generated island.
type RandomMapConfig struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// SpeciesConfig holds the biology parameters of each species.
type SpeciesConfig struct {
	Herbivore fauna.Params `yaml:"herbivore"`
	Carnivore fauna.Params `yaml:"carnivore"`
}

// Params returns a pointer to the parameters of species s.
func (sc *SpeciesConfig) Params(s fauna.Species) *fauna.Params {
	if s == fauna.Carnivore {
		return &sc.Carnivore
	}
	return &sc.Herbivore
}

// LandscapeConfig holds the fodder parameters of each terrain, keyed by map code.
type LandscapeConfig struct {
	Lowland  landscape.Params `yaml:"L"`
	Highland landscape.Params `yaml:"H"`
	Desert   landscape.Params `yaml:"D"`
	Water    landscape.Params `yaml:"W"`
}

// Params returns a pointer to the parameters of terrain t.
func (lc *LandscapeConfig) Params(t landscape.Terrain) *landscape.Params {
	switch t {
	case landscape.Lowland:
		return &lc.Lowland
	case landscape.Highland:
		return &lc.Highland
	case landscape.Desert:
		return &lc.Desert
	default:
		return &lc.Water
	}
}

// Table converts the section to the lookup table used by the island.
func (lc *LandscapeConfig) Table() landscape.Table {
	var t landscape.Table
	for _, terrain := range landscape.AllTerrains {
		t[terrain] = *lc.Params(terrain)
	}
	return t
}

// Placement puts a group of animals on one cell.
// Loc is 1-based (row, column), top-left is [1, 1].
type Placement struct {
	Loc [2]int       `yaml:"loc,flow"`
	Pop []AnimalSpec `yaml:"pop"`
}

// AnimalSpec describes one animal, or Count identical animals.
type AnimalSpec struct {
	Species string   `yaml:"species"`
	Age     int      `yaml:"age"`
	Weight  *float64 `yaml:"weight,omitempty"` // nil = drawn from the birth distribution
	Count   int      `yaml:"count,omitempty"`  // 0 = 1
}

// N returns how many animals the spec stands for.
func (a AnimalSpec) N() int {
	if a.Count == 0 {
		return 1
	}
	return a.Count
}

// Introduction adds animals after a given number of simulated years.
type Introduction struct {
	Year       int         `yaml:"year"`
	Placements []Placement `yaml:"placements"`
}

// TelemetryConfig holds telemetry and logging parameters.
type TelemetryConfig struct {
	LogStats            bool `yaml:"log_stats"`             // Log every year's stats
	BookmarkHistorySize int  `yaml:"bookmark_history_size"` // Years kept for bookmark detection
	PerfWindow          int  `yaml:"perf_window"`           // Years averaged for timing stats
	SnapshotOnBookmark  bool `yaml:"snapshot_on_bookmark"`  // Save a snapshot whenever a bookmark fires
}

// OutputConfig holds output destinations. Empty values disable the output.
type OutputConfig struct {
	Dir string `yaml:"dir"`
	DB  string `yaml:"db"`
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := embedded()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		cfg.dropSampleScenario()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func embedded() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// SetMap switches the island to the given map text.
func (c *Config) SetMap(text string) {
	c.Island = IslandConfig{Map: text}
	c.dropSampleScenario()
}

// SetRandomMap switches the island to a generated one of the given size.
func (c *Config) SetRandomMap(rows, cols int) {
	c.Island.Random = RandomMapConfig{Rows: rows, Cols: cols}
	c.dropSampleScenario()
}

// dropSampleScenario clears the default population and introductions once
// the island is no longer the default one; their locations only fit that map.
// A population or introductions set explicitly are kept.
func (c *Config) dropSampleScenario() {
	d, err := embedded()
	if err != nil || c.Island == d.Island {
		return
	}
	if reflect.DeepEqual(c.Population, d.Population) {
		c.Population = nil
	}
	if reflect.DeepEqual(c.Introductions, d.Introductions) {
		c.Introductions = nil
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Population = clonePlacements(c.Population)
	out.Introductions = make([]Introduction, len(c.Introductions))
	for i, in := range c.Introductions {
		out.Introductions[i] = Introduction{Year: in.Year, Placements: clonePlacements(in.Placements)}
	}
	return &out
}

func clonePlacements(ps []Placement) []Placement {
	if ps == nil {
		return nil
	}
	out := make([]Placement, len(ps))
	for i, p := range ps {
		out[i] = Placement{Loc: p.Loc, Pop: make([]AnimalSpec, len(p.Pop))}
		for j, a := range p.Pop {
			if a.Weight != nil {
				w := *a.Weight
				a.Weight = &w
			}
			out[i].Pop[j] = a
		}
	}
	return out
}

// YAML encodes the configuration in the same form Load reads.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
