// Package landscape models the cells of the island: their terrain, the
// fodder growing on them and the animals living there.
package landscape

import (
	"fmt"
	"math"
)

// Terrain is the landscape type of a cell.
type Terrain uint8

const (
	Water Terrain = iota
	Highland
	Lowland
	Desert
)

// AllTerrains lists every terrain in a stable order.
var AllTerrains = [...]Terrain{Water, Highland, Lowland, Desert}

// Code returns the single-character map code of the terrain.
func (t Terrain) Code() byte {
	switch t {
	case Highland:
		return 'H'
	case Lowland:
		return 'L'
	case Desert:
		return 'D'
	default:
		return 'W'
	}
}

func (t Terrain) String() string {
	switch t {
	case Water:
		return "Water"
	case Highland:
		return "Highland"
	case Lowland:
		return "Lowland"
	case Desert:
		return "Desert"
	default:
		return fmt.Sprintf("Terrain(%d)", uint8(t))
	}
}

// Passable reports whether animals can live on the terrain.
func (t Terrain) Passable() bool {
	return t != Water
}

// TerrainFromCode maps a map character to a terrain.
func TerrainFromCode(c byte) (Terrain, error) {
	switch c {
	case 'W':
		return Water, nil
	case 'H':
		return Highland, nil
	case 'L':
		return Lowland, nil
	case 'D':
		return Desert, nil
	}
	return 0, fmt.Errorf("unknown terrain code %q", c)
}

// Params holds the fodder parameters of a terrain.
type Params struct {
	FMax  float64 `yaml:"f_max"` // Fodder ceiling
	Alpha float64 `yaml:"alpha"` // Fraction of the deficit regrown each year (1 = full reset)
}

// Fields maps each parameter name to the field that stores it.
func (p *Params) Fields() map[string]*float64 {
	return map[string]*float64{
		"f_max": &p.FMax,
		"alpha": &p.Alpha,
	}
}

// ParamNames lists the terrain parameter names.
var ParamNames = []string{"f_max", "alpha"}

// Validate checks the parameters against their allowed ranges.
func (p *Params) Validate() error {
	for _, name := range ParamNames {
		v := *p.Fields()[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %v", name, v)
		}
	}
	if p.FMax < 0 {
		return fmt.Errorf("f_max must be >= 0, got %v", p.FMax)
	}
	if p.Alpha < 0 || p.Alpha > 1 {
		return fmt.Errorf("alpha must be in [0, 1], got %v", p.Alpha)
	}
	return nil
}

// Table holds the parameters of every terrain, indexed by Terrain.
// Cells keep a pointer into the table so updates reach every cell at once.
type Table [len(AllTerrains)]Params

// DefaultTable returns the standard terrain parameters.
func DefaultTable() Table {
	var t Table
	t[Lowland] = Params{FMax: 800, Alpha: 1}
	t[Highland] = Params{FMax: 300, Alpha: 0.3}
	t[Desert] = Params{FMax: 0, Alpha: 1}
	t[Water] = Params{FMax: 0, Alpha: 1}
	return t
}

// Validate checks every entry and that water grows nothing.
func (t *Table) Validate() error {
	for _, terrain := range AllTerrains {
		if err := t[terrain].Validate(); err != nil {
			return fmt.Errorf("%s: %w", terrain, err)
		}
	}
	if t[Water].FMax != 0 {
		return fmt.Errorf("%s: f_max must be 0, got %v", Water, t[Water].FMax)
	}
	return nil
}
