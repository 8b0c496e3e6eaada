package geography

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/biosim/landscape"
)

// GenConfig holds random island generation parameters.
type GenConfig struct {
	Rows, Cols  int
	Seed        int64
	SeaLevel    float64 // Elevation below which a cell is water (0-1)
	HighlandLvl float64 // Elevation above which a cell is highland (0-1)
	DryLvl      float64 // Rainfall below which land is desert (0-1)
}

// DefaultGenConfig returns settings that produce a mostly green island.
func DefaultGenConfig(rows, cols int, seed int64) GenConfig {
	return GenConfig{
		Rows:        rows,
		Cols:        cols,
		Seed:        seed,
		SeaLevel:    0.22,
		HighlandLvl: 0.55,
		DryLvl:      0.35,
	}
}

// Generate builds a random island from layered simplex noise.
// Elevation falls off towards the edges and the outer ring is always water.
func Generate(cfg GenConfig) *Map {
	elevNoise := opensimplex.NewNormalized(cfg.Seed)
	rainNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	m := NewMap(cfg.Rows, cfg.Cols)
	cy := float64(cfg.Rows-1) / 2
	cx := float64(cfg.Cols-1) / 2

	for r := range cfg.Rows {
		for c := range cfg.Cols {
			if r == 0 || c == 0 || r == cfg.Rows-1 || c == cfg.Cols-1 {
				continue
			}
			x, y := float64(c), float64(r)

			elev := octaveNoise(elevNoise, x, y, 3, 0.15, 0.5)
			rain := octaveNoise(rainNoise, x, y, 2, 0.1, 0.5)

			// Normalised distance from the centre, 1 at the edge midpoints.
			dx := (x - cx) / math.Max(cx, 1)
			dy := (y - cy) / math.Max(cy, 1)
			dist := math.Sqrt(dx*dx+dy*dy) / math.Sqrt2
			falloff := 1.0 - math.Pow(dist, 2.5)
			if falloff < 0 {
				falloff = 0
			}
			elev *= falloff

			m.Set(r, c, deriveTerrain(elev, rain, cfg))
		}
	}
	return m
}

func deriveTerrain(elev, rain float64, cfg GenConfig) landscape.Terrain {
	switch {
	case elev < cfg.SeaLevel:
		return landscape.Water
	case elev > cfg.HighlandLvl:
		return landscape.Highland
	case rain < cfg.DryLvl:
		return landscape.Desert
	default:
		return landscape.Lowland
	}
}

// octaveNoise layers several frequencies of noise into one value in [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for range octaves {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
