package landscape

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/pthm-cable/biosim/fauna"
)

// Cell is one square of the island.
type Cell struct {
	terrain Terrain
	params  *Params
	fodder  float64

	Herbivores []*fauna.Animal
	Carnivores []*fauna.Animal
}

// NewCell creates a cell with full fodder.
// params must point at the entry for terrain in the shared table.
func NewCell(terrain Terrain, params *Params) *Cell {
	c := &Cell{terrain: terrain, params: params}
	if terrain.Passable() {
		c.fodder = params.FMax
	}
	return c
}

func (c *Cell) Terrain() Terrain   { return c.terrain }
func (c *Cell) Passable() bool     { return c.terrain.Passable() }
func (c *Cell) Fodder() float64    { return c.fodder }
func (c *Cell) NumHerbivores() int { return len(c.Herbivores) }
func (c *Cell) NumCarnivores() int { return len(c.Carnivores) }

// Add places animals in the cell.
func (c *Cell) Add(animals ...*fauna.Animal) error {
	if !c.Passable() {
		return fmt.Errorf("cannot place animals on %s", c.terrain)
	}
	for _, a := range animals {
		switch a.Species() {
		case fauna.Herbivore:
			c.Herbivores = append(c.Herbivores, a)
		case fauna.Carnivore:
			c.Carnivores = append(c.Carnivores, a)
		default:
			return fmt.Errorf("unknown species %s", a.Species())
		}
	}
	return nil
}

// RegrowFodder moves fodder towards f_max by the terrain's alpha.
func (c *Cell) RegrowFodder() {
	if !c.Passable() {
		return
	}
	fmax := c.params.FMax
	c.fodder += c.params.Alpha * (fmax - c.fodder)
	if c.fodder > fmax {
		c.fodder = fmax
	}
	if c.fodder < 0 {
		c.fodder = 0
	}
}

// SetFodder sets the standing fodder, clamped to [0, f_max].
func (c *Cell) SetFodder(f float64) {
	if !c.Passable() || f < 0 {
		f = 0
	}
	c.fodder = min(f, c.params.FMax)
}

// ClampFodder keeps fodder within the current f_max after a parameter change.
func (c *Cell) ClampFodder() {
	if c.fodder > c.params.FMax {
		c.fodder = c.params.FMax
	}
}

// FeedHerbivores lets herbivores eat, fittest first, until the fodder runs out.
// It returns the total amount eaten.
func (c *Cell) FeedHerbivores() float64 {
	fauna.SortByFitnessDesc(c.Herbivores)
	total := 0.0
	for _, h := range c.Herbivores {
		if c.fodder <= 0 {
			break
		}
		eaten := h.Feed(c.fodder)
		c.fodder -= eaten
		total += eaten
	}
	if c.fodder < 0 {
		c.fodder = 0
	}
	return total
}

// FeedCarnivores lets carnivores hunt, fittest first. Each carnivore attacks
// the surviving herbivores weakest first. Returns the number of kills.
func (c *Cell) FeedCarnivores(rng *rand.Rand) int {
	if len(c.Carnivores) == 0 || len(c.Herbivores) == 0 {
		return 0
	}
	fauna.SortByFitnessDesc(c.Carnivores)
	fauna.SortByFitnessAsc(c.Herbivores)

	kills := 0
	for _, carn := range c.Carnivores {
		if len(c.Herbivores) == 0 {
			break
		}
		killed := carn.Hunt(c.Herbivores, rng)
		if len(killed) == 0 {
			continue
		}
		kills += len(killed)
		c.Herbivores = slices.DeleteFunc(c.Herbivores, func(h *fauna.Animal) bool {
			return slices.Contains(killed, h)
		})
	}
	return kills
}

// Procreate runs one birth attempt per resident. The number of potential
// partners is fixed before anyone gives birth, and newborns join the cell
// only after the pass.
func (c *Cell) Procreate(rng *rand.Rand) (herbBirths, carnBirths int) {
	var herbBorn, carnBorn []*fauna.Animal
	n := len(c.Herbivores)
	for _, h := range c.Herbivores {
		if child := h.Procreate(n, rng); child != nil {
			herbBorn = append(herbBorn, child)
		}
	}
	n = len(c.Carnivores)
	for _, carn := range c.Carnivores {
		if child := carn.Procreate(n, rng); child != nil {
			carnBorn = append(carnBorn, child)
		}
	}
	c.Herbivores = append(c.Herbivores, herbBorn...)
	c.Carnivores = append(c.Carnivores, carnBorn...)
	return len(herbBorn), len(carnBorn)
}

// AgeAndCull ages every resident, then removes those that die.
func (c *Cell) AgeAndCull(rng *rand.Rand) (herbDeaths, carnDeaths int) {
	for _, h := range c.Herbivores {
		h.AgeOneYear()
	}
	for _, carn := range c.Carnivores {
		carn.AgeOneYear()
	}
	before := len(c.Herbivores)
	c.Herbivores = slices.DeleteFunc(c.Herbivores, func(a *fauna.Animal) bool {
		return a.IsDead(rng)
	})
	herbDeaths = before - len(c.Herbivores)

	before = len(c.Carnivores)
	c.Carnivores = slices.DeleteFunc(c.Carnivores, func(a *fauna.Animal) bool {
		return a.IsDead(rng)
	})
	carnDeaths = before - len(c.Carnivores)
	return herbDeaths, carnDeaths
}

// RefreshFitness recomputes the fitness of every resident.
func (c *Cell) RefreshFitness() {
	for _, h := range c.Herbivores {
		h.RefreshFitness()
	}
	for _, carn := range c.Carnivores {
		carn.RefreshFitness()
	}
}
