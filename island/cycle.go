package island

import (
	"math/rand/v2"

	"github.com/pthm-cable/biosim/fauna"
	"github.com/pthm-cable/biosim/telemetry"
)

// PhaseTimer is notified as the yearly cycle enters each phase.
// telemetry.PerfCollector satisfies it.
type PhaseTimer interface {
	StartPhase(phase string)
}

// YearEvents counts what happened during one yearly cycle.
// Arrays are indexed by fauna.Species.
type YearEvents struct {
	Births     [len(fauna.AllSpecies)]int
	Deaths     [len(fauna.AllSpecies)]int
	Migrations [len(fauna.AllSpecies)]int
	Kills      int // Herbivores taken by carnivores
	Eaten      float64
}

// RunYear advances the island by one year. Each phase runs over the whole
// grid before the next one starts: fodder regrowth, feeding (herbivores then
// carnivores), procreation, migration, then aging and death.
// timer may be nil.
func (isl *Island) RunYear(rng *rand.Rand, timer PhaseTimer) YearEvents {
	var ev YearEvents
	phase := func(name string) {
		if timer != nil {
			timer.StartPhase(name)
		}
	}

	phase(telemetry.PhaseRegrowth)
	for _, c := range isl.cells {
		c.RegrowFodder()
	}

	phase(telemetry.PhaseFeeding)
	for _, c := range isl.cells {
		if !c.Passable() {
			continue
		}
		ev.Eaten += c.FeedHerbivores()
		ev.Kills += c.FeedCarnivores(rng)
	}

	phase(telemetry.PhaseProcreation)
	for _, c := range isl.cells {
		if !c.Passable() {
			continue
		}
		h, k := c.Procreate(rng)
		ev.Births[fauna.Herbivore] += h
		ev.Births[fauna.Carnivore] += k
	}

	phase(telemetry.PhaseMigration)
	isl.migrate(rng, &ev)

	phase(telemetry.PhaseAging)
	for _, c := range isl.cells {
		if !c.Passable() {
			continue
		}
		h, k := c.AgeAndCull(rng)
		ev.Deaths[fauna.Herbivore] += h
		ev.Deaths[fauna.Carnivore] += k
	}
	return ev
}

type moveIntent struct {
	animal *fauna.Animal
	to     int
}

// migrate moves animals in two steps. First every animal decides where to go
// while the grid is unchanged, then all moves are applied together, so no
// animal moves more than one cell per year.
func (isl *Island) migrate(rng *rand.Rand, ev *YearEvents) {
	var intents []moveIntent
	moving := make(map[*fauna.Animal]struct{})
	var buf []int

	for i, c := range isl.cells {
		if !c.Passable() || (c.NumHerbivores() == 0 && c.NumCarnivores() == 0) {
			continue
		}
		buf = isl.neighbours(i, buf)
		for _, group := range [][]*fauna.Animal{c.Herbivores, c.Carnivores} {
			for _, a := range group {
				if !a.Migrates(rng) || len(buf) == 0 {
					continue
				}
				to := buf[rng.IntN(len(buf))]
				intents = append(intents, moveIntent{animal: a, to: to})
				moving[a] = struct{}{}
			}
		}
	}
	if len(intents) == 0 {
		return
	}

	for _, c := range isl.cells {
		c.Herbivores = keepStaying(c.Herbivores, moving)
		c.Carnivores = keepStaying(c.Carnivores, moving)
	}
	for _, in := range intents {
		// Destinations are passable, so Add cannot fail.
		_ = isl.cells[in.to].Add(in.animal)
		ev.Migrations[in.animal.Species()]++
	}
}

func keepStaying(animals []*fauna.Animal, moving map[*fauna.Animal]struct{}) []*fauna.Animal {
	out := animals[:0]
	for _, a := range animals {
		if _, ok := moving[a]; !ok {
			out = append(out, a)
		}
	}
	clear(animals[len(out):])
	return out
}
