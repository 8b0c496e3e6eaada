package telemetry

import "github.com/pthm-cable/biosim/fauna"

// Sample is the population of one species observed at year end.
type Sample struct {
	Weights []float64
	Fitness []float64
}

// Count is the number of animals in the sample.
func (s Sample) Count() int { return len(s.Weights) }

// Collector accumulates events within a simulated year and produces YearStats.
type Collector struct {
	seed int64

	births      [len(fauna.AllSpecies)]int
	deaths      [len(fauna.AllSpecies)]int
	migrations  [len(fauna.AllSpecies)]int
	introduced  [len(fauna.AllSpecies)]int
	kills       int
	fodderEaten float64
}

// NewCollector creates a collector for a run with the given seed.
func NewCollector(seed int64) *Collector {
	return &Collector{seed: seed}
}

// RecordBirths records n births of species s.
func (c *Collector) RecordBirths(s fauna.Species, n int) {
	c.births[s] += n
}

// RecordDeaths records n deaths of species s from aging and starvation.
func (c *Collector) RecordDeaths(s fauna.Species, n int) {
	c.deaths[s] += n
}

// RecordMigrations records n moves of species s.
func (c *Collector) RecordMigrations(s fauna.Species, n int) {
	c.migrations[s] += n
}

// RecordIntroduced records n animals of species s added from outside.
func (c *Collector) RecordIntroduced(s fauna.Species, n int) {
	c.introduced[s] += n
}

// RecordKills records n herbivores taken by carnivores.
func (c *Collector) RecordKills(n int) {
	c.kills += n
}

// RecordEaten records fodder consumed by herbivores.
func (c *Collector) RecordEaten(amount float64) {
	c.fodderEaten += amount
}

// Flush produces the YearStats for the year just completed and resets the
// counters for the next one.
func (c *Collector) Flush(year int, herb, carn Sample, totalFodder float64) YearStats {
	hw := ComputeDistribution(herb.Weights)
	hf := ComputeDistribution(herb.Fitness)
	cw := ComputeDistribution(carn.Weights)
	cf := ComputeDistribution(carn.Fitness)

	stats := YearStats{
		Seed: c.seed,
		Year: year,

		Herbivores: herb.Count(),
		Carnivores: carn.Count(),
		Total:      herb.Count() + carn.Count(),

		HerbBirths:     c.births[fauna.Herbivore],
		CarnBirths:     c.births[fauna.Carnivore],
		HerbDeaths:     c.deaths[fauna.Herbivore],
		CarnDeaths:     c.deaths[fauna.Carnivore],
		Kills:          c.kills,
		HerbMigrations: c.migrations[fauna.Herbivore],
		CarnMigrations: c.migrations[fauna.Carnivore],
		HerbIntroduced: c.introduced[fauna.Herbivore],
		CarnIntroduced: c.introduced[fauna.Carnivore],

		FodderEaten: c.fodderEaten,
		TotalFodder: totalFodder,

		HerbWeightMean:  hw.Mean,
		HerbWeightStd:   hw.Std,
		HerbWeightP50:   hw.P50,
		HerbFitnessMean: hf.Mean,

		CarnWeightMean:  cw.Mean,
		CarnWeightStd:   cw.Std,
		CarnWeightP50:   cw.P50,
		CarnFitnessMean: cf.Mean,
	}

	c.births = [len(fauna.AllSpecies)]int{}
	c.deaths = [len(fauna.AllSpecies)]int{}
	c.migrations = [len(fauna.AllSpecies)]int{}
	c.introduced = [len(fauna.AllSpecies)]int{}
	c.kills = 0
	c.fodderEaten = 0

	return stats
}
