package main

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/sim"
	"github.com/pthm-cable/biosim/telemetry"
)

// FitnessEvaluator runs simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxYears   int
	seeds      []int64
	baseConfig *config.Config
	logger     *slog.Logger

	mu          sync.Mutex
	bestFitness float64
	bestHistory []telemetry.YearStats
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxYears int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxYears:    maxYears,
		seeds:       seeds,
		baseConfig:  baseCfg.Clone(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		bestFitness: math.Inf(1),
	}
}

// BestHistory returns the yearly records of the best seed of the best evaluation.
func (fe *FitnessEvaluator) BestHistory() []telemetry.YearStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHistory
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Minimum viable population: if either species stays below this for
// extinctionGraceYears consecutive years, it counts as functionally extinct.
const (
	minViablePop         = 3
	extinctionGraceYears = 5
)

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalYears int // coexistence years before functional extinction (or the cap)
	history       []telemetry.YearStats
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness float64
	quality float64
	history []telemetry.YearStats
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Every seed runs its own engine in parallel.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result := fe.runSimulation(x, s)
			results[idx] = seedResult{
				fitness: computeFitness(result),
				quality: computeQuality(result.history),
				history: result.history,
			}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	bestSeedFitness := math.Inf(1)
	var bestSeedHistory []telemetry.YearStats

	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
		if r.fitness < bestSeedFitness {
			bestSeedFitness = r.fitness
			bestSeedHistory = r.history
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestHistory = bestSeedHistory
	}
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single run until functional extinction or
// maxYears, whichever comes first.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	result := &runResult{}

	cfg := fe.baseConfig.Clone()
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return result
	}
	m, err := sim.BuildMap(cfg, seed)
	if err != nil {
		return result
	}
	eng, err := sim.New(m, cfg, sim.Options{Seed: seed, Logger: fe.logger})
	if err != nil {
		return result
	}

	var herbBelow, carnBelow int
	coexisting := false

	for eng.Year() < fe.maxYears {
		s := eng.Step()
		result.history = append(result.history, s)

		// Survival counts from the first year both species are present.
		if !coexisting {
			if s.Herbivores > 0 && s.Carnivores > 0 {
				coexisting = true
			} else if eng.Year() > coexistenceDeadline(cfg) {
				return result
			}
			continue
		}

		// Hard extinction: either species completely gone
		if s.Herbivores == 0 || s.Carnivores == 0 {
			return result
		}
		result.survivalYears++

		// Functional extinction: species below minimum viable population too long
		herbBelow = belowCount(s.Herbivores, herbBelow)
		carnBelow = belowCount(s.Carnivores, carnBelow)
		if herbBelow >= extinctionGraceYears || carnBelow >= extinctionGraceYears {
			return result
		}
	}
	return result
}

func belowCount(pop, streak int) int {
	if pop < minViablePop {
		return streak + 1
	}
	return 0
}

// coexistenceDeadline is the latest year at which coexistence can still begin.
func coexistenceDeadline(cfg *config.Config) int {
	year := 0
	for _, in := range cfg.Introductions {
		year = max(year, in.Year)
	}
	return year + 1
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survivalYears × (1.0 + 0.2 × quality))
// Survival dominates; quality separates configs with similar survival.
func computeFitness(r *runResult) float64 {
	survival := float64(r.survivalYears)
	quality := computeQuality(r.history)
	return -(survival * (1.0 + 0.2*quality))
}

// Quality component weights.
const (
	qualityWeightRatio     = 0.35
	qualityWeightStability = 0.35
	qualityWeightHunting   = 0.30

	qualityMinPop     = 3   // exclude years where either species < this
	targetRatio       = 5.0 // herbivores per carnivore
	qualityWarmupYear = 10  // skip the first years of coexistence
)

// computeQuality computes ecosystem quality in [0, 1] from yearly records.
func computeQuality(history []telemetry.YearStats) float64 {
	var ratioSum, huntSum float64
	var count int
	herbCounts := make([]float64, 0, len(history))
	carnCounts := make([]float64, 0, len(history))

	skipped := 0
	for _, s := range history {
		if s.Herbivores < qualityMinPop || s.Carnivores < qualityMinPop {
			continue
		}
		if skipped < qualityWarmupYear {
			skipped++
			continue
		}

		herbCounts = append(herbCounts, float64(s.Herbivores))
		carnCounts = append(carnCounts, float64(s.Carnivores))

		// 1. Population ratio score
		logErr := math.Log(float64(s.Herbivores) / float64(s.Carnivores) / targetRatio)
		ratioSum += math.Exp(-logErr * logErr)

		// 3. Hunting activity: kills per carnivore, saturating
		killsPerCarn := float64(s.Kills) / float64(s.Carnivores)
		huntSum += 1.0 - math.Exp(-killsPerCarn)
		count++
	}
	if count == 0 {
		return 0
	}

	// 2. Population stability (CV across valid years)
	stabilityScore := 0.0
	if len(herbCounts) >= 2 {
		cvHerb := cv(herbCounts)
		cvCarn := cv(carnCounts)
		stabilityScore = math.Exp(-(cvHerb*cvHerb + cvCarn*cvCarn))
	}

	quality := qualityWeightRatio*ratioSum/float64(count) +
		qualityWeightStability*stabilityScore +
		qualityWeightHunting*huntSum/float64(count)

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean == 0 {
		return 0
	}
	return stat.PopStdDev(values, nil) / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
