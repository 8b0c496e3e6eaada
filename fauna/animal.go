package fauna

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"
)

// Animal is a single herbivore or carnivore.
// Its parameters are shared with every other animal of the same species, so a
// change to the species table is seen by the whole population.
type Animal struct {
	species Species
	age     int
	weight  float64
	fitness float64
	params  *Params
}

// NewAnimal creates an animal with the given age and weight.
func NewAnimal(s Species, p *Params, age int, weight float64) (*Animal, error) {
	if p == nil {
		return nil, fmt.Errorf("%s: missing parameters", s)
	}
	if age < 0 {
		return nil, fmt.Errorf("%s: age must be >= 0, got %d", s, age)
	}
	if !(weight > 0) || math.IsInf(weight, 0) {
		return nil, fmt.Errorf("%s: weight must be > 0, got %v", s, weight)
	}
	a := &Animal{species: s, age: age, params: p}
	a.setWeight(weight)
	return a, nil
}

func (a *Animal) Species() Species { return a.species }
func (a *Animal) Age() int         { return a.age }
func (a *Animal) Weight() float64  { return a.weight }
func (a *Animal) Fitness() float64 { return a.fitness }
func (a *Animal) Params() *Params  { return a.params }

// setWeight stores w clamped at zero and recomputes fitness.
func (a *Animal) setWeight(w float64) {
	if w < 0 || math.IsNaN(w) {
		w = 0
	}
	a.weight = w
	a.fitness = Fitness(a.params, a.age, a.weight)
}

// RefreshFitness recomputes fitness after the species parameters changed.
func (a *Animal) RefreshFitness() {
	a.fitness = Fitness(a.params, a.age, a.weight)
}

// Feed lets a herbivore eat from the available fodder.
// It eats up to its appetite and returns the amount consumed.
func (a *Animal) Feed(available float64) float64 {
	if available <= 0 {
		return 0
	}
	eaten := math.Min(a.params.F, available)
	a.setWeight(a.weight + a.params.Beta*eaten)
	return eaten
}

// Hunt lets a carnivore attack prey, which must be ordered weakest first.
// Hunting stops once the appetite is met or every prey has been tried.
// The killed animals are returned; the caller removes them from the cell.
func (a *Animal) Hunt(prey []*Animal, rng *rand.Rand) []*Animal {
	var kills []*Animal
	appetite := a.params.F
	eaten := 0.0
	for _, h := range prey {
		if eaten >= appetite {
			break
		}
		p := KillProbability(a.fitness, h.fitness, a.params.DeltaPhiMax)
		if p <= 0 || (p < 1 && rng.Float64() >= p) {
			continue
		}
		kills = append(kills, h)
		meal := math.Min(h.weight, appetite-eaten)
		eaten += meal
		a.setWeight(a.weight + a.params.Beta*meal)
	}
	return kills
}

// Procreate attempts a birth given the number of same-species animals in the
// cell at the start of the procreation pass. It returns the newborn, or nil.
// A birth that would leave the parent without weight is abandoned before
// anything changes.
func (a *Animal) Procreate(sameSpecies int, rng *rand.Rand) *Animal {
	p := BirthProbability(a.params, a.fitness, a.weight, sameSpecies)
	if p <= 0 || rng.Float64() >= p {
		return nil
	}
	w := DrawBirthWeight(a.params, rng)
	if w <= 0 {
		return nil
	}
	remaining := a.weight - a.params.Xi*w
	if remaining <= 0 {
		return nil
	}
	a.setWeight(remaining)

	child := &Animal{species: a.species, params: a.params}
	child.setWeight(w)
	return child
}

// AgeOneYear advances age by one and applies the annual weight loss.
func (a *Animal) AgeOneYear() {
	a.age++
	a.setWeight(a.weight - a.params.Eta*a.weight)
}

// IsDead reports whether the animal dies this year.
// Starvation is certain; otherwise death is drawn with probability omega*(1-fitness).
func (a *Animal) IsDead(rng *rand.Rand) bool {
	if a.weight <= 0 {
		return true
	}
	return rng.Float64() < a.params.Omega*(1-a.fitness)
}

// Migrates draws whether the animal tries to move this year.
func (a *Animal) Migrates(rng *rand.Rand) bool {
	return rng.Float64() < a.params.Mu*a.fitness
}

// Fitness combines a falling logistic in age with a rising logistic in weight.
func Fitness(p *Params, age int, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	ageTerm := 1 / (1 + math.Exp(p.PhiAge*(float64(age)-p.AHalf)))
	weightTerm := 1 / (1 + math.Exp(-p.PhiWeight*(weight-p.WHalf)))
	return clamp01(ageTerm * weightTerm)
}

// KillProbability is the chance a predator with fitness predFit kills prey
// with fitness preyFit. A predator no fitter than its prey never succeeds; a
// gap of deltaPhiMax or more always succeeds; in between it grows linearly.
func KillProbability(predFit, preyFit, deltaPhiMax float64) float64 {
	gap := predFit - preyFit
	switch {
	case gap <= 0:
		return 0
	case gap >= deltaPhiMax:
		return 1
	default:
		return gap / deltaPhiMax
	}
}

// BirthProbability is the chance of giving birth for an animal with the given
// fitness and weight sharing a cell with n animals of its species (itself included).
func BirthProbability(p *Params, fitness, weight float64, n int) float64 {
	if n < 2 || weight < p.BirthWeightThreshold() {
		return 0
	}
	return math.Min(1, p.Gamma*fitness*float64(n-1))
}

// DrawBirthWeight draws a newborn weight from Normal(w_birth, sigma_birth).
// The result may be zero or negative; callers decide what that means.
func DrawBirthWeight(p *Params, rng *rand.Rand) float64 {
	return distuv.Normal{Mu: p.WBirth, Sigma: p.SigmaBirth, Src: rng}.Rand()
}

// SortByFitnessDesc orders animals fittest first, keeping ties in place.
func SortByFitnessDesc(animals []*Animal) {
	slices.SortStableFunc(animals, func(x, y *Animal) int {
		return cmp.Compare(y.fitness, x.fitness)
	})
}

// SortByFitnessAsc orders animals weakest first, keeping ties in place.
func SortByFitnessAsc(animals []*Animal) {
	slices.SortStableFunc(animals, func(x, y *Animal) int {
		return cmp.Compare(x.fitness, y.fitness)
	})
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
