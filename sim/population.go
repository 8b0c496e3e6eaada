package sim

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/fauna"
	"github.com/pthm-cable/biosim/island"
)

type placed struct {
	loc     island.Loc
	animals []*fauna.Animal
}

// AddPopulation places animals on the island. Either every animal is placed
// or, on error, none is and the random stream is left where it was. Omitted
// weights are drawn from the species' birth weight distribution.
func (e *Engine) AddPopulation(ps []config.Placement) (err error) {
	if err := config.ValidatePlacements("population", ps); err != nil {
		return err
	}
	if err := e.checkLocations("population", ps); err != nil {
		return err
	}

	state, err := e.src.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal rng: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := e.src.UnmarshalBinary(state); rerr != nil {
				err = errors.Join(err, fmt.Errorf("rewind rng: %w", rerr))
			}
		}
	}()

	batch := make([]placed, 0, len(ps))
	for i, p := range ps {
		b := placed{loc: island.Loc{Row: p.Loc[0], Col: p.Loc[1]}}
		for j, spec := range p.Pop {
			s, err := config.SpeciesByName("", spec.Species)
			if err != nil {
				return err
			}
			params := &e.params[s]
			for range spec.N() {
				w, err := e.initialWeight(params, spec)
				if err != nil {
					return config.Wrap(fmt.Sprintf("population[%d].pop[%d].weight", i, j), err)
				}
				a, err := fauna.NewAnimal(s, params, spec.Age, w)
				if err != nil {
					return config.Wrap(fmt.Sprintf("population[%d].pop[%d]", i, j), err)
				}
				b.animals = append(b.animals, a)
			}
		}
		batch = append(batch, b)
	}

	for _, b := range batch {
		if err := e.isl.Place(b.loc, b.animals...); err != nil {
			// Unreachable after checkLocations.
			return config.Wrap("population", err)
		}
	}
	return nil
}

// initialWeight returns the given weight, or draws one from the birth
// distribution. Draws at or below zero are redrawn a bounded number of times.
func (e *Engine) initialWeight(p *fauna.Params, spec config.AnimalSpec) (float64, error) {
	if spec.Weight != nil {
		return *spec.Weight, nil
	}
	for range maxWeightDraws {
		if w := fauna.DrawBirthWeight(p, e.rng); w > 0 {
			return w, nil
		}
	}
	return 0, fmt.Errorf("no positive birth weight in %d draws (w_birth=%v, sigma_birth=%v)", maxWeightDraws, p.WBirth, p.SigmaBirth)
}

const maxWeightDraws = 100

// checkLocations verifies every placement targets a passable cell.
func (e *Engine) checkLocations(field string, ps []config.Placement) error {
	for i, p := range ps {
		loc := island.Loc{Row: p.Loc[0], Col: p.Loc[1]}
		if err := e.isl.CheckPlacement(loc); err != nil {
			return config.Wrap(fmt.Sprintf("%s[%d].loc", field, i), err)
		}
	}
	return nil
}

func countAnimals(ps []config.Placement) int {
	n := 0
	for _, p := range ps {
		for _, spec := range p.Pop {
			n += spec.N()
		}
	}
	return n
}

// countBySpecies counts the animals of already validated placements per species.
func countBySpecies(ps []config.Placement) [len(fauna.AllSpecies)]int {
	var n [len(fauna.AllSpecies)]int
	for _, p := range ps {
		for _, spec := range p.Pop {
			if s, err := config.SpeciesByName("", spec.Species); err == nil {
				n[s] += spec.N()
			}
		}
	}
	return n
}

// SetAnimalParameters changes parameters of one species. Names not known to
// the species are rejected; on any error nothing changes. Every living animal
// of the species sees the new values.
func (e *Engine) SetAnimalParameters(species string, overrides map[string]float64) error {
	s, err := config.SpeciesByName("species", species)
	if err != nil {
		return err
	}
	if err := config.ApplySpeciesOverrides(&e.params[s], overrides); err != nil {
		return err
	}
	*e.cfg.Species.Params(s) = e.params[s]
	e.isl.RefreshFitness()
	e.logger.Debug("species parameters changed", "species", s.String(), "overrides", overrides)
	return nil
}

// SetLandscapeParameters changes f_max or alpha of one terrain, given by its
// map code. Water cannot be given fodder.
func (e *Engine) SetLandscapeParameters(code string, overrides map[string]float64) error {
	t, err := config.TerrainByCode("landscape", code)
	if err != nil {
		return err
	}
	p := e.isl.TerrainParams(t)
	if err := config.ApplyLandscapeOverrides(t, &p, overrides); err != nil {
		return err
	}
	if err := e.isl.SetTerrainParams(t, p); err != nil {
		return config.Wrap("landscape."+string(t.Code()), err)
	}
	*e.cfg.Landscape.Params(t) = p
	e.logger.Debug("landscape parameters changed", "terrain", t.String(), "overrides", overrides)
	return nil
}
