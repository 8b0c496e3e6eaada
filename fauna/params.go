package fauna

import (
	"fmt"
	"math"
)

// Params holds the biology constants of one species.
// The yaml names match the parameter names used in scenario files and overrides.
type Params struct {
	WBirth      float64 `yaml:"w_birth"`     // Mean newborn weight
	SigmaBirth  float64 `yaml:"sigma_birth"` // Std dev of newborn weight
	Beta        float64 `yaml:"beta"`        // Weight gained per unit eaten
	Eta         float64 `yaml:"eta"`         // Fraction of weight lost per year
	F           float64 `yaml:"F"`           // Appetite per year
	PhiAge      float64 `yaml:"phi_age"`     // Steepness of the age term in fitness
	AHalf       float64 `yaml:"a_half"`      // Age at which the age term is 0.5
	PhiWeight   float64 `yaml:"phi_weight"`  // Steepness of the weight term in fitness
	WHalf       float64 `yaml:"w_half"`      // Weight at which the weight term is 0.5
	Xi          float64 `yaml:"xi"`          // Parent weight lost per unit of newborn weight
	Zeta        float64 `yaml:"zeta"`        // Minimum weight for birth, in units of w_birth+sigma_birth
	Gamma       float64 `yaml:"gamma"`       // Birth probability scale
	Omega       float64 `yaml:"omega"`       // Death probability scale
	DeltaPhiMax float64 `yaml:"DeltaPhiMax"` // Fitness gap at which a kill becomes certain
	Mu          float64 `yaml:"mu"`          // Migration probability scale
}

// DefaultParams returns the standard parameters for a species.
func DefaultParams(s Species) Params {
	if s == Carnivore {
		return Params{
			WBirth: 6.0, SigmaBirth: 1.0, Beta: 0.75, Eta: 0.125, F: 50.0,
			PhiAge: 0.3, AHalf: 40.0, PhiWeight: 0.4, WHalf: 4.0,
			Xi: 1.1, Zeta: 3.5, Gamma: 0.8, Omega: 0.8,
			DeltaPhiMax: 10.0, Mu: 0.4,
		}
	}
	return Params{
		WBirth: 8.0, SigmaBirth: 1.5, Beta: 0.9, Eta: 0.05, F: 10.0,
		PhiAge: 0.6, AHalf: 40.0, PhiWeight: 0.1, WHalf: 10.0,
		Xi: 1.2, Zeta: 3.5, Gamma: 0.2, Omega: 0.4,
		DeltaPhiMax: 10.0, Mu: 0.25,
	}
}

// ParamNames lists the parameter names in declaration order.
var ParamNames = []string{
	"w_birth", "sigma_birth", "beta", "eta", "F", "phi_age", "a_half",
	"phi_weight", "w_half", "xi", "zeta", "gamma", "omega", "DeltaPhiMax", "mu",
}

// Fields maps each parameter name to the field that stores it.
func (p *Params) Fields() map[string]*float64 {
	return map[string]*float64{
		"w_birth":     &p.WBirth,
		"sigma_birth": &p.SigmaBirth,
		"beta":        &p.Beta,
		"eta":         &p.Eta,
		"F":           &p.F,
		"phi_age":     &p.PhiAge,
		"a_half":      &p.AHalf,
		"phi_weight":  &p.PhiWeight,
		"w_half":      &p.WHalf,
		"xi":          &p.Xi,
		"zeta":        &p.Zeta,
		"gamma":       &p.Gamma,
		"omega":       &p.Omega,
		"DeltaPhiMax": &p.DeltaPhiMax,
		"mu":          &p.Mu,
	}
}

// Validate checks every parameter against its allowed range.
func (p *Params) Validate() error {
	fields := p.Fields()
	for _, name := range ParamNames {
		v := *fields[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %v", name, v)
		}
		if v < 0 {
			return fmt.Errorf("%s must be >= 0, got %v", name, v)
		}
	}
	if p.Eta > 1 {
		return fmt.Errorf("eta must be in [0, 1], got %v", p.Eta)
	}
	if p.DeltaPhiMax <= 0 {
		return fmt.Errorf("DeltaPhiMax must be > 0, got %v", p.DeltaPhiMax)
	}
	return nil
}

// BirthWeightThreshold is the weight below which an animal cannot give birth.
func (p *Params) BirthWeightThreshold() float64 {
	return p.Zeta * (p.WBirth + p.SigmaBirth)
}
