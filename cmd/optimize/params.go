// Package main provides CMA-ES optimization for island simulation parameters.
package main

import (
	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/fauna"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string        // Column name in the log
	Species fauna.Species // Species the parameter belongs to
	Param   string        // Parameter name as used in config files
	Min     float64       // Lower bound
	Max     float64       // Upper bound
	Default float64       // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
// Defaults match config/defaults.yaml.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Carnivore hunting
			{Name: "carn_F", Species: fauna.Carnivore, Param: "F", Min: 10, Max: 100, Default: 50},
			{Name: "carn_beta", Species: fauna.Carnivore, Param: "beta", Min: 0.3, Max: 1.0, Default: 0.75},
			{Name: "carn_DeltaPhiMax", Species: fauna.Carnivore, Param: "DeltaPhiMax", Min: 2, Max: 20, Default: 10},
			// Carnivore life cycle
			{Name: "carn_eta", Species: fauna.Carnivore, Param: "eta", Min: 0.05, Max: 0.25, Default: 0.125},
			{Name: "carn_gamma", Species: fauna.Carnivore, Param: "gamma", Min: 0.1, Max: 1.0, Default: 0.8},
			{Name: "carn_omega", Species: fauna.Carnivore, Param: "omega", Min: 0.2, Max: 1.0, Default: 0.8},
			{Name: "carn_mu", Species: fauna.Carnivore, Param: "mu", Min: 0.0, Max: 1.0, Default: 0.4},
			{Name: "carn_phi_weight", Species: fauna.Carnivore, Param: "phi_weight", Min: 0.1, Max: 1.0, Default: 0.4},
			// Herbivore recovery
			{Name: "herb_gamma", Species: fauna.Herbivore, Param: "gamma", Min: 0.05, Max: 0.5, Default: 0.2},
			{Name: "herb_mu", Species: fauna.Herbivore, Param: "mu", Min: 0.0, Max: 1.0, Default: 0.25},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// Overrides groups clamped values by species, in the form the engine and
// config accept.
func (pv *ParamVector) Overrides(values []float64) map[fauna.Species]map[string]float64 {
	clamped := pv.Clamp(values)
	out := make(map[fauna.Species]map[string]float64)
	for i, spec := range pv.Specs {
		if out[spec.Species] == nil {
			out[spec.Species] = make(map[string]float64)
		}
		out[spec.Species][spec.Param] = clamped[i]
	}
	return out
}

// ApplyToConfig applies parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	for s, overrides := range pv.Overrides(values) {
		if err := config.ApplySpeciesOverrides(cfg.Species.Params(s), overrides); err != nil {
			return err
		}
	}
	return nil
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = *cfg.Species.Params(spec.Species).Fields()[spec.Param]
	}
	return v
}
