package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/biosim/config"
	"github.com/pthm-cable/biosim/telemetry"
)

func TestParamVectorDefaultsMatchConfig(t *testing.T) {
	pv := NewParamVector()
	got := pv.ExtractFromConfig(config.Default())
	for i, spec := range pv.Specs {
		if got[i] != spec.Default {
			t.Errorf("%s: config has %v, spec default %v", spec.Name, got[i], spec.Default)
		}
		if spec.Default < spec.Min || spec.Default > spec.Max {
			t.Errorf("%s: default %v outside [%v, %v]", spec.Name, spec.Default, spec.Min, spec.Max)
		}
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-12 {
			t.Errorf("%s: %v -> %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}
}

func TestApplyToConfigClamps(t *testing.T) {
	pv := NewParamVector()
	values := pv.DefaultVector()
	values[0] = 1e6 // carn_F far above its bound

	cfg := config.Default()
	if err := pv.ApplyToConfig(cfg, values); err != nil {
		t.Fatalf("ApplyToConfig: %v", err)
	}
	if got, want := cfg.Species.Carnivore.F, pv.Specs[0].Max; got != want {
		t.Errorf("carnivore F = %v, want clamped %v", got, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config invalid after apply: %v", err)
	}
}

func TestComputeQuality(t *testing.T) {
	steady := make([]telemetry.YearStats, 40)
	for i := range steady {
		steady[i] = telemetry.YearStats{Year: i + 1, Herbivores: 100, Carnivores: 20, Kills: 20}
	}

	tests := []struct {
		name    string
		history []telemetry.YearStats
		min     float64
		max     float64
	}{
		{"empty", nil, 0, 0},
		{"no carnivores", []telemetry.YearStats{{Herbivores: 100}, {Herbivores: 90}}, 0, 0},
		// Target ratio, zero variation, one kill per carnivore.
		{"steady at target", steady, 0.35 + 0.35 + 0.30*(1-math.Exp(-1)) - 1e-9, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := computeQuality(tt.history)
			if q < tt.min || q > tt.max {
				t.Errorf("quality = %v, want in [%v, %v]", q, tt.min, tt.max)
			}
		})
	}
}

func TestBelowCount(t *testing.T) {
	streak := 0
	for _, pop := range []int{1, 2, 0} {
		streak = belowCount(pop, streak)
	}
	if streak != 3 {
		t.Errorf("streak = %d, want 3", streak)
	}
	if belowCount(minViablePop, streak) != 0 {
		t.Error("streak not reset at the viable population")
	}
}

func TestEvaluateShortRun(t *testing.T) {
	cfg := config.Default()
	cfg.Population = []config.Placement{{
		Loc: [2]int{6, 8},
		Pop: []config.AnimalSpec{{Species: "Herbivore", Age: 5, Count: 50}},
	}}
	cfg.Introductions = []config.Introduction{{
		Year: 2,
		Placements: []config.Placement{{
			Loc: [2]int{6, 8},
			Pop: []config.AnimalSpec{{Species: "Carnivore", Age: 5, Count: 10}},
		}},
	}}

	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, 10, []int64{1, 2}, cfg)
	fitness := fe.Evaluate(pv.DefaultVector())
	if fitness > 0 || math.IsNaN(fitness) {
		t.Errorf("fitness = %v, want <= 0", fitness)
	}
	if h := fe.BestHistory(); len(h) == 0 || len(h) > 10 {
		t.Errorf("best history has %d years, want 1..10", len(h))
	}
}
