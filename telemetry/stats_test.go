package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/biosim/fauna"
)

func TestComputeDistribution(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		wantMean float64
		wantStd  float64
		wantP50  float64
	}{
		{"empty", nil, 0, 0, 0},
		{"single", []float64{5}, 5, 0, 5},
		{"odd", []float64{5, 1, 3, 2, 4}, 3, math.Sqrt(2.5), 3},
		{"constant", []float64{2, 2, 2, 2}, 2, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ComputeDistribution(tt.values)
			if math.Abs(d.Mean-tt.wantMean) > 1e-9 {
				t.Errorf("mean = %v, want %v", d.Mean, tt.wantMean)
			}
			if math.Abs(d.Std-tt.wantStd) > 1e-9 {
				t.Errorf("std = %v, want %v", d.Std, tt.wantStd)
			}
			if math.Abs(d.P50-tt.wantP50) > 1e-9 {
				t.Errorf("p50 = %v, want %v", d.P50, tt.wantP50)
			}
			if d.P10 > d.P50 || d.P50 > d.P90 {
				t.Errorf("percentiles out of order: %v %v %v", d.P10, d.P50, d.P90)
			}
		})
	}
}

func TestComputeDistributionLeavesInput(t *testing.T) {
	values := []float64{3, 1, 2}
	ComputeDistribution(values)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input reordered: %v", values)
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(42)
	c.RecordBirths(fauna.Herbivore, 3)
	c.RecordBirths(fauna.Carnivore, 1)
	c.RecordDeaths(fauna.Herbivore, 2)
	c.RecordKills(4)
	c.RecordMigrations(fauna.Carnivore, 5)
	c.RecordEaten(12.5)
	c.RecordIntroduced(fauna.Carnivore, 6)

	herb := Sample{Weights: []float64{10, 20}, Fitness: []float64{0.5, 0.7}}
	carn := Sample{Weights: []float64{30}, Fitness: []float64{0.9}}
	s := c.Flush(7, herb, carn, 800)

	if s.Seed != 42 || s.Year != 7 {
		t.Errorf("seed/year = %d/%d, want 42/7", s.Seed, s.Year)
	}
	if s.Herbivores != 2 || s.Carnivores != 1 || s.Total != 3 {
		t.Errorf("counts = %d/%d/%d, want 2/1/3", s.Herbivores, s.Carnivores, s.Total)
	}
	if s.HerbBirths != 3 || s.CarnBirths != 1 || s.HerbDeaths != 2 || s.Kills != 4 || s.CarnMigrations != 5 || s.CarnIntroduced != 6 {
		t.Errorf("events not carried: %+v", s)
	}
	if math.Abs(s.HerbWeightMean-15) > 1e-9 || math.Abs(s.HerbFitnessMean-0.6) > 1e-9 {
		t.Errorf("herbivore means = %v/%v, want 15/0.6", s.HerbWeightMean, s.HerbFitnessMean)
	}
	if s.CarnWeightStd != 0 {
		t.Errorf("single-sample std = %v, want 0", s.CarnWeightStd)
	}

	next := c.Flush(8, Sample{}, Sample{}, 0)
	if next.HerbBirths != 0 || next.Kills != 0 || next.FodderEaten != 0 || next.CarnMigrations != 0 || next.CarnIntroduced != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}
