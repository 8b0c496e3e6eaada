package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// YearStats is the history record of one simulated year.
// The csv tags drive history.csv and the db tags drive the SQLite store.
type YearStats struct {
	Seed int64 `csv:"seed" db:"seed"`
	Year int   `csv:"year" db:"year"`

	// Population counts at year end
	Herbivores int `csv:"herbivores" db:"herbivores"`
	Carnivores int `csv:"carnivores" db:"carnivores"`
	Total      int `csv:"total" db:"total"`

	// Events during the year
	HerbBirths     int `csv:"herb_births" db:"herb_births"`
	CarnBirths     int `csv:"carn_births" db:"carn_births"`
	HerbDeaths     int `csv:"herb_deaths" db:"herb_deaths"`
	CarnDeaths     int `csv:"carn_deaths" db:"carn_deaths"`
	Kills          int `csv:"kills" db:"kills"`
	HerbMigrations int `csv:"herb_migrations" db:"herb_migrations"`
	CarnMigrations int `csv:"carn_migrations" db:"carn_migrations"`
	HerbIntroduced int `csv:"herb_introduced" db:"herb_introduced"` // Added by introductions before the year ran
	CarnIntroduced int `csv:"carn_introduced" db:"carn_introduced"`

	// Fodder
	FodderEaten float64 `csv:"fodder_eaten" db:"fodder_eaten"`
	TotalFodder float64 `csv:"total_fodder" db:"total_fodder"` // Left standing at year end

	// Weight and fitness distribution (sampled at year end)
	HerbWeightMean  float64 `csv:"herb_weight_mean" db:"herb_weight_mean"`
	HerbWeightStd   float64 `csv:"herb_weight_std" db:"herb_weight_std"`
	HerbWeightP50   float64 `csv:"herb_weight_p50" db:"herb_weight_p50"`
	HerbFitnessMean float64 `csv:"herb_fitness_mean" db:"herb_fitness_mean"`

	CarnWeightMean  float64 `csv:"carn_weight_mean" db:"carn_weight_mean"`
	CarnWeightStd   float64 `csv:"carn_weight_std" db:"carn_weight_std"`
	CarnWeightP50   float64 `csv:"carn_weight_p50" db:"carn_weight_p50"`
	CarnFitnessMean float64 `csv:"carn_fitness_mean" db:"carn_fitness_mean"`
}

// Distribution summarises a sample of values.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// ComputeDistribution returns the mean, sample standard deviation and
// percentiles of values. An empty sample yields zeros and a single value has
// zero spread.
func ComputeDistribution(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if n < 2 || math.IsNaN(std) {
		std = 0
	}

	return Distribution{
		Mean: mean,
		Std:  std,
		P10:  stat.Quantile(0.10, stat.Empirical, sorted, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90:  stat.Quantile(0.90, stat.Empirical, sorted, nil),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s YearStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("seed", s.Seed),
		slog.Int("year", s.Year),
		slog.Int("herbivores", s.Herbivores),
		slog.Int("carnivores", s.Carnivores),
		slog.Int("total", s.Total),
		slog.Int("herb_births", s.HerbBirths),
		slog.Int("carn_births", s.CarnBirths),
		slog.Int("herb_deaths", s.HerbDeaths),
		slog.Int("carn_deaths", s.CarnDeaths),
		slog.Int("kills", s.Kills),
		slog.Int("herb_migrations", s.HerbMigrations),
		slog.Int("carn_migrations", s.CarnMigrations),
		slog.Int("herb_introduced", s.HerbIntroduced),
		slog.Int("carn_introduced", s.CarnIntroduced),
		slog.Float64("fodder_eaten", s.FodderEaten),
		slog.Float64("total_fodder", s.TotalFodder),
		slog.Float64("herb_weight_mean", s.HerbWeightMean),
		slog.Float64("herb_weight_std", s.HerbWeightStd),
		slog.Float64("herb_weight_p50", s.HerbWeightP50),
		slog.Float64("herb_fitness_mean", s.HerbFitnessMean),
		slog.Float64("carn_weight_mean", s.CarnWeightMean),
		slog.Float64("carn_weight_std", s.CarnWeightStd),
		slog.Float64("carn_weight_p50", s.CarnWeightP50),
		slog.Float64("carn_fitness_mean", s.CarnFitnessMean),
	)
}

// LogStats logs the year stats on logger, or the default logger when nil.
func (s YearStats) LogStats(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("stats",
		"year", s.Year,
		"herbivores", s.Herbivores,
		"carnivores", s.Carnivores,
		"herb_births", s.HerbBirths,
		"carn_births", s.CarnBirths,
		"herb_deaths", s.HerbDeaths,
		"carn_deaths", s.CarnDeaths,
		"kills", s.Kills,
		"herb_migrations", s.HerbMigrations,
		"carn_migrations", s.CarnMigrations,
		"herb_introduced", s.HerbIntroduced,
		"carn_introduced", s.CarnIntroduced,
		"total_fodder", s.TotalFodder,
		"herb_weight_mean", s.HerbWeightMean,
		"carn_weight_mean", s.CarnWeightMean,
		"herb_fitness_mean", s.HerbFitnessMean,
		"carn_fitness_mean", s.CarnFitnessMean,
	)
}
