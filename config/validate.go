package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/pthm-cable/biosim/fauna"
	"github.com/pthm-cable/biosim/landscape"
)

// ErrInvalid matches every configuration error via errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Error reports a bad configuration value.
type Error struct {
	Field  string // Dotted path of the offending value
	Reason string
	Err    error // Underlying cause, if any
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }
func (e *Error) Unwrap() error        { return e.Err }

// Invalid builds an *Error for field.
func Invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Wrap turns err into an *Error for field, keeping err as the cause.
func Wrap(field string, err error) *Error {
	return &Error{Field: field, Reason: err.Error(), Err: err}
}

// Validate checks every section that can be checked without the island.
// Locations are checked against the map when the simulation is built.
func (c *Config) Validate() error {
	if c.Years < 0 {
		return Invalid("years", "must be >= 0, got %d", c.Years)
	}
	if c.Island.Random.Rows < 0 || c.Island.Random.Cols < 0 {
		return Invalid("island.random", "dimensions must be >= 0")
	}
	if r := c.Island.Random; (r.Rows > 0) != (r.Cols > 0) {
		return Invalid("island.random", "rows and cols must both be set")
	}
	if r := c.Island.Random; r.Rows > 0 && (r.Rows < 3 || r.Cols < 3) {
		return Invalid("island.random", "island must be at least 3x3, got %dx%d", r.Rows, r.Cols)
	}
	for _, s := range fauna.AllSpecies {
		if err := c.Species.Params(s).Validate(); err != nil {
			return Wrap("species."+strings.ToLower(s.String()), err)
		}
	}
	table := c.Landscape.Table()
	if err := table.Validate(); err != nil {
		return Wrap("landscape", err)
	}
	if err := ValidatePlacements("population", c.Population); err != nil {
		return err
	}
	for i, in := range c.Introductions {
		field := fmt.Sprintf("introductions[%d]", i)
		if in.Year < 0 {
			return Invalid(field+".year", "must be >= 0, got %d", in.Year)
		}
		if err := ValidatePlacements(field+".placements", in.Placements); err != nil {
			return err
		}
	}
	if c.Telemetry.BookmarkHistorySize < 0 || c.Telemetry.PerfWindow < 0 {
		return Invalid("telemetry", "window sizes must be >= 0")
	}
	return nil
}

// ValidatePlacements checks species names, ages, weights and counts.
func ValidatePlacements(field string, ps []Placement) error {
	for i, p := range ps {
		for j, a := range p.Pop {
			f := fmt.Sprintf("%s[%d].pop[%d]", field, i, j)
			if _, err := SpeciesByName(f+".species", a.Species); err != nil {
				return err
			}
			if a.Age < 0 {
				return Invalid(f+".age", "must be >= 0, got %d", a.Age)
			}
			if a.Weight != nil && (!(*a.Weight > 0) || math.IsInf(*a.Weight, 0)) {
				return Invalid(f+".weight", "must be > 0, got %v", *a.Weight)
			}
			if a.Count < 0 {
				return Invalid(f+".count", "must be >= 0, got %d", a.Count)
			}
		}
	}
	return nil
}

// SpeciesByName resolves a species name, suggesting the closest match when
// the name is unknown. field names the value in the returned error.
func SpeciesByName(field, name string) (fauna.Species, error) {
	s, err := fauna.ParseSpecies(name)
	if err != nil {
		names := make([]string, len(fauna.AllSpecies))
		for i, sp := range fauna.AllSpecies {
			names[i] = sp.String()
		}
		return 0, Invalid(field, "%v%s", err, didYouMean(name, names))
	}
	return s, nil
}

// TerrainByCode resolves a single-letter terrain code such as "L".
func TerrainByCode(field, code string) (landscape.Terrain, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 1 {
		return 0, Invalid(field, "terrain code must be one of W, H, L, D, got %q", code)
	}
	t, err := landscape.TerrainFromCode(c[0])
	if err != nil {
		return 0, Wrap(field, err)
	}
	return t, nil
}

// ApplySpeciesOverrides sets the named parameters of p. Nothing changes
// unless every name is known and the result is valid.
func ApplySpeciesOverrides(p *fauna.Params, overrides map[string]float64) error {
	next := *p
	if err := applyFields(next.Fields(), fauna.ParamNames, overrides); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return Wrap("", err)
	}
	*p = next
	return nil
}

// ApplyLandscapeOverrides sets the named parameters of p with the same
// all-or-nothing rule as ApplySpeciesOverrides.
func ApplyLandscapeOverrides(t landscape.Terrain, p *landscape.Params, overrides map[string]float64) error {
	next := *p
	if err := applyFields(next.Fields(), landscape.ParamNames, overrides); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return Wrap("", err)
	}
	if t == landscape.Water && next.FMax != 0 {
		return Invalid("f_max", "water cannot grow fodder")
	}
	*p = next
	return nil
}

func applyFields(fields map[string]*float64, names []string, overrides map[string]float64) error {
	// Sorted so the reported error does not depend on map order.
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		dst, ok := fields[k]
		if !ok {
			return Invalid(k, "unknown parameter%s", didYouMean(k, names))
		}
		*dst = overrides[k]
	}
	return nil
}

// didYouMean suggests the closest candidate to name, or returns "".
func didYouMean(name string, candidates []string) string {
	best := ""
	bestDist := levenshteinLimit(len(name)) + 1
	lower := strings.ToLower(name)
	for _, c := range candidates {
		dist := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if dist < bestDist {
			best, bestDist = c, dist
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
