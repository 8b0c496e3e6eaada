// Package fauna defines the animals living on the island and the biology
// that drives them from year to year.
package fauna

import (
	"fmt"
	"strings"
)

// Species identifies which variant an animal is.
type Species uint8

const (
	Herbivore Species = iota
	Carnivore
)

// AllSpecies lists every species in a stable order.
var AllSpecies = [...]Species{Herbivore, Carnivore}

func (s Species) String() string {
	switch s {
	case Herbivore:
		return "Herbivore"
	case Carnivore:
		return "Carnivore"
	default:
		return fmt.Sprintf("Species(%d)", uint8(s))
	}
}

// ParseSpecies maps a species name to its tag. Matching is case-insensitive.
func ParseSpecies(name string) (Species, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "herbivore":
		return Herbivore, nil
	case "carnivore":
		return Carnivore, nil
	}
	return 0, fmt.Errorf("unknown species %q", name)
}
