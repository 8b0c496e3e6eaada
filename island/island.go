// Package island holds the grid of landscape cells and runs the yearly cycle
// over it.
package island

import (
	"fmt"
	"iter"

	"github.com/pthm-cable/biosim/fauna"
	"github.com/pthm-cable/biosim/geography"
	"github.com/pthm-cable/biosim/landscape"
)

// Loc is a 1-based (row, column) position, matching the map text where the
// top-left character is (1, 1).
type Loc struct {
	Row, Col int
}

func (l Loc) String() string {
	return fmt.Sprintf("(%d, %d)", l.Row, l.Col)
}

// Island is a rectangular grid of cells with 4-neighbour adjacency.
type Island struct {
	rows, cols int
	cells      []*landscape.Cell
	table      landscape.Table
}

// New builds an island from a map. The map must be non-empty and surrounded
// by water. The island keeps its own copy of the terrain parameters.
func New(m *geography.Map, params landscape.Table) (*Island, error) {
	if m == nil || m.Rows() == 0 || m.Cols() == 0 {
		return nil, fmt.Errorf("map is empty")
	}
	if !m.BorderIsWater() {
		return nil, fmt.Errorf("map border must be water")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("landscape parameters: %w", err)
	}

	isl := &Island{
		rows:  m.Rows(),
		cols:  m.Cols(),
		cells: make([]*landscape.Cell, m.Rows()*m.Cols()),
		table: params,
	}
	for r := range isl.rows {
		for c := range isl.cols {
			t := m.At(r, c)
			isl.cells[r*isl.cols+c] = landscape.NewCell(t, &isl.table[t])
		}
	}
	return isl, nil
}

// Shape returns the number of rows and columns.
func (isl *Island) Shape() (rows, cols int) {
	return isl.rows, isl.cols
}

// InBounds reports whether loc lies on the grid.
func (isl *Island) InBounds(loc Loc) bool {
	return loc.Row >= 1 && loc.Row <= isl.rows && loc.Col >= 1 && loc.Col <= isl.cols
}

// Cell returns the cell at loc, or nil when loc is off the grid.
func (isl *Island) Cell(loc Loc) *landscape.Cell {
	if !isl.InBounds(loc) {
		return nil
	}
	return isl.cells[(loc.Row-1)*isl.cols+(loc.Col-1)]
}

// Cells iterates over every cell in row-major order.
func (isl *Island) Cells() iter.Seq2[Loc, *landscape.Cell] {
	return func(yield func(Loc, *landscape.Cell) bool) {
		for i, c := range isl.cells {
			loc := Loc{Row: i/isl.cols + 1, Col: i%isl.cols + 1}
			if !yield(loc, c) {
				return
			}
		}
	}
}

// Place adds animals to the cell at loc.
func (isl *Island) Place(loc Loc, animals ...*fauna.Animal) error {
	c := isl.Cell(loc)
	if c == nil {
		return fmt.Errorf("location %s is outside the %dx%d island", loc, isl.rows, isl.cols)
	}
	if err := c.Add(animals...); err != nil {
		return fmt.Errorf("location %s: %w", loc, err)
	}
	return nil
}

// CheckPlacement reports whether animals could be placed at loc.
func (isl *Island) CheckPlacement(loc Loc) error {
	c := isl.Cell(loc)
	if c == nil {
		return fmt.Errorf("location %s is outside the %dx%d island", loc, isl.rows, isl.cols)
	}
	if !c.Passable() {
		return fmt.Errorf("location %s is %s", loc, c.Terrain())
	}
	return nil
}

// Counts returns the number of herbivores and carnivores on the island.
func (isl *Island) Counts() (herb, carn int) {
	for _, c := range isl.cells {
		herb += c.NumHerbivores()
		carn += c.NumCarnivores()
	}
	return herb, carn
}

// TotalFodder sums the fodder on every cell.
func (isl *Island) TotalFodder() float64 {
	total := 0.0
	for _, c := range isl.cells {
		total += c.Fodder()
	}
	return total
}

// TerrainParams returns the current parameters of a terrain.
func (isl *Island) TerrainParams(t landscape.Terrain) landscape.Params {
	return isl.table[t]
}

// SetTerrainParams replaces the parameters of a terrain. Every cell of that
// terrain sees the change; fodder above the new ceiling is cut back.
func (isl *Island) SetTerrainParams(t landscape.Terrain, p landscape.Params) error {
	next := isl.table
	next[t] = p
	if err := next.Validate(); err != nil {
		return err
	}
	isl.table[t] = p
	for _, c := range isl.cells {
		if c.Terrain() == t {
			c.ClampFodder()
		}
	}
	return nil
}

// RefreshFitness recomputes the fitness of every animal, for use after the
// species parameters change.
func (isl *Island) RefreshFitness() {
	for _, c := range isl.cells {
		c.RefreshFitness()
	}
}

// neighbours returns the passable 4-neighbours of the cell at index i.
func (isl *Island) neighbours(i int, buf []int) []int {
	buf = buf[:0]
	r, c := i/isl.cols, i%isl.cols
	try := func(rr, cc int) {
		if rr < 0 || rr >= isl.rows || cc < 0 || cc >= isl.cols {
			return
		}
		j := rr*isl.cols + cc
		if isl.cells[j].Passable() {
			buf = append(buf, j)
		}
	}
	try(r-1, c)
	try(r+1, c)
	try(r, c-1)
	try(r, c+1)
	return buf
}
