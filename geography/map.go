// Package geography parses and generates island maps.
// A map is a rectangle of single-character terrain codes (W, H, L, D), one row
// per line.
package geography

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/biosim/landscape"
)

// Map is a rectangular grid of terrains. Indices are 0-based.
type Map struct {
	rows, cols int
	cells      []landscape.Terrain
}

// NewMap creates a map filled with water.
func NewMap(rows, cols int) *Map {
	return &Map{rows: rows, cols: cols, cells: make([]landscape.Terrain, rows*cols)}
}

func (m *Map) Rows() int { return m.rows }
func (m *Map) Cols() int { return m.cols }

// At returns the terrain at row r, column c.
func (m *Map) At(r, c int) landscape.Terrain {
	return m.cells[r*m.cols+c]
}

// Set changes the terrain at row r, column c.
func (m *Map) Set(r, c int, t landscape.Terrain) {
	m.cells[r*m.cols+c] = t
}

// String renders the map back into its text form.
func (m *Map) String() string {
	var b strings.Builder
	for r := range m.rows {
		if r > 0 {
			b.WriteByte('\n')
		}
		for c := range m.cols {
			b.WriteByte(m.At(r, c).Code())
		}
	}
	return b.String()
}

// Counts returns how many cells of each terrain the map holds.
func (m *Map) Counts() map[landscape.Terrain]int {
	counts := make(map[landscape.Terrain]int)
	for _, t := range m.cells {
		counts[t]++
	}
	return counts
}

// BorderIsWater reports whether every edge cell is water.
func (m *Map) BorderIsWater() bool {
	for r := range m.rows {
		for c := range m.cols {
			edge := r == 0 || c == 0 || r == m.rows-1 || c == m.cols-1
			if edge && m.At(r, c) != landscape.Water {
				return false
			}
		}
	}
	return true
}

// Parse reads a map from text. Common leading indentation and surrounding
// blank lines are ignored, so maps can be written as indented raw strings.
func Parse(text string) (*Map, error) {
	lines := dedent(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("map is empty")
	}
	cols := len(lines[0])
	m := NewMap(len(lines), cols)
	for r, line := range lines {
		if len(line) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", r+1, len(line), cols)
		}
		for c := range len(line) {
			t, err := landscape.TerrainFromCode(line[c])
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", r+1, c+1, err)
			}
			m.Set(r, c, t)
		}
	}
	return m, nil
}

// MustParse is Parse for maps known to be valid. It panics on error.
func MustParse(text string) *Map {
	m, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return m
}

// dedent splits text into lines, drops blank leading and trailing lines,
// strips trailing whitespace and removes the indentation shared by all lines.
func dedent(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var lines []string
	for _, l := range raw {
		lines = append(lines, strings.TrimRight(l, " \t"))
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	indent := -1
	for _, l := range lines {
		if l == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, l := range lines {
		if len(l) >= indent && indent > 0 {
			lines[i] = l[indent:]
		}
	}
	return lines
}
