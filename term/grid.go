package term

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Grid is a 2D grid of cells. A new grid is fully transparent.
type Grid struct {
	cells  []Cell
	width  int
	height int
}

// NewGrid creates a transparent grid with the given dimensions.
func NewGrid(width, height int) *Grid {
	width, height = max(width, 0), max(height, 0)
	cells := make([]Cell, width*height)
	for i := range cells {
		cells[i] = Clear
	}
	return &Grid{cells: cells, width: width, height: height}
}

// Width returns the grid width.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height.
func (g *Grid) Height() int { return g.height }

// InBounds returns true if the given coordinates are within the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

func (g *Grid) index(x, y int) int {
	return y*g.width + x
}

// Get returns the cell at the given coordinates, or a transparent cell when
// out of bounds.
func (g *Grid) Get(x, y int) Cell {
	if !g.InBounds(x, y) {
		return Clear
	}
	return g.cells[g.index(x, y)]
}

// Set sets the cell at the given coordinates. Does nothing if out of bounds.
// A border cell drawn over another border cell merges into a junction.
func (g *Grid) Set(x, y int, c Cell) {
	if !g.InBounds(x, y) {
		return
	}
	idx := g.index(x, y)
	if existing := g.cells[idx]; c.Border && existing.Border {
		if merged, ok := mergeBorders(existing.Glyph, c.Glyph); ok {
			c.Glyph = merged
		}
	}
	g.cells[idx] = c
}

// Row returns the cells of row y. The slice aliases the grid.
func (g *Grid) Row(y int) []Cell {
	if y < 0 || y >= g.height {
		return nil
	}
	return g.cells[y*g.width : (y+1)*g.width]
}

// Fill fills the entire grid with the given cell.
func (g *Grid) Fill(c Cell) {
	for i := range g.cells {
		g.cells[i] = c
	}
}

// FillRect fills a rectangular region with the given cell.
func (g *Grid) FillRect(x, y, width, height int, c Cell) {
	for dy := 0; dy < height; dy++ {
		for dx := 0; dx < width; dx++ {
			g.Set(x+dx, y+dy, c)
		}
	}
}

// WriteString writes s at the given coordinates, one grapheme cluster per
// cell. Wide clusters are followed by continuation cells; a cluster that
// would straddle the right edge is dropped. Returns the number of columns
// written.
func (g *Grid) WriteString(x, y int, s string, style Style) int {
	written := 0
	state := -1
	for len(s) > 0 {
		var cluster string
		cluster, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		w := runewidth.StringWidth(cluster)
		if w == 0 {
			continue
		}
		if x+w > g.width || !g.InBounds(x, y) {
			break
		}
		g.Set(x, y, NewCell(cluster, style))
		for i := 1; i < w; i++ {
			g.Set(x+i, y, Cell{Cont: true, Style: style})
		}
		x += w
		written += w
	}
	return written
}

// HLine draws a horizontal line of the given glyph.
func (g *Grid) HLine(x, y, length int, glyph string, style Style) {
	for i := 0; i < length; i++ {
		g.Set(x+i, y, NewCell(glyph, style))
	}
}

// VLine draws a vertical line of the given glyph.
func (g *Grid) VLine(x, y, length int, glyph string, style Style) {
	for i := 0; i < length; i++ {
		g.Set(x, y+i, NewCell(glyph, style))
	}
}

// repair blanks wide glyphs that lost a continuation cell and continuation
// cells that lost their glyph, so every row stays column-aligned.
func (g *Grid) repair() {
	for y := 0; y < g.height; y++ {
		row := g.Row(y)
		for x := 0; x < len(row); {
			c := row[x]
			switch {
			case c.Cont:
				row[x] = Cell{Glyph: " ", Style: c.Style}
				x++
			case c.Transparent || c.Reserved || c.Raw != "":
				x++
			default:
				w := runewidth.StringWidth(c.Glyph)
				if w <= 1 {
					x++
					continue
				}
				intact := x+w <= len(row)
				for i := 1; intact && i < w; i++ {
					intact = row[x+i].Cont
				}
				if !intact {
					row[x] = Cell{Glyph: " ", Style: c.Style}
					x++
					continue
				}
				x += w
			}
		}
	}
}

// Line returns the glyphs of row y with trailing spaces removed.
func (g *Grid) Line(y int) string {
	var b strings.Builder
	for _, c := range g.Row(y) {
		switch {
		case c.Cont:
		case c.Transparent, c.Reserved, c.Glyph == "":
			b.WriteByte(' ')
		default:
			b.WriteString(c.Glyph)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// String returns the grid contents with trailing spaces and trailing empty
// lines removed (for testing/debugging).
func (g *Grid) String() string {
	lines := make([]string, g.height)
	for y := range lines {
		lines[y] = g.Line(y)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// Resize resizes the grid to new dimensions. Existing content is preserved
// where it fits.
func (g *Grid) Resize(width, height int) {
	if width == g.width && height == g.height {
		return
	}
	n := NewGrid(width, height)
	for y := 0; y < min(height, g.height); y++ {
		copy(n.Row(y), g.Row(y)[:min(width, g.width)])
	}
	n.repair()
	*g = *n
}
