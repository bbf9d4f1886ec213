package term

// Cell is a single rendering unit of the terminal grid.
//
// A cell is either transparent, letting whatever is beneath show through, or
// it paints a glyph with optional color tags. A glyph wider than one column
// occupies its own cell followed by width-1 continuation cells, so column
// indices stay aligned with cursor positions.
type Cell struct {
	Glyph string
	Style Style

	Transparent bool
	// Border marks a border edge. Only border cells merge into junctions.
	Border bool
	// Cont marks the placeholder columns after a wide glyph.
	Cont bool
	// Raw is an escape payload, such as an inline image, written verbatim at
	// this cell. The encoder skips Reserved cells, which the payload covers.
	Raw      string
	Reserved bool
}

// Blank is an opaque space without color tags.
var Blank = Cell{Glyph: " "}

// Clear is the transparency marker.
var Clear = Cell{Transparent: true}

// NewCell creates a cell with the given glyph and style.
func NewCell(glyph string, style Style) Cell {
	return Cell{Glyph: glyph, Style: style}
}

// Equal returns true if two cells are equal.
func (c Cell) Equal(other Cell) bool {
	return c == other
}
