package term

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/kungfusheep/dualview/view"
	"github.com/mattn/go-runewidth"
)

// borderSet returns the glyphs for a border style.
func borderSet(s view.BorderStyle) lipgloss.Border {
	switch s {
	case view.BorderRounded:
		return lipgloss.RoundedBorder()
	case view.BorderDouble:
		return lipgloss.DoubleBorder()
	case view.BorderThick:
		return lipgloss.ThickBorder()
	case view.BorderHidden:
		return lipgloss.HiddenBorder()
	default:
		return lipgloss.NormalBorder()
	}
}

// DrawBorder draws a border around the given rectangle, with an optional
// title inset on the top edge. The interior is left untouched.
func (g *Grid) DrawBorder(x, y, width, height int, b lipgloss.Border, title string, style Style) {
	if width < 2 || height < 2 {
		return
	}

	edge := func(glyph string) Cell { return Cell{Glyph: glyph, Style: style, Border: true} }
	g.Set(x, y, edge(b.TopLeft))
	g.Set(x+width-1, y, edge(b.TopRight))
	g.Set(x, y+height-1, edge(b.BottomLeft))
	g.Set(x+width-1, y+height-1, edge(b.BottomRight))

	for i := 1; i < width-1; i++ {
		g.Set(x+i, y, edge(b.Top))
		g.Set(x+i, y+height-1, edge(b.Bottom))
	}
	for i := 1; i < height-1; i++ {
		g.Set(x, y+i, edge(b.Left))
		g.Set(x+width-1, y+i, edge(b.Right))
	}

	if title != "" && width > 4 {
		title = runewidth.Truncate(" "+title+" ", width-2, "…")
		g.WriteString(x+1, y, title, style)
	}
}

// Box drawing glyphs that merge into junctions.
const (
	boxHorizontal         = "─"
	boxVertical           = "│"
	boxTopLeft            = "┌"
	boxTopRight           = "┐"
	boxBottomLeft         = "└"
	boxBottomRight        = "┘"
	boxRoundedTopLeft     = "╭"
	boxRoundedTopRight    = "╮"
	boxRoundedBottomLeft  = "╰"
	boxRoundedBottomRight = "╯"
	boxTeeDown            = "┬"
	boxTeeUp              = "┴"
	boxTeeRight           = "├"
	boxTeeLeft            = "┤"
	boxCross              = "┼"
)

// borderEdges maps border glyphs to the edges they connect.
// Using bits: 1=top, 2=right, 4=bottom, 8=left
var borderEdges = map[string]uint8{
	boxHorizontal:  0b1010,
	boxVertical:    0b0101,
	boxTopLeft:     0b0110,
	boxTopRight:    0b1100,
	boxBottomLeft:  0b0011,
	boxBottomRight: 0b1001,
	boxTeeDown:     0b1110,
	boxTeeUp:       0b1011,
	boxTeeRight:    0b0111,
	boxTeeLeft:     0b1101,
	boxCross:       0b1111,

	boxRoundedTopLeft:     0b0110,
	boxRoundedTopRight:    0b1100,
	boxRoundedBottomLeft:  0b0011,
	boxRoundedBottomRight: 0b1001,
}

var edgesToBorder = map[uint8]string{
	0b1010: boxHorizontal,
	0b0101: boxVertical,
	0b0110: boxTopLeft,
	0b1100: boxTopRight,
	0b0011: boxBottomLeft,
	0b1001: boxBottomRight,
	0b1110: boxTeeDown,
	0b1011: boxTeeUp,
	0b0111: boxTeeRight,
	0b1101: boxTeeLeft,
	0b1111: boxCross,
}

// mergeBorders combines two border glyphs into one.
// Returns the merged glyph and true if both were border glyphs.
func mergeBorders(existing, next string) (string, bool) {
	existingEdges, ok1 := borderEdges[existing]
	nextEdges, ok2 := borderEdges[next]
	if !ok1 || !ok2 {
		return next, false
	}
	if merged, ok := edgesToBorder[existingEdges|nextEdges]; ok {
		return merged, true
	}
	return next, false
}
