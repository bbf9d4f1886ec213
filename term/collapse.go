package term

// Patch is the terminal fragment: a grid positioned in frame cells.
type Patch struct {
	X, Y int
	Grid *Grid
}

// Collapse paints patches bottom to top into a width x height frame.
//
// Transparent cells let what is beneath show through. An opaque cell without
// a background tag keeps the background already painted at its position; one
// with a background tag replaces it. Border cells landing on border cells
// merge into junctions; any other opaque cell replaces what is beneath.
// Wide glyphs that end up partly covered are replaced by spaces so every row
// stays column-aligned.
func Collapse(width, height int, patches []Patch) *Grid {
	out := NewGrid(width, height)
	for _, p := range patches {
		if p.Grid == nil {
			continue
		}
		for sy := 0; sy < p.Grid.height; sy++ {
			y := p.Y + sy
			if y < 0 || y >= height {
				continue
			}
			for sx, c := range p.Grid.Row(sy) {
				x := p.X + sx
				if x < 0 || x >= width || c.Transparent {
					continue
				}
				under := out.cells[out.index(x, y)]
				if !c.Style.BG.IsSet() && !under.Transparent {
					c.Style.BG = under.Style.BG
				}
				out.Set(x, y, c)
			}
		}
	}
	out.repair()
	return out
}
