package term

import "github.com/gdamore/tcell/v2"

// TcellSink presents frames through a tcell screen, for programs that
// already own one.
type TcellSink struct {
	Screen tcell.Screen
}

// Present copies g into the screen and shows it. Inline image payloads are
// not supported by tcell and their area is left blank.
func (t TcellSink) Present(g *Grid) error {
	w, h := t.Screen.Size()
	for y := 0; y < min(h, g.Height()); y++ {
		row := g.Row(y)
		for x := 0; x < min(w, len(row)); x++ {
			c := row[x]
			switch {
			case c.Cont:
				continue
			case c.Transparent, c.Reserved, c.Raw != "", c.Glyph == "":
				t.Screen.SetContent(x, y, ' ', nil, tcell.StyleDefault)
				continue
			}
			runes := []rune(c.Glyph)
			t.Screen.SetContent(x, y, runes[0], runes[1:], tcellStyle(c.Style))
		}
	}
	t.Screen.Show()
	return nil
}

func tcellColor(c Color) tcell.Color {
	switch c.Mode {
	case Color16, Color256:
		return tcell.PaletteColor(int(c.Index))
	case ColorRGB:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	default:
		return tcell.ColorDefault
	}
}

func tcellStyle(s Style) tcell.Style {
	st := tcell.StyleDefault.
		Foreground(tcellColor(s.FG)).
		Background(tcellColor(s.BG)).
		Bold(s.Attr.Has(AttrBold)).
		Dim(s.Attr.Has(AttrDim)).
		Italic(s.Attr.Has(AttrItalic)).
		Blink(s.Attr.Has(AttrBlink)).
		Reverse(s.Attr.Has(AttrInverse)).
		StrikeThrough(s.Attr.Has(AttrStrikethrough))
	if s.Attr.Has(AttrUnderline) {
		st = st.Underline(true)
	}
	return st
}
