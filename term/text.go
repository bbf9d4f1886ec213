package term

import (
	"strings"

	"github.com/kungfusheep/dualview/view"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

type cluster struct {
	s string
	w int
}

// textLine is one laid out line and its display width.
type textLine struct {
	clusters []cluster
	width    int
}

func (l textLine) String() string {
	var b strings.Builder
	for _, c := range l.clusters {
		b.WriteString(c.s)
	}
	return b.String()
}

// layoutText splits content into lines. Hard breaks always apply; maxW < 0
// means unbounded. WrapNone clips at maxW, WrapChar breaks at any cluster
// and WrapWord breaks at spaces when it can.
func layoutText(content string, mode view.WrapMode, maxW int) []textLine {
	var out []textLine
	for _, para := range strings.Split(content, "\n") {
		cs := clusters(para)
		switch {
		case maxW < 0:
			out = append(out, lineOf(cs))
		case mode == view.WrapNone:
			out = append(out, clip(cs, maxW))
		case mode == view.WrapChar:
			out = append(out, wrapChars(cs, maxW)...)
		default:
			out = append(out, wrapWords(cs, maxW)...)
		}
	}
	return out
}

func clusters(s string) []cluster {
	var out []cluster
	state := -1
	for len(s) > 0 {
		var c string
		c, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		if w := runewidth.StringWidth(c); w > 0 {
			out = append(out, cluster{c, w})
		}
	}
	return out
}

func lineOf(cs []cluster) textLine {
	l := textLine{clusters: cs}
	for _, c := range cs {
		l.width += c.w
	}
	return l
}

func clip(cs []cluster, maxW int) textLine {
	w := 0
	for i, c := range cs {
		if w+c.w > maxW {
			return lineOf(cs[:i])
		}
		w += c.w
	}
	return lineOf(cs)
}

func wrapChars(cs []cluster, maxW int) []textLine {
	if len(cs) == 0 {
		return []textLine{{}}
	}
	var out []textLine
	start, w := 0, 0
	for i, c := range cs {
		if w+c.w > maxW && i > start {
			out = append(out, lineOf(cs[start:i]))
			start, w = i, 0
		}
		w += c.w
	}
	return append(out, clip(cs[start:], maxW))
}

func wrapWords(cs []cluster, maxW int) []textLine {
	if len(cs) == 0 {
		return []textLine{{}}
	}
	var out []textLine
	start, w, brk := 0, 0, -1
	for i := 0; i < len(cs); i++ {
		c := cs[i]
		if c.s == " " {
			brk = i
		}
		if w+c.w <= maxW {
			w += c.w
			continue
		}
		if c.s == " " {
			// A space at the break point is consumed.
			out = append(out, lineOf(cs[start:i]))
			start, w, brk = i+1, 0, -1
			continue
		}
		if brk > start {
			out = append(out, lineOf(cs[start:brk]))
			start, brk = brk+1, -1
		} else if i > start {
			out = append(out, lineOf(cs[start:i]))
			start = i
		}
		w = 0
		for _, k := range cs[start : i+1] {
			w += k.w
		}
	}
	if start < len(cs) {
		out = append(out, clip(cs[start:], maxW))
	}
	if len(out) == 0 {
		out = append(out, textLine{})
	}
	return out
}

// drawText lays out t into a grid of exactly width x height cells when both
// are given, or of the measured size otherwise. Unpainted cells stay
// transparent.
func drawText(t *view.Text, maxW, width, height int) *Grid {
	limit := maxW
	if width >= 0 {
		limit = width
	}
	lines := layoutText(t.Content, t.Wrap, limit)

	if width < 0 {
		width = 0
		for _, l := range lines {
			width = max(width, l.width)
		}
	}
	if height < 0 {
		height = len(lines)
	}

	style := Style{FG: FromColor(t.Color), BG: FromColor(t.Background)}
	if t.Bold {
		style.Attr = style.Attr.With(AttrBold)
	}
	if t.Italic {
		style.Attr = style.Attr.With(AttrItalic)
	}
	if t.Underline {
		style.Attr = style.Attr.With(AttrUnderline)
	}

	g := NewGrid(width, height)
	for y, l := range lines {
		if y >= height {
			break
		}
		x := 0
		switch t.Align {
		case view.AlignCenter:
			x = (width - l.width) / 2
		case view.AlignRight:
			x = width - l.width
		}
		g.WriteString(max(x, 0), y, l.String(), style)
	}
	return g
}
