package term

import (
	"strconv"
	"strings"

	"github.com/muesli/termenv"
)

// Encoder turns grid rows into ANSI text for one color profile.
type Encoder struct {
	Profile termenv.Profile
}

// NewEncoder returns an encoder for the given profile.
func NewEncoder(p termenv.Profile) *Encoder {
	return &Encoder{Profile: p}
}

// Row encodes row y. Escape sequences are emitted only where the active
// style changes from the previous cell, and a row never leaves a style open.
// Transparent cells render as unstyled spaces; reserved cells are skipped
// with a cursor-forward sequence.
func (e *Encoder) Row(g *Grid, y int) string {
	var b strings.Builder
	var active Style
	open := false
	skip := 0

	flushSkip := func() {
		if skip > 0 {
			b.WriteString(termenv.CSI)
			b.WriteString(strconv.Itoa(skip))
			b.WriteByte('C')
			skip = 0
		}
	}

	for _, c := range g.Row(y) {
		switch {
		case c.Cont:
			continue
		case c.Reserved:
			skip++
			continue
		}
		flushSkip()

		style := c.Style
		glyph := c.Glyph
		if c.Transparent || glyph == "" {
			style, glyph = Style{}, " "
		}
		if style != active {
			if open {
				b.WriteString(termenv.CSI + termenv.ResetSeq + "m")
				open = false
			}
			if seq := e.sgr(style); seq != "" {
				b.WriteString(termenv.CSI + seq + "m")
				open = true
			}
			active = style
		}
		if c.Raw != "" {
			// Save and restore the cursor around the payload so the
			// protocol's own cursor movement does not shift the row.
			b.WriteString("\x1b7")
			b.WriteString(c.Raw)
			b.WriteString("\x1b8")
			skip++
			continue
		}
		b.WriteString(glyph)
	}
	if open {
		b.WriteString(termenv.CSI + termenv.ResetSeq + "m")
	}
	return b.String()
}

// Lines encodes every row.
func (e *Encoder) Lines(g *Grid) []string {
	out := make([]string, g.Height())
	for y := range out {
		out[y] = e.Row(g, y)
	}
	return out
}

// sgr returns the SGR parameters for s, without the CSI prefix.
func (e *Encoder) sgr(s Style) string {
	var seq []string
	if s.Attr.Has(AttrBold) {
		seq = append(seq, termenv.BoldSeq)
	}
	if s.Attr.Has(AttrDim) {
		seq = append(seq, termenv.FaintSeq)
	}
	if s.Attr.Has(AttrItalic) {
		seq = append(seq, termenv.ItalicSeq)
	}
	if s.Attr.Has(AttrUnderline) {
		seq = append(seq, termenv.UnderlineSeq)
	}
	if s.Attr.Has(AttrBlink) {
		seq = append(seq, termenv.BlinkSeq)
	}
	if s.Attr.Has(AttrInverse) {
		seq = append(seq, termenv.ReverseSeq)
	}
	if s.Attr.Has(AttrStrikethrough) {
		seq = append(seq, termenv.CrossOutSeq)
	}
	if fg := s.FG.sequence(e.Profile, false); fg != "" {
		seq = append(seq, fg)
	}
	if bg := s.BG.sequence(e.Profile, true); bg != "" {
		seq = append(seq, bg)
	}
	return strings.Join(seq, ";")
}
