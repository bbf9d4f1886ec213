// Package term is the terminal target: it draws view leaves into cell grids,
// collapses z-ordered grids into one frame and encodes frames as ANSI text.
package term

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
)

// Attribute represents text styling attributes that can be combined.
type Attribute uint8

const (
	AttrNone          Attribute = 0
	AttrBold          Attribute = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrInverse
	AttrStrikethrough
)

// Has returns true if the attribute set contains the given attribute.
func (a Attribute) Has(attr Attribute) bool {
	return a&attr != 0
}

// With returns a new attribute set with the given attribute added.
func (a Attribute) With(attr Attribute) Attribute {
	return a | attr
}

// ColorMode represents the color mode for a color value.
type ColorMode uint8

const (
	ColorNone ColorMode = iota // no color tag; the cell inherits what is beneath
	Color16                    // basic 16 colors (0-15)
	Color256                   // 256 color palette (0-255)
	ColorRGB                   // 24-bit true color
)

// Color is a cell color tag.
type Color struct {
	Mode    ColorMode
	R, G, B uint8 // For RGB mode
	Index   uint8 // For 16/256 mode
}

// BasicColor returns one of the 16 basic terminal colors.
func BasicColor(index uint8) Color {
	return Color{Mode: Color16, Index: index}
}

// PaletteColor returns one of the 256 palette colors.
func PaletteColor(index uint8) Color {
	return Color{Mode: Color256, Index: index}
}

// RGB returns a 24-bit true color.
func RGB(r, g, b uint8) Color {
	return Color{Mode: ColorRGB, R: r, G: g, B: b}
}

// FromColor converts any color value to a tag. A nil or fully transparent
// color is no tag.
func FromColor(c color.Color) Color {
	if c == nil {
		return Color{}
	}
	if _, _, _, a := c.RGBA(); a == 0 {
		return Color{}
	}
	cf, _ := colorful.MakeColor(c)
	r, g, b := cf.Clamped().RGB255()
	return RGB(r, g, b)
}

// IsSet reports whether the color carries a tag.
func (c Color) IsSet() bool { return c.Mode != ColorNone }

// sequence returns the SGR parameters for c under profile p, or "" when the
// profile cannot express it.
func (c Color) sequence(p termenv.Profile, bg bool) string {
	var tc termenv.Color
	switch c.Mode {
	case Color16:
		tc = termenv.ANSIColor(c.Index)
	case Color256:
		tc = termenv.ANSI256Color(c.Index)
	case ColorRGB:
		tc = termenv.RGBColor(colorful.Color{
			R: float64(c.R) / 255,
			G: float64(c.G) / 255,
			B: float64(c.B) / 255,
		}.Hex())
	default:
		return ""
	}
	return p.Convert(tc).Sequence(bg)
}

// Style combines foreground, background colors and attributes.
type Style struct {
	FG   Color
	BG   Color
	Attr Attribute
}
