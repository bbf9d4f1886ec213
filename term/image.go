package term

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-isatty"
	"golang.org/x/image/draw"
)

// Protocol is an image output method.
type Protocol uint8

const (
	ProtocolAuto   Protocol = iota
	ProtocolKitty           // kitty graphics protocol
	ProtocolITerm           // iTerm2 inline images (OSC 1337)
	ProtocolBlocks          // half-block color approximation, always available
)

func (p Protocol) String() string {
	switch p {
	case ProtocolAuto:
		return "auto"
	case ProtocolKitty:
		return "kitty"
	case ProtocolITerm:
		return "iterm"
	case ProtocolBlocks:
		return "blocks"
	default:
		return "unknown"
	}
}

// ParseProtocol parses a protocol name. Unknown names are auto.
func ParseProtocol(s string) Protocol {
	switch strings.ToLower(s) {
	case "kitty":
		return ProtocolKitty
	case "iterm", "iterm2":
		return ProtocolITerm
	case "blocks", "halfblock", "ansi":
		return ProtocolBlocks
	default:
		return ProtocolAuto
	}
}

// DetectProtocol picks the best protocol the terminal on fd supports,
// judged from the environment. Inline protocols are only used on a TTY.
func DetectProtocol(fd uintptr, getenv func(string) string) Protocol {
	if getenv == nil {
		getenv = os.Getenv
	}
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return ProtocolBlocks
	}
	termName := getenv("TERM")
	switch {
	case getenv("KITTY_WINDOW_ID") != "",
		strings.Contains(termName, "kitty"),
		getenv("TERM_PROGRAM") == "ghostty":
		return ProtocolKitty
	case getenv("TERM_PROGRAM") == "iTerm.app",
		getenv("TERM_PROGRAM") == "WezTerm",
		getenv("ITERM_SESSION_ID") != "":
		return ProtocolITerm
	}
	return ProtocolBlocks
}

// encodeImage renders img into a cols x rows grid with the given protocol.
func encodeImage(p Protocol, img image.Image, cols, rows int) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return NewGrid(max(cols, 0), max(rows, 0)), nil
	}
	switch p {
	case ProtocolKitty, ProtocolITerm:
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		g := NewGrid(cols, rows)
		g.Fill(Cell{Reserved: true})
		raw := kittyPayload(buf.Bytes(), cols, rows)
		if p == ProtocolITerm {
			raw = itermPayload(buf.Bytes(), cols, rows)
		}
		g.cells[0] = Cell{Raw: raw}
		return g, nil
	default:
		return halfBlocks(img, cols, rows), nil
	}
}

// kittyChunk is the largest base64 payload per escape the protocol accepts.
const kittyChunk = 4096

func kittyPayload(pngData []byte, cols, rows int) string {
	data := base64.StdEncoding.EncodeToString(pngData)
	var b strings.Builder
	first := true
	for len(data) > 0 {
		n := min(kittyChunk, len(data))
		chunk := data[:n]
		data = data[n:]
		more := 0
		if len(data) > 0 {
			more = 1
		}
		if first {
			fmt.Fprintf(&b, "\x1b_Ga=T,f=100,q=2,C=1,c=%d,r=%d,m=%d;%s\x1b\\", cols, rows, more, chunk)
			first = false
		} else {
			fmt.Fprintf(&b, "\x1b_Gm=%d;%s\x1b\\", more, chunk)
		}
	}
	return b.String()
}

func itermPayload(pngData []byte, cols, rows int) string {
	return fmt.Sprintf("\x1b]1337;File=inline=1;size=%d;width=%d;height=%d;preserveAspectRatio=0:%s\a",
		len(pngData), cols, rows, base64.StdEncoding.EncodeToString(pngData))
}

// halfBlocks samples img at two pixels per cell, stacked vertically: the
// upper pixel becomes the foreground of '▀' and the lower the background.
// Fully transparent pixel pairs leave the cell transparent.
func halfBlocks(img image.Image, cols, rows int) *Grid {
	scaled := image.NewNRGBA(image.Rect(0, 0, cols, rows*2))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	g := NewGrid(cols, rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			top := scaled.NRGBAAt(x, y*2)
			bottom := scaled.NRGBAAt(x, y*2+1)
			c := Cell{Glyph: "▀", Style: Style{FG: pixelColor(top), BG: pixelColor(bottom)}}
			switch {
			case top.A == 0 && bottom.A == 0:
				continue
			case top.A == 0:
				c = Cell{Glyph: "▄", Style: Style{FG: pixelColor(bottom)}}
			}
			g.cells[g.index(x, y)] = c
		}
	}
	return g
}

func pixelColor(c color.NRGBA) Color {
	if c.A == 0 {
		return Color{}
	}
	cf, _ := colorful.MakeColor(c)
	r, g, b := cf.RGB255()
	return RGB(r, g, b)
}
