package term

import (
	"testing"

	"github.com/muesli/termenv"
)

func TestEncoderRow(t *testing.T) {
	red := Style{FG: BasicColor(1)}
	tests := []struct {
		name    string
		profile termenv.Profile
		draw    func(g *Grid)
		want    string
	}{
		{
			name:    "SingleRun",
			profile: termenv.TrueColor,
			draw:    func(g *Grid) { g.WriteString(0, 0, "abcd", red) },
			want:    "\x1b[31mabcd\x1b[0m",
		},
		{
			name:    "ChangeOnlyWhereStyleChanges",
			profile: termenv.TrueColor,
			draw: func(g *Grid) {
				g.WriteString(0, 0, "ab", red)
				g.WriteString(2, 0, "cd", Style{})
			},
			want: "\x1b[31mab\x1b[0mcd",
		},
		{
			name:    "BackgroundRun",
			profile: termenv.TrueColor,
			draw:    func(g *Grid) { g.WriteString(0, 0, "abcd", Style{BG: PaletteColor(21)}) },
			want:    "\x1b[48;5;21mabcd\x1b[0m",
		},
		{
			name:    "TransparentIsPlainSpace",
			profile: termenv.TrueColor,
			draw:    func(g *Grid) { g.WriteString(1, 0, "b", red) },
			want:    " \x1b[31mb\x1b[0m  ",
		},
		{
			name:    "AttributesAndColors",
			profile: termenv.TrueColor,
			draw: func(g *Grid) {
				g.WriteString(0, 0, "abcd", Style{FG: RGB(255, 0, 0), BG: BasicColor(12), Attr: AttrBold})
			},
			want: "\x1b[1;38;2;255;0;0;104mabcd\x1b[0m",
		},
		{
			name:    "AsciiDropsColor",
			profile: termenv.Ascii,
			draw:    func(g *Grid) { g.WriteString(0, 0, "abcd", red) },
			want:    "abcd",
		},
		{
			name:    "ANSIDownsamples",
			profile: termenv.ANSI,
			draw:    func(g *Grid) { g.WriteString(0, 0, "abcd", Style{FG: RGB(255, 0, 0)}) },
			want:    "\x1b[91mabcd\x1b[0m",
		},
		{
			name:    "WideGlyphOnce",
			profile: termenv.TrueColor,
			draw:    func(g *Grid) { g.WriteString(0, 0, "界ab", Style{}) },
			want:    "界ab",
		},
		{
			name:    "RawPayloadSkipsReserved",
			profile: termenv.TrueColor,
			draw: func(g *Grid) {
				g.Set(0, 0, Cell{Raw: "IMG"})
				g.Set(1, 0, Cell{Reserved: true})
				g.Set(2, 0, Cell{Reserved: true})
				g.WriteString(3, 0, "z", Style{})
			},
			want: "\x1b7IMG\x1b8\x1b[3Cz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGrid(4, 1)
			tt.draw(g)
			got := NewEncoder(tt.profile).Row(g, 0)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestEncoderLines(t *testing.T) {
	g := NewGrid(2, 2)
	g.WriteString(0, 0, "ab", Style{Attr: AttrUnderline})
	g.WriteString(0, 1, "cd", Style{Attr: AttrUnderline})
	lines := NewEncoder(termenv.Ascii).Lines(g)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for i, want := range []string{"\x1b[4mab\x1b[0m", "\x1b[4mcd\x1b[0m"} {
		if lines[i] != want {
			t.Errorf("line %d: expected %q, got %q (every row closes its own styles)", i, want, lines[i])
		}
	}
}
