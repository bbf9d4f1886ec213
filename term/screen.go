package term

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/muesli/termenv"
	xterm "golang.org/x/term"
)

// Sink receives collapsed frames.
type Sink interface {
	Present(g *Grid) error
}

// Size represents dimensions.
type Size struct {
	Width  int
	Height int
}

// Screen writes frames to a terminal. Only rows whose encoded text changed
// since the previous frame are rewritten.
type Screen struct {
	writer io.Writer
	fd     int

	width  int
	height int

	enc *Encoder

	// Terminal state
	saved      *xterm.State
	inRawMode  bool
	inlineMode bool
	inlineRows int

	// Resize handling
	resizeChan chan Size
	sigChan    chan os.Signal
	sigDone    chan struct{}

	// front holds the encoded rows currently on the terminal.
	front []string
	buf   bytes.Buffer

	// Synchronization - protects rows and size during resize
	mu sync.Mutex
}

// NewScreen creates a new screen writing to the given writer.
// Pass nil to use os.Stdout. The color profile is detected from the writer.
func NewScreen(w io.Writer) *Screen {
	if w == nil {
		w = os.Stdout
	}

	fd := int(os.Stdout.Fd())
	if f, ok := w.(*os.File); ok {
		fd = int(f.Fd())
	}
	width, height, err := terminalSize(fd)
	if err != nil {
		// Default fallback
		width, height = 80, 24
	}

	return &Screen{
		writer:     w,
		fd:         fd,
		width:      width,
		height:     height,
		enc:        NewEncoder(termenv.NewOutput(w).EnvColorProfile()),
		resizeChan: make(chan Size, 1),
		sigChan:    make(chan os.Signal, 1),
	}
}

// Size returns the current screen dimensions.
func (s *Screen) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Size{Width: s.width, Height: s.height}
}

// ResizeChan returns a channel that receives size updates on terminal resize.
func (s *Screen) ResizeChan() <-chan Size {
	return s.resizeChan
}

// Profile returns the color profile frames are encoded with.
func (s *Screen) Profile() termenv.Profile { return s.enc.Profile }

// SetProfile overrides the detected color profile.
func (s *Screen) SetProfile(p termenv.Profile) {
	s.mu.Lock()
	s.enc = NewEncoder(p)
	s.front = nil
	s.mu.Unlock()
}

// Resize sets the dimensions and forces the next frame to redraw fully.
func (s *Screen) Resize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.front = nil
	s.mu.Unlock()
}

// EnterRawMode puts the terminal into raw mode on the alternate screen.
func (s *Screen) EnterRawMode() error {
	if s.inRawMode {
		return nil
	}
	if err := s.makeRaw(); err != nil {
		return err
	}

	// Enter alternate screen, clear it, hide cursor
	s.writeString("\x1b[?1049h\x1b[2J\x1b[H\x1b[?25l")
	return nil
}

// ExitRawMode restores the terminal to its original state.
func (s *Screen) ExitRawMode() error {
	if !s.inRawMode {
		return nil
	}
	s.writeString("\x1b[0m\x1b[?25h\x1b[?1049l")
	return s.restore()
}

// EnterInlineMode puts the terminal into raw mode WITHOUT the alternate
// screen. Frames render at the cursor in the normal terminal flow.
func (s *Screen) EnterInlineMode() error {
	if s.inRawMode {
		return nil
	}
	if err := s.makeRaw(); err != nil {
		return err
	}
	s.inlineMode = true
	return nil
}

// ExitInlineMode restores the terminal from inline mode. If erase is true
// the lines used are erased, otherwise the cursor moves below them.
func (s *Screen) ExitInlineMode(erase bool) error {
	if !s.inRawMode {
		return nil
	}

	s.mu.Lock()
	var out bytes.Buffer
	lines := s.inlineRows
	switch {
	case erase && lines > 0:
		for i := 0; i < lines; i++ {
			out.WriteString("\r\x1b[2K")
			if i < lines-1 {
				out.WriteString("\x1b[1B")
			}
		}
		if lines > 1 {
			fmt.Fprintf(&out, "\x1b[%dA", lines-1)
		}
		out.WriteString("\r")
	case lines > 0:
		if lines > 1 {
			fmt.Fprintf(&out, "\x1b[%dB", lines-1)
		}
		out.WriteString("\r\n")
	}
	out.WriteString("\x1b[0m")
	s.writer.Write(out.Bytes())
	s.inlineRows = 0
	s.mu.Unlock()

	s.inlineMode = false
	return s.restore()
}

// IsInlineMode returns true if the screen is in inline mode.
func (s *Screen) IsInlineMode() bool {
	return s.inlineMode
}

func (s *Screen) makeRaw() error {
	state, err := xterm.MakeRaw(s.fd)
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	s.saved = state
	s.inRawMode = true

	s.watchResize()
	return nil
}

func (s *Screen) restore() error {
	s.unwatchResize()
	s.inRawMode = false
	if s.saved != nil {
		if err := xterm.Restore(s.fd, s.saved); err != nil {
			return fmt.Errorf("failed to restore terminal: %w", err)
		}
	}
	return nil
}

// watchResize starts delivering resize signals until unwatchResize.
func (s *Screen) watchResize() {
	s.unwatchResize()
	s.sigDone = make(chan struct{})
	notifyResize(s.sigChan)
	go s.handleSignals(s.sigDone)
}

func (s *Screen) unwatchResize() {
	if s.sigDone == nil {
		return
	}
	stopResize(s.sigChan)
	close(s.sigDone)
	s.sigDone = nil
}

// handleSignals processes resize signals until done is closed.
func (s *Screen) handleSignals(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-s.sigChan:
		}
		width, height, err := terminalSize(s.fd)
		if err != nil {
			continue
		}
		s.mu.Lock()
		changed := width != s.width || height != s.height
		if changed {
			s.width, s.height = width, height
			s.front = nil
			if !s.inlineMode {
				s.writeString("\x1b[2J")
			}
		}
		s.mu.Unlock()
		if changed {
			// Non-blocking send (outside lock to avoid potential deadlock)
			select {
			case s.resizeChan <- Size{Width: width, Height: height}:
			default:
			}
		}
	}
}

// Present writes g, rewriting only the rows that changed.
func (s *Screen) Present(g *Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inlineMode {
		return s.presentInline(g)
	}

	rows := min(g.Height(), s.height)
	if len(s.front) != rows {
		s.front = make([]string, rows)
		for i := range s.front {
			s.front[i] = "\x00"
		}
	}

	s.buf.Reset()
	for y := 0; y < rows; y++ {
		line := s.enc.Row(g, y)
		if line == s.front[y] {
			continue
		}
		s.buf.WriteString("\x1b[")
		s.buf.WriteString(strconv.Itoa(y + 1))
		s.buf.WriteString(";1H\x1b[2K")
		s.buf.WriteString(line)
		s.front[y] = line
	}
	if s.buf.Len() == 0 {
		return nil
	}
	if _, err := s.writer.Write(s.buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// presentInline redraws every row at the cursor and moves back to the
// first one.
func (s *Screen) presentInline(g *Grid) error {
	s.buf.Reset()
	rows := g.Height()
	for y := 0; y < rows; y++ {
		s.buf.WriteString("\r\x1b[K")
		s.buf.WriteString(s.enc.Row(g, y))
		if y < rows-1 {
			s.buf.WriteString("\n")
		}
	}
	if rows > 1 {
		fmt.Fprintf(&s.buf, "\x1b[%dA", rows-1)
	}
	s.buf.WriteString("\r")
	s.inlineRows = rows
	if _, err := s.writer.Write(s.buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// writeString is a helper to write a string directly to the terminal.
func (s *Screen) writeString(str string) {
	io.WriteString(s.writer, str)
}
