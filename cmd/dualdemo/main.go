// Command dualdemo is a process monitor drawn with dualview. By default it
// takes over the terminal; -tea runs it inside Bubble Tea and -pdf writes a
// single frame to a PDF file instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kungfusheep/dualview"
	"github.com/kungfusheep/dualview/canvasview"
	"github.com/kungfusheep/dualview/component"
	"github.com/kungfusheep/dualview/render"
	"github.com/kungfusheep/dualview/teahost"
	"github.com/kungfusheep/dualview/term"
	"github.com/kungfusheep/dualview/view"
)

var (
	configPath = flag.String("config", dualview.DefaultConfigPath(), "config file")
	useTea     = flag.Bool("tea", false, "run inside a Bubble Tea program")
	pdfPath    = flag.String("pdf", "", "write one frame to this PDF file and exit")
	interval   = flag.Duration("interval", 2*time.Second, "refresh interval")
	dev        = flag.Bool("dev", false, "log frame timings")
)

// A4 landscape, in millimetres.
const pageW, pageH = 297.0, 210.0

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dualdemo:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := dualview.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *dev {
		cfg.DevMode = true
	}
	src := psSampler{timeout: time.Second}

	switch {
	case *pdfPath != "":
		f, err := os.Create(*pdfPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", *pdfPath, err)
		}
		if err := exportPDF(f, cfg, src); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case *useTea:
		return runTea(cfg, src)
	default:
		return runScreen(cfg, src)
	}
}

func runScreen(cfg *dualview.Config, src sampler) error {
	screen := term.NewScreen(nil)
	if cfg.ColorProfile != "auto" {
		screen.SetProfile(cfg.Profile(os.Stdout))
	}
	size := screen.Size()
	r, err := dualview.NewRenderer(cfg, screen, size.Width, size.Height)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err = r.Mount(newMonitor(monitorProps{
		src:   src,
		every: *interval,
		rows:  size.Height - 4,
		quit:  cancel,
	}))
	if err != nil {
		return err
	}

	if err := screen.EnterRawMode(); err != nil {
		return err
	}
	defer screen.ExitRawMode()

	go func() {
		if err := readKeys(ctx, os.Stdin, r.Dispatch); err != nil {
			r.Logger().Error("input failed", "err", err)
			cancel()
		}
	}()
	return r.Run(ctx)
}

func runTea(cfg *dualview.Config, src sampler) error {
	r, err := dualview.NewRenderer(cfg, nil, 80, 24)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.Mount(newMonitor(monitorProps{src: src, every: *interval, rows: 20})); err != nil {
		return err
	}

	opts := []teahost.Option{teahost.WithQuitKeys("q", "ctrl+c")}
	if cfg.DevMode {
		opts = append(opts, teahost.WithStatus())
	}
	final, err := tea.NewProgram(teahost.New(r, opts...), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(teahost.Model); ok {
		return m.Err()
	}
	return nil
}

// exportPDF renders one frame of the monitor on an A4 page.
func exportPDF(w io.Writer, cfg *dualview.Config, src sampler) error {
	logger, closer, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	cb, err := canvasview.New(canvasview.Options{Width: pageW, Height: pageH, Logger: logger})
	if err != nil {
		return err
	}
	line := cb.LineHeight()
	tree := component.NewTree(component.Options{
		MaxRecursiveUpdates: cfg.MaxRecursiveUpdates,
		Logger:              logger,
	})
	defer tree.Unmount()
	err = tree.Mount(newMonitor(monitorProps{
		src:  src,
		line: line,
		rows: int(pageH/line) - 6,
	}))
	if err != nil {
		return err
	}
	if err := tree.Flush(); err != nil {
		return err
	}

	comp := render.New(cb, render.WithLogger(logger))
	batch, err := renderSettled(comp, tree.View(), 50*time.Millisecond, 2*time.Second)
	if err != nil {
		return err
	}
	return canvasview.WritePDF(w, canvasview.Draw(batch, pageW, pageH))
}

// renderSettled renders root, then renders again for as long as asset loads
// keep invalidating it, until a quiet period passes or limit runs out.
func renderSettled(c *render.Compositor, root view.Node, quiet, limit time.Duration) (*render.Batch, error) {
	deadline := time.Now().Add(limit)
	batch, err := c.RenderRoot(root)
	for err == nil && time.Now().Before(deadline) {
		idle := time.Now().Add(quiet)
		for !c.NeedsRerender() && time.Now().Before(idle) {
			time.Sleep(time.Millisecond)
		}
		if !c.NeedsRerender() {
			break
		}
		batch, err = c.RenderRoot(root)
	}
	return batch, err
}
