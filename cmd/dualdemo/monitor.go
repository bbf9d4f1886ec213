package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"time"

	"github.com/kungfusheep/dualview/bounds"
	"github.com/kungfusheep/dualview/component"
	"github.com/kungfusheep/dualview/view"
	"github.com/lucasb-eyer/go-colorful"
)

type theme struct {
	Accent    color.Color
	Selection color.Color
	Muted     color.Color
	Danger    color.Color
	Border    color.Color
}

var defaultTheme = theme{
	Accent:    view.Hex("#61AFEF"),
	Selection: view.Hex("#3E4451"),
	Muted:     view.Hex("#7F848E"),
	Danger:    view.Hex("#E06C75"),
	Border:    view.Hex("#5C6370"),
}

var themeCtx = component.NewContext("theme", defaultTheme)

var (
	barLow   = colorful.MustParseHex("#98C379")
	barHigh  = colorful.MustParseHex("#E06C75")
	barTrack = colorful.MustParseHex("#3E4451")
)

type monitorState struct {
	procs     []proc
	key       sortKey
	sel       int
	paused    bool
	failure   string
	filter    string
	filtering bool
}

// shown is the sorted process list narrowed by the filter.
func (s monitorState) shown() []proc { return filterProcs(s.procs, s.filter) }

// clamp keeps the selection on a shown row.
func (s monitorState) clamp() monitorState {
	s.sel = max(0, min(s.sel, len(s.shown())-1))
	return s
}

// action is a state transition. Input handlers queue actions so that
// several keys read in one batch each see the previous key's result.
type action func(monitorState) monitorState

type monitorProps struct {
	src    sampler
	every  time.Duration
	line   float64 // height of one text row in target units
	rows   int     // process rows that fit in the list panel
	events *component.Observable[string]
	quit   func()
}

func newMonitor(p monitorProps) *component.Element {
	if p.line <= 0 {
		p.line = 1
	}
	if p.rows <= 0 {
		p.rows = 10
	}
	if p.events == nil {
		p.events = component.NewObservable[string]()
	}
	return component.New(monitor, p).Named("Monitor")
}

func monitor(c *component.Ctx, p monitorProps) (view.Node, error) {
	component.Provide(c, themeCtx, defaultTheme)
	th := component.UseContext(c, themeCtx)

	st, dispatch := component.UseReducer(c, func(s monitorState, a action) monitorState { return a(s) }, monitorState{})

	refresh := func(s monitorState) monitorState {
		ps, err := p.src.Sample()
		if err != nil {
			s.failure = err.Error()
			return s
		}
		sortProcs(ps, s.key)
		s.procs, s.failure = ps, ""
		return s.clamp()
	}

	component.UseMount(c, func() func() {
		dispatch(refresh)
		p.events.Push("started, sorted by " + byCPU.String())
		return nil
	})
	component.UseInterval(c, p.every, func() {
		dispatch(func(s monitorState) monitorState {
			if s.paused {
				return s
			}
			return refresh(s)
		})
	})

	handle := func(s monitorState, k component.Key) monitorState {
		if s.filtering {
			switch k {
			case "enter":
				s.filtering = false
				if s.filter != "" {
					p.events.Push("filter " + s.filter)
				}
			case "esc":
				s.filtering, s.filter = false, ""
			case "backspace":
				if r := []rune(s.filter); len(r) > 0 {
					s.filter = string(r[:len(r)-1])
				}
			default:
				if r := []rune(string(k)); len(r) == 1 {
					s.filter += string(k)
				}
			}
			s.sel = 0
			return s.clamp()
		}
		switch k {
		case "j", "down":
			s.sel++
		case "k", "up":
			s.sel--
		case "g", "home":
			s.sel = 0
		case "/":
			s.filtering = true
		case "esc":
			s.filter = ""
		case "s":
			s.key = s.key.next()
			s.procs = append([]proc(nil), s.procs...)
			sortProcs(s.procs, s.key)
			s.sel = 0
			p.events.Push("sorted by " + s.key.String())
		case "p":
			s.paused = !s.paused
			if s.paused {
				p.events.Push("paused")
			} else {
				p.events.Push("resumed")
			}
		case "r":
			p.events.Push("refreshed")
			s = refresh(s)
		case "q", "ctrl+c":
			if p.quit != nil {
				p.quit()
			}
		}
		return s.clamp()
	}
	component.UseInput(c, func(k component.Key) {
		dispatch(func(s monitorState) monitorState { return handle(s, k) })
	})

	procs, key, sel := st.shown(), st.key, st.sel
	paused, failure := st.paused, st.failure

	start := 0
	if sel >= p.rows {
		start = sel - p.rows + 1
	}
	visible := procs[start:min(start+p.rows, len(procs))]

	var selected proc
	if len(procs) > 0 {
		selected = procs[sel]
	}
	rows, err := component.Each(visible,
		func(pr proc) string { return strconv.Itoa(pr.PID) },
		func(pr proc) view.Node {
			return component.New(procRow, rowProps{proc: pr, selected: pr.PID == selected.PID})
		})
	if err != nil {
		return nil, err
	}

	cpu, mem := totals(st.procs)
	line := bounds.N(p.line)
	header := view.Row(
		&view.Text{Content: "dualview procmon", Bold: true, Color: th.Accent},
		view.NewText(fmt.Sprintf("%d procs  cpu %.1f%%  mem %.1f%%  sort:%s", len(st.procs), cpu, mem, key)),
		usageBar("total", cpu, bounds.N(10*p.line), line),
	).Gap(line)

	detailView := component.Boundary("detail",
		func(err error) view.Node {
			return &view.Text{Content: err.Error(), Color: th.Muted, Wrap: view.WrapWord}
		},
		component.New(detail, detailProps{proc: selected, line: p.line}))

	body := view.Sized(view.Row(
		panel("processes", view.Col(rows...), "60%", "100%", p.line, th),
		view.Sized(view.Col(
			panel("detail", view.Col(detailView), "100%", "50%", p.line, th),
			panel("events", view.Col(component.New(eventLog, logProps{events: p.events, rows: p.rows / 2})), "100%", "50%", p.line, th),
		), "40%", "100%"),
	), "100%", bounds.Pct(100).Minus(bounds.N(2*p.line)))

	status := ""
	statusColor := th.Muted
	switch {
	case failure != "":
		status, statusColor = failure, th.Danger
	case st.filtering:
		status, statusColor = "/"+st.filter, th.Accent
	case paused:
		status = "paused"
	case st.filter != "":
		status = "filter: " + st.filter
	}
	footer := view.Row(
		&view.Text{Content: "j/k select  / filter  s sort  p pause  q quit", Color: th.Muted},
		&view.Text{Content: status, Color: statusColor, Bold: true},
	).Gap(bounds.N(2 * p.line))

	return view.Sized(view.Col(header, body, footer), "100%", "100%"), nil
}

// panel frames content with a titled border, inset by one line.
func panel(title string, content *view.Box, w, h bounds.Measure, line float64, th theme) view.Node {
	inset := bounds.N(line)
	inner := bounds.Pct(100).Minus(bounds.N(2 * line))
	return view.Sized(view.Stack(
		&view.Border{Style: view.BorderRounded, Title: title, Color: th.Border},
		view.At(content, bounds.Spec{X: inset, Y: inset, Width: inner, Height: inner}),
	), w, h)
}

type rowProps struct {
	proc     proc
	selected bool
}

func procRow(c *component.Ctx, p rowProps) (view.Node, error) {
	th := component.UseContext(c, themeCtx)
	t := &view.Text{
		Content: fmt.Sprintf("%7d %5.1f %5.1f  %s", p.proc.PID, p.proc.CPU, p.proc.Mem, p.proc.Command),
		Wrap:    view.WrapNone,
	}
	if p.selected {
		t.Background = th.Selection
		t.Bold = true
	}
	return t, nil
}

type detailProps struct {
	proc proc
	line float64
}

var errNoProcess = errors.New("no process selected")

func detail(c *component.Ctx, p detailProps) (view.Node, error) {
	th := component.UseContext(c, themeCtx)
	if p.proc.PID == 0 {
		return nil, errNoProcess
	}
	label := func(s string) view.Node { return &view.Text{Content: s, Color: th.Muted} }
	return view.Sized(view.Col(
		&view.Text{Content: p.proc.Command, Bold: true, Color: th.Accent, Wrap: view.WrapChar},
		view.Row(label("pid"), view.NewText(strconv.Itoa(p.proc.PID))).Gap(bounds.N(p.line)),
		view.Row(label("cpu"), view.NewText(fmt.Sprintf("%5.1f%%", p.proc.CPU)),
			usageBar("cpu", p.proc.CPU, bounds.N(10*p.line), bounds.N(p.line))).Gap(bounds.N(p.line)),
		view.Row(label("mem"), view.NewText(fmt.Sprintf("%5.1f%%", p.proc.Mem)),
			usageBar("mem", p.proc.Mem, bounds.N(10*p.line), bounds.N(p.line))).Gap(bounds.N(p.line)),
	), "100%", ""), nil
}

type logProps struct {
	events *component.Observable[string]
	rows   int
}

func eventLog(c *component.Ctx, p logProps) (view.Node, error) {
	th := component.UseContext(c, themeCtx)
	items := component.UseObservable(c, p.events)
	if n := max(p.rows, 1); len(items) > n {
		items = items[len(items)-n:]
	}
	lines := make([]view.Node, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		lines = append(lines, &view.Text{Content: items[i], Color: th.Muted, Wrap: view.WrapNone})
	}
	return view.Sized(view.Col(lines...), "100%", ""), nil
}

// usageBar is a vector gauge; each whole percentage is its own asset.
func usageBar(name string, pct float64, w, h bounds.Measure) view.Node {
	pct = math.Max(0, math.Min(100, pct))
	whole := int(math.Round(pct))
	return view.Sized(&view.Source{
		Asset:  fmt.Sprintf("bar/%s/%d", name, whole),
		Vector: true,
		Rasterize: func(pw, ph int) (image.Image, error) {
			return barImage(pw, ph, float64(whole)/100), nil
		},
	}, w, h)
}

func barImage(w, h int, frac float64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	filled := int(math.Round(frac * float64(w)))
	for x := 0; x < w; x++ {
		c := barTrack
		if x < filled {
			c = barLow.BlendHcl(barHigh, float64(x)/float64(max(w-1, 1))).Clamped()
		}
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}
