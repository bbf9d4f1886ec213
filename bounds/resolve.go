package bounds

// Resolve converts spec into an absolute bounding box against the parent
// context and the rectangle occupied by the previous sibling (nil for a
// first child). A nil spec resolves like the zero Spec.
func Resolve(spec *Spec, parent Context, prev *Rect) (Box, error) {
	var s Spec
	if spec != nil {
		s = *spec
	}

	box := Box{AnchorX: s.AnchorX, AnchorY: s.AnchorY}
	if s.Z != nil {
		box.Z = parent.Box.Z + *s.Z
	} else {
		box.Z = parent.Box.Z + DepthEpsilon
	}

	var err error
	if box.W, err = resolveExtent(FieldWidth, s.Width, parent.Box.W, parent.Unit.W); err != nil {
		return Box{}, err
	}
	if box.H, err = resolveExtent(FieldHeight, s.Height, parent.Box.H, parent.Unit.H); err != nil {
		return Box{}, err
	}
	if box.X, err = resolveAxis(FieldX, s.ModeX, s.X, parent, prev); err != nil {
		return Box{}, err
	}
	if box.Y, err = resolveAxis(FieldY, s.ModeY, s.Y, parent, prev); err != nil {
		return Box{}, err
	}
	return box, nil
}

func resolveExtent(field Field, m Measure, ref Extent, unit float64) (Extent, error) {
	if !m.IsSet() {
		return Extent{}, nil
	}
	v, err := Eval(m, field, ref, unit, nil)
	if err != nil {
		return Extent{}, err
	}
	return Known(v), nil
}

// axis bundles the per-axis view of a context so x and y share one code path.
type axis struct {
	origin float64
	ref    Extent
	unit   float64
	flow   bool // parent flows along this axis
	edge   func(Rect) float64
}

func axisOf(field Field, parent Context) axis {
	ox, oy := parent.Box.Origin()
	if field == FieldX {
		return axis{
			origin: ox,
			ref:    parent.Box.W,
			unit:   parent.Unit.W,
			flow:   parent.Layout.Direction == Horizontal,
			edge:   Rect.Right,
		}
	}
	return axis{
		origin: oy,
		ref:    parent.Box.H,
		unit:   parent.Unit.H,
		flow:   parent.Layout.Direction == Vertical,
		edge:   Rect.Bottom,
	}
}

func resolveAxis(field Field, mode Mode, m Measure, parent Context, prev *Rect) (float64, error) {
	ax := axisOf(field, parent)

	var prevEdge *float64
	if prev != nil {
		e := ax.edge(*prev)
		prevEdge = &e
	}

	v, err := Eval(m, field, ax.ref, ax.unit, prevEdge)
	if err != nil {
		return 0, err
	}

	switch mode {
	case GlobalAbsolute:
		return v, nil
	case LocalAbsolute:
		// prev already carries an absolute coordinate.
		if usesPrev(m) {
			return v, nil
		}
		return ax.origin + v, nil
	}

	if usesPrev(m) {
		return v, nil
	}
	base := ax.origin
	if ax.flow && prevEdge != nil {
		// The gap belongs to the parent, so percentages in it refer to the
		// parent's own dimension.
		gap, err := Eval(parent.Layout.Gap, FieldGap, ax.ref, ax.unit, nil)
		if err != nil {
			return 0, err
		}
		base = *prevEdge + gap
	}
	return base + v, nil
}
