package bounds

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Measure is a symbolic measurement. The grammar is:
//
//	measure := operand (('+' | '-') operand)*
//	operand := 'prev' | '-'? number ('%' | 'px')?
//
// A bare number is in raw units, '%' is relative to the parent's dimension on
// the same axis, 'px' is converted through the cell size and 'prev' is the
// trailing edge of the previous sibling. Operators combine left to right, two
// operands at a time.
type Measure string

// Prev is the previous sibling's trailing edge.
const Prev Measure = "prev"

// IsSet reports whether a measurement was given.
func (m Measure) IsSet() bool { return strings.TrimSpace(string(m)) != "" }

// N returns a measure in raw units.
func N(v float64) Measure { return Measure(strconv.FormatFloat(v, 'f', -1, 64)) }

// Pct returns a percentage measure.
func Pct(v float64) Measure { return N(v) + "%" }

// Px returns a pixel-like measure.
func Px(v float64) Measure { return N(v) + "px" }

// Plus joins two measures with '+'.
func (m Measure) Plus(o Measure) Measure { return m + " + " + o }

// Minus joins two measures with '-'.
func (m Measure) Minus(o Measure) Measure { return m + " - " + o }

// Field names the Spec field a measurement belongs to.
type Field uint8

const (
	FieldX Field = iota
	FieldY
	FieldWidth
	FieldHeight
	FieldGap
)

func (f Field) String() string {
	switch f {
	case FieldX:
		return "x"
	case FieldY:
		return "y"
	case FieldWidth:
		return "width"
	case FieldHeight:
		return "height"
	case FieldGap:
		return "gap"
	default:
		return "unknown"
	}
}

func (f Field) positional() bool { return f == FieldX || f == FieldY }

var (
	// ErrSyntax is returned for measurements outside the grammar.
	ErrSyntax = errors.New("invalid measurement")
	// ErrUnderSpecified is returned when a percentage refers to an unknown
	// parent dimension.
	ErrUnderSpecified = errors.New("parent dimension is undefined")
	// ErrNoPrevious is returned when prev is used on a first child.
	ErrNoPrevious = errors.New("prev used without a previous sibling")
	// ErrPrevNotPositional is returned when prev is used for a size or gap.
	ErrPrevNotPositional = errors.New("prev used for a non-positional field")
)

// Error reports a failed measurement.
type Error struct {
	Field Field
	Expr  Measure
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bounds: %s %q: %v", e.Field, string(e.Expr), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	measureLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t]+`},
		{Name: "Number", Pattern: `\d+\.\d*|\.\d+|\d+`},
		{Name: "Ident", Pattern: `[A-Za-z]+`},
		{Name: "Symbol", Pattern: `[%+\-]`},
	})

	measureParser = participle.MustBuild[expr](
		participle.Lexer(measureLexer),
		participle.Elide("Whitespace"),
	)

	parsed sync.Map // Measure -> parseResult
)

type expr struct {
	Head *operand `parser:"@@"`
	Tail []*tail  `parser:"@@*"`
}

type tail struct {
	Op      string   `parser:"@('+' | '-')"`
	Operand *operand `parser:"@@"`
}

type operand struct {
	Prev   bool    `parser:"  @'prev'"`
	Amount *amount `parser:"| @@"`
}

type amount struct {
	Neg   bool    `parser:"@'-'?"`
	Value float64 `parser:"@Number"`
	Unit  string  `parser:"@('%' | 'px')?"`
}

type parseResult struct {
	e   *expr
	err error
}

func parse(m Measure) (*expr, error) {
	if v, ok := parsed.Load(m); ok {
		r := v.(parseResult)
		return r.e, r.err
	}
	e, err := measureParser.ParseString("", string(m))
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSyntax, err)
		e = nil
	}
	parsed.Store(m, parseResult{e: e, err: err})
	return e, err
}

func (e *expr) usesPrev() bool {
	if e.Head.Prev {
		return true
	}
	for _, t := range e.Tail {
		if t.Operand.Prev {
			return true
		}
	}
	return false
}

// env carries what a measurement on one axis may refer to.
type env struct {
	field Field
	ref   Extent   // parent dimension for percentages
	unit  float64  // pixel-like units per raw unit
	prev  *float64 // previous sibling's trailing edge
}

func (e *expr) eval(en env) (float64, error) {
	v, err := e.Head.eval(en)
	if err != nil {
		return 0, err
	}
	for _, t := range e.Tail {
		r, err := t.Operand.eval(en)
		if err != nil {
			return 0, err
		}
		if t.Op == "+" {
			v += r
		} else {
			v -= r
		}
	}
	return v, nil
}

func (o *operand) eval(en env) (float64, error) {
	if o.Prev {
		if !en.field.positional() {
			return 0, ErrPrevNotPositional
		}
		if en.prev == nil {
			return 0, ErrNoPrevious
		}
		return *en.prev, nil
	}
	a := o.Amount
	v := a.Value
	switch a.Unit {
	case "%":
		if !en.ref.Known {
			return 0, ErrUnderSpecified
		}
		v = en.ref.V * v / 100
	case "px":
		if en.unit > 0 {
			v /= en.unit
		}
	}
	if a.Neg {
		v = -v
	}
	return v, nil
}

// Eval evaluates m for field with the given percentage reference, cell unit
// and previous trailing edge. An unset measure evaluates to zero.
func Eval(m Measure, field Field, ref Extent, unit float64, prev *float64) (float64, error) {
	if !m.IsSet() {
		return 0, nil
	}
	e, err := parse(m)
	if err != nil {
		return 0, &Error{Field: field, Expr: m, Err: err}
	}
	v, err := e.eval(env{field: field, ref: ref, unit: unit, prev: prev})
	if err != nil {
		return 0, &Error{Field: field, Expr: m, Err: err}
	}
	return v, nil
}

// Validate parses m without evaluating it.
func (m Measure) Validate() error {
	if !m.IsSet() {
		return nil
	}
	if _, err := parse(m); err != nil {
		return &Error{Expr: m, Err: err}
	}
	return nil
}

func usesPrev(m Measure) bool {
	if !m.IsSet() {
		return false
	}
	e, err := parse(m)
	return err == nil && e.usesPrev()
}
