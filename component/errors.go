package component

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateKey is returned when two siblings under one instance share a key.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrMissingKey is returned by Each when an item produces an empty key.
	ErrMissingKey = errors.New("missing key")
	// ErrDeadInstance is returned when a destroyed instance is asked to update.
	ErrDeadInstance = errors.New("update of destroyed instance")
	// ErrUpdateLoop is returned when an instance keeps scheduling itself.
	ErrUpdateLoop = errors.New("update loop detected")
	// ErrContextProvided is raised when one instance provides a context twice.
	ErrContextProvided = errors.New("context provided twice")
	// ErrNoContextDefault is raised when a required context has no provider.
	ErrNoContextDefault = errors.New("context has no provider and no default")
	// ErrHookOrder is raised when hook calls differ between builds.
	ErrHookOrder = errors.New("hook order changed between builds")
)

// Error is a failure attributed to one instance. For update loops Chain holds
// the reasons that kept the instance rebuilding, oldest first.
type Error struct {
	Path  string
	Err   error
	Chain []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("component")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if len(e.Chain) > 0 {
		fmt.Fprintf(&b, " (after %d updates: %s)", len(e.Chain), strings.Join(trimChain(e.Chain), " <- "))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// trimChain keeps the message readable for long loops.
func trimChain(chain []string) []string {
	const keep = 8
	if len(chain) <= keep {
		return chain
	}
	out := append([]string{}, chain[:keep/2]...)
	out = append(out, fmt.Sprintf("... %d more ...", len(chain)-keep))
	return append(out, chain[len(chain)-keep/2:]...)
}

// fatal reports whether err is a contract violation that error boundaries
// must not swallow.
func fatal(err error) bool {
	for _, target := range []error{
		ErrDuplicateKey, ErrMissingKey, ErrDeadInstance, ErrUpdateLoop,
		ErrContextProvided, ErrNoContextDefault, ErrHookOrder,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
