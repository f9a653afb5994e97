package landmark

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a recoverable engine failure. Every kind aborts only the
// landmark/target operation that raised it.
type Kind int

const (
	KindNotFound                  Kind = iota + 1 // landmark, array or mesh has no match
	KindEmptyMesh                                 // nearest-point query on a mesh without vertices
	KindNoROIDefined                              // propagation of a landmark without an ROI
	KindInvalidTopologyAssumption                 // correspondent copy between meshes of different size
	KindModeConflict                              // propagation mode changed after first propagation
	KindInvalidArgument                           // bad radius, self-target, invalid mesh
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindEmptyMesh:
		return "empty mesh"
	case KindNoROIDefined:
		return "no ROI defined"
	case KindInvalidTopologyAssumption:
		return "invalid topology assumption"
	case KindModeConflict:
		return "mode conflict"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrEmptyMesh                 = &Error{Kind: KindEmptyMesh}
	ErrNoROIDefined              = &Error{Kind: KindNoROIDefined}
	ErrInvalidTopologyAssumption = &Error{Kind: KindInvalidTopologyAssumption}
	ErrModeConflict              = &Error{Kind: KindModeConflict}
	ErrInvalidArgument           = &Error{Kind: KindInvalidArgument}
)

// Error carries the failure kind and the context the interface layer needs
// to build a message.
type Error struct {
	Kind     Kind
	Op       string // engine operation, e.g. "propagate"
	Mesh     string // mesh the operation ran against
	Landmark string // landmark label
	Array    string // ROI array name
	Err      error  // underlying cause
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("landmark: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	var ctx []string
	if e.Mesh != "" {
		ctx = append(ctx, "mesh="+e.Mesh)
	}
	if e.Landmark != "" {
		ctx = append(ctx, "landmark="+e.Landmark)
	}
	if e.Array != "" {
		ctx = append(ctx, "array="+e.Array)
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the package sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, op, mesh, label, array string, err error) *Error {
	return &Error{Kind: kind, Op: op, Mesh: mesh, Landmark: label, Array: array, Err: err}
}
