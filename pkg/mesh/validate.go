package mesh

import "fmt"

// ValidationSeverity indicates whether a validation finding makes a mesh
// unusable or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // mesh is rejected
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Cell     int // offending cell, -1 if not cell-specific
	Point    int // offending point, -1 if not point-specific
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	switch {
	case e.Cell >= 0:
		return fmt.Sprintf("[%s] cell %d: %s", e.Severity, e.Cell, e.Message)
	case e.Point >= 0:
		return fmt.Sprintf("[%s] point %d: %s", e.Severity, e.Point, e.Message)
	default:
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
}

// Validate runs the topology checks on m and returns every finding. An
// empty slice means the mesh is usable. Validate never mutates the mesh.
func Validate(m Surface) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateCellIndices(m)...)
	errs = append(errs, validateDegenerateCells(m)...)
	errs = append(errs, validateIsolatedPoints(m)...)
	return errs
}

// HasErrors reports whether any finding has error severity.
func HasErrors(findings []ValidationError) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// validateCellIndices checks that every cell references existing points.
func validateCellIndices(m Surface) []ValidationError {
	var errs []ValidationError
	n := m.NumPoints()
	for c := 0; c < m.NumCells(); c++ {
		for _, p := range m.CellPoints(c) {
			if p < 0 || p >= n {
				errs = append(errs, ValidationError{
					Cell:     c,
					Point:    -1,
					Message:  fmt.Sprintf("references point %d outside [0, %d)", p, n),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateDegenerateCells flags cells with fewer than two distinct points.
// Such cells contribute no adjacency.
func validateDegenerateCells(m Surface) []ValidationError {
	var errs []ValidationError
	for c := 0; c < m.NumCells(); c++ {
		pts := m.CellPoints(c)
		distinct := make(map[int]struct{}, len(pts))
		for _, p := range pts {
			distinct[p] = struct{}{}
		}
		if len(distinct) < 2 {
			errs = append(errs, ValidationError{
				Cell:     c,
				Point:    -1,
				Message:  fmt.Sprintf("degenerate cell with %d distinct point(s)", len(distinct)),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateIsolatedPoints flags points that belong to no cell. They can still
// be snapped to but have an empty one-ring.
func validateIsolatedPoints(m Surface) []ValidationError {
	var errs []ValidationError
	used := make([]bool, m.NumPoints())
	for c := 0; c < m.NumCells(); c++ {
		for _, p := range m.CellPoints(c) {
			if p >= 0 && p < len(used) {
				used[p] = true
			}
		}
	}
	for p, ok := range used {
		if !ok {
			errs = append(errs, ValidationError{
				Cell:     -1,
				Point:    p,
				Message:  "isolated point belongs to no cell",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}
