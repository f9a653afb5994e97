// Package roi stores a region of interest as a per-point scalar array on a
// mesh and binds it for display. A vertex inside the region holds Inside,
// every other vertex holds Outside.
package roi

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/chazu/pickandpaint/pkg/mesh"
	"github.com/chazu/pickandpaint/pkg/topology"
)

const (
	Outside = 0.0
	Inside  = 1.0
)

// ErrVertexOutOfRange is returned when a region names a vertex the mesh
// does not have.
var ErrVertexOutOfRange = errors.New("region vertex out of range")

// DefaultLookupTable maps Outside to blue and Inside to red.
func DefaultLookupTable() *mesh.LookupTable {
	return mesh.NewLookupTable(Outside, Inside,
		color.NRGBA{B: 0xff, A: 0xff},
		color.NRGBA{R: 0xff, A: 0xff},
	)
}

// Write materializes region as the array name on m. An existing array of
// that name is overwritten in place; no value from a previous region
// survives. A nil lut selects DefaultLookupTable.
func Write(m mesh.Surface, name string, region topology.VertexSet, lut *mesh.LookupTable) error {
	n := m.NumPoints()
	values := make([]float64, n)
	for v := range region {
		if v < 0 || v >= n {
			return fmt.Errorf("roi: write %q on %s: vertex %d with %d points: %w",
				name, m.Name(), v, n, ErrVertexOutOfRange)
		}
		values[v] = Inside
	}
	if lut == nil {
		lut = DefaultLookupTable()
	} else {
		lut = lut.Clone()
	}
	if err := m.PointData().Set(&mesh.Array{Name: name, Values: values, Lookup: lut}); err != nil {
		return fmt.Errorf("roi: write %q on %s: %w", name, m.Name(), err)
	}
	return nil
}

// Show makes name the active scalar array of m and enables scalar coloring.
// Calling it again with the same name changes nothing.
func Show(m mesh.Surface, name string) error {
	pd := m.PointData()
	if err := pd.SetActiveScalars(name); err != nil {
		return fmt.Errorf("roi: show %q on %s: %w", name, m.Name(), err)
	}
	pd.SetScalarVisibility(true)
	return nil
}

// Hide disables scalar coloring on m if name is the array being shown.
// The array itself is kept.
func Hide(m mesh.Surface, name string) {
	pd := m.PointData()
	if pd.ActiveScalars() == name {
		pd.SetScalarVisibility(false)
	}
}

// Find returns the table index of the named array on m.
func Find(m mesh.Surface, name string) (int, bool) {
	return m.PointData().Index(name)
}

// Copy shares the named array of src with dst, replacing any array of that
// name on dst. The meshes must have the same vertex count; indices are
// assumed to correspond one to one.
func Copy(src, dst mesh.Surface, name string) error {
	a, err := src.PointData().Array(name)
	if err != nil {
		return fmt.Errorf("roi: copy from %s: %w", src.Name(), err)
	}
	if src.NumPoints() != dst.NumPoints() {
		return fmt.Errorf("roi: copy %q from %s (%d points) to %s (%d points): %w",
			name, src.Name(), src.NumPoints(), dst.Name(), dst.NumPoints(), mesh.ErrLengthMismatch)
	}
	if err := dst.PointData().Set(a.Clone()); err != nil {
		return fmt.Errorf("roi: copy %q to %s: %w", name, dst.Name(), err)
	}
	return nil
}

// Members returns the ascending vertex indices marked Inside by the named
// array.
func Members(m mesh.Surface, name string) ([]int, error) {
	a, err := m.PointData().Array(name)
	if err != nil {
		return nil, fmt.Errorf("roi: members of %s: %w", m.Name(), err)
	}
	var out []int
	for i, v := range a.Values {
		if v == Inside {
			out = append(out, i)
		}
	}
	return out, nil
}

// Remove deletes the named array from m if present.
func Remove(m mesh.Surface, name string) bool {
	return m.PointData().Remove(name) == nil
}
