package mesh

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrArrayNotFound is returned when a named point array does not exist.
	ErrArrayNotFound = errors.New("point array not found")

	// ErrLengthMismatch is returned when an array does not have one value
	// per mesh point.
	ErrLengthMismatch = errors.New("array length does not match point count")
)

// Array is a named per-point scalar array.
type Array struct {
	Name   string
	Values []float64

	// Lookup maps scalar values to display colors. May be nil.
	Lookup *LookupTable
}

// NewArray returns an array of n zero values.
func NewArray(name string, n int) *Array {
	return &Array{Name: name, Values: make([]float64, n)}
}

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	c := &Array{Name: a.Name, Values: slices.Clone(a.Values)}
	if a.Lookup != nil {
		c.Lookup = a.Lookup.Clone()
	}
	return c
}

// PointData is the per-point attribute table of a mesh together with its
// display binding.
type PointData struct {
	numTuples int
	arrays    []*Array

	active           string
	scalarVisibility bool
}

// NewPointData returns an empty table for a mesh with n points.
func NewPointData(n int) *PointData {
	return &PointData{numTuples: n}
}

// NumTuples returns the number of values every array must hold.
func (pd *PointData) NumTuples() int { return pd.numTuples }

// Len returns the number of arrays in the table.
func (pd *PointData) Len() int { return len(pd.arrays) }

// Names returns the array names in table order.
func (pd *PointData) Names() []string {
	names := make([]string, len(pd.arrays))
	for i, a := range pd.arrays {
		names[i] = a.Name
	}
	return names
}

// Index returns the table position of the named array.
func (pd *PointData) Index(name string) (int, bool) {
	for i, a := range pd.arrays {
		if a.Name == name {
			return i, true
		}
	}
	return -1, false
}

// At returns the array at table position i.
func (pd *PointData) At(i int) *Array {
	return pd.arrays[i]
}

// Array returns the named array.
func (pd *PointData) Array(name string) (*Array, error) {
	i, ok := pd.Index(name)
	if !ok {
		return nil, fmt.Errorf("mesh: %q: %w", name, ErrArrayNotFound)
	}
	return pd.arrays[i], nil
}

// Set stores a, replacing any array with the same name in place.
func (pd *PointData) Set(a *Array) error {
	if len(a.Values) != pd.numTuples {
		return fmt.Errorf("mesh: set %q: %d values for %d points: %w",
			a.Name, len(a.Values), pd.numTuples, ErrLengthMismatch)
	}
	if i, ok := pd.Index(a.Name); ok {
		pd.arrays[i] = a
		return nil
	}
	pd.arrays = append(pd.arrays, a)
	return nil
}

// Remove deletes the named array. Removing the active array also clears the
// display binding.
func (pd *PointData) Remove(name string) error {
	i, ok := pd.Index(name)
	if !ok {
		return fmt.Errorf("mesh: remove %q: %w", name, ErrArrayNotFound)
	}
	pd.arrays = slices.Delete(pd.arrays, i, i+1)
	if pd.active == name {
		pd.active = ""
		pd.scalarVisibility = false
	}
	return nil
}

// SetActiveScalars binds the named array for display.
func (pd *PointData) SetActiveScalars(name string) error {
	if _, ok := pd.Index(name); !ok {
		return fmt.Errorf("mesh: activate %q: %w", name, ErrArrayNotFound)
	}
	pd.active = name
	return nil
}

// ActiveScalars returns the name of the array bound for display, or "".
func (pd *PointData) ActiveScalars() string { return pd.active }

// SetScalarVisibility enables or disables scalar-based coloring.
func (pd *PointData) SetScalarVisibility(on bool) { pd.scalarVisibility = on }

// ScalarVisibility reports whether scalar-based coloring is enabled.
func (pd *PointData) ScalarVisibility() bool { return pd.scalarVisibility }
