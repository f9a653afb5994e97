// Package topology answers connectivity questions over a polygonal mesh:
// the one-ring of a vertex and the set of vertices within a hop distance.
// Distance is hop count over shared cells, never Euclidean.
package topology

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// ErrVertexOutOfRange is returned when a seed vertex is not a mesh vertex.
var ErrVertexOutOfRange = errors.New("vertex index out of range")

// Incidence is the part of a mesh that region growing needs.
type Incidence interface {
	NumPoints() int
	PointCells(i int) []int
	CellPoints(c int) []int
}

// VertexSet is an unordered set of vertex indices.
type VertexSet map[int]struct{}

// NewVertexSet returns a set holding vs.
func NewVertexSet(vs ...int) VertexSet {
	s := make(VertexSet, len(vs))
	for _, v := range vs {
		s[v] = struct{}{}
	}
	return s
}

func (s VertexSet) Add(v int) { s[v] = struct{}{} }

func (s VertexSet) Has(v int) bool {
	_, ok := s[v]
	return ok
}

func (s VertexSet) Len() int { return len(s) }

// Sorted returns the members in ascending order.
func (s VertexSet) Sorted() []int {
	vs := lo.Keys(s)
	slices.Sort(vs)
	return vs
}

// ContainsAll reports whether every member of o is in s.
func (s VertexSet) ContainsAll(o VertexSet) bool {
	for v := range o {
		if !s.Has(v) {
			return false
		}
	}
	return true
}

// Neighbors returns the one-ring of v: every vertex sharing a cell with v,
// excluding v itself. Cells of any valence are supported. An out-of-range v
// has no neighbors.
func Neighbors(m Incidence, v int) VertexSet {
	ring := make(VertexSet)
	for _, c := range m.PointCells(v) {
		for _, p := range m.CellPoints(c) {
			if p != v {
				ring.Add(p)
			}
		}
	}
	return ring
}

// GrowRegion returns the vertices within hopRadius mesh-graph hops of seed,
// seed included. A hopRadius of 1 or less yields the closed one-ring.
//
// Each pass only expands the vertices added by the previous pass. Expanding
// the whole accumulated set instead adds nothing new, so the result is the
// same set for any traversal order.
func GrowRegion(m Incidence, seed, hopRadius int) (VertexSet, error) {
	if seed < 0 || seed >= m.NumPoints() {
		return nil, fmt.Errorf("topology: seed %d with %d points: %w", seed, m.NumPoints(), ErrVertexOutOfRange)
	}

	region := NewVertexSet(seed)
	frontier := make([]int, 0)
	for v := range Neighbors(m, seed) {
		region.Add(v)
		frontier = append(frontier, v)
	}

	for hop := 1; hop < hopRadius && len(frontier) > 0; hop++ {
		var next []int
		for _, v := range frontier {
			for n := range Neighbors(m, v) {
				if !region.Has(n) {
					region.Add(n)
					next = append(next, n)
				}
			}
		}
		frontier = next
	}
	return region, nil
}
