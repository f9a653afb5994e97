// Package locate finds the mesh vertex closest to a point in space.
//
// Two strategies are provided: an exhaustive scan and an R-tree index. Both
// return the same vertex for every query: the one with the smallest squared
// Euclidean distance, ties going to the lowest vertex index.
package locate

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrEmptyMesh is returned when a query runs against a mesh with no vertices.
var ErrEmptyMesh = errors.New("mesh has no vertices")

// Points is the part of a mesh a locator reads.
type Points interface {
	NumPoints() int
	Point(i int) v3.Vec
}

// Locator answers nearest-vertex queries for one mesh.
type Locator interface {
	Closest(p v3.Vec) (int, error)
}

// Strategy names a Locator implementation.
type Strategy string

const (
	StrategyBruteForce Strategy = "brute"
	StrategyRTree      Strategy = "rtree"
)

// ParseStrategy validates a strategy name. The empty string selects the
// exhaustive scan.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyBruteForce:
		return StrategyBruteForce, nil
	case StrategyRTree:
		return StrategyRTree, nil
	}
	return "", fmt.Errorf("locate: unknown strategy %q, expected brute or rtree", s)
}

// New builds a locator for m using the given strategy.
func New(s Strategy, m Points) (Locator, error) {
	switch s {
	case "", StrategyBruteForce:
		return NewBruteForce(m), nil
	case StrategyRTree:
		return NewRTree(m), nil
	}
	return nil, fmt.Errorf("locate: unknown strategy %q", s)
}

// ClosestVertex runs an exhaustive scan over m.
func ClosestVertex(m Points, p v3.Vec) (int, error) {
	return NewBruteForce(m).Closest(p)
}

func dist2(a, b v3.Vec) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

// closer orders candidates by distance, then by index.
func closer(d float64, i int, bestD float64, best int) bool {
	return d < bestD || (d == bestD && i < best)
}

// BruteForce scans every vertex on each query.
type BruteForce struct {
	pts Points
}

// NewBruteForce returns an exhaustive locator over m.
func NewBruteForce(m Points) *BruteForce {
	return &BruteForce{pts: m}
}

// Closest returns the index of the vertex nearest p.
func (b *BruteForce) Closest(p v3.Vec) (int, error) {
	n := b.pts.NumPoints()
	if n == 0 {
		return -1, ErrEmptyMesh
	}
	best, bestD := 0, dist2(p, b.pts.Point(0))
	for i := 1; i < n; i++ {
		// Strict comparison keeps the lowest index on ties.
		if d := dist2(p, b.pts.Point(i)); d < bestD {
			best, bestD = i, d
		}
	}
	return best, nil
}
