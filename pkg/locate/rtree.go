package locate

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
)

const (
	// Branching factors for the R-tree nodes.
	rtreeMinChildren = 25
	rtreeMaxChildren = 50

	// pointTolerance is the half-size of the box stored for each vertex.
	pointTolerance = 1e-9
)

// indexedPoint is a mesh vertex stored in the R-tree.
type indexedPoint struct {
	index int
	rect  rtreego.Rect
}

func (ip *indexedPoint) Bounds() rtreego.Rect {
	return ip.rect
}

// RTree answers queries through a bulk-loaded R-tree. The nearest-neighbor
// hit is refined with a box search so equidistant vertices resolve to the
// lowest index, matching BruteForce.
type RTree struct {
	pts  Points
	tree *rtreego.Rtree
}

// NewRTree indexes every vertex of m. The index is built once; meshes are
// not edited after they are handed to the engine.
func NewRTree(m Points) *RTree {
	n := m.NumPoints()
	objs := make([]rtreego.Spatial, n)
	for i := 0; i < n; i++ {
		objs[i] = &indexedPoint{index: i, rect: toPoint(m.Point(i)).ToRect(pointTolerance)}
	}
	return &RTree{
		pts:  m,
		tree: rtreego.NewTree(3, rtreeMinChildren, rtreeMaxChildren, objs...),
	}
}

func toPoint(v v3.Vec) rtreego.Point {
	return rtreego.Point{v.X, v.Y, v.Z}
}

// Closest returns the index of the vertex nearest p.
func (r *RTree) Closest(p v3.Vec) (int, error) {
	if r.pts.NumPoints() == 0 || r.tree.Size() == 0 {
		return -1, ErrEmptyMesh
	}
	hit, ok := r.tree.NearestNeighbor(toPoint(p)).(*indexedPoint)
	if !ok {
		return -1, ErrEmptyMesh
	}
	best, bestD := hit.index, dist2(p, r.pts.Point(hit.index))

	// Every vertex at least as close as the hit lies inside this box.
	half := math.Sqrt(bestD) + 2*pointTolerance + 1e-12*(1+math.Abs(p.X)+math.Abs(p.Y)+math.Abs(p.Z))
	box, err := rtreego.NewRect(
		rtreego.Point{p.X - half, p.Y - half, p.Z - half},
		[]float64{2 * half, 2 * half, 2 * half},
	)
	if err != nil {
		return -1, fmt.Errorf("locate: search box: %w", err)
	}
	for _, s := range r.tree.SearchIntersect(box) {
		ip := s.(*indexedPoint)
		if d := dist2(p, r.pts.Point(ip.index)); closer(d, ip.index, bestD, best) {
			best, bestD = ip.index, d
		}
	}
	return best, nil
}
