package mesh

import (
	"sync"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Surface is the read side of a polygonal mesh plus its mutable attribute
// table. Meshes are owned by the caller; the landmark engine only references
// them.
type Surface interface {
	// Name identifies the mesh. It prefixes ROI array names.
	Name() string

	NumPoints() int
	Point(i int) v3.Vec

	// PointCells returns the cells incident to point i.
	PointCells(i int) []int

	NumCells() int
	// CellPoints returns the vertex list of cell c. Cells may have any valence.
	CellPoints(c int) []int

	PointData() *PointData
}

// PolyMesh is an in-memory Surface made of arbitrary polygons.
type PolyMesh struct {
	name   string
	points []v3.Vec
	cells  [][]int

	linksOnce sync.Once
	links     [][]int // point -> incident cells

	pd *PointData
}

// Compile-time interface check.
var _ Surface = (*PolyMesh)(nil)

// New creates a PolyMesh. The slices are retained, not copied.
func New(name string, points []v3.Vec, cells [][]int) *PolyMesh {
	return &PolyMesh{
		name:   name,
		points: points,
		cells:  cells,
		pd:     NewPointData(len(points)),
	}
}

func (m *PolyMesh) Name() string   { return m.name }
func (m *PolyMesh) NumPoints() int { return len(m.points) }
func (m *PolyMesh) NumCells() int  { return len(m.cells) }

// Point returns the coordinate of vertex i.
func (m *PolyMesh) Point(i int) v3.Vec {
	return m.points[i]
}

// CellPoints returns the vertex list of cell c, or nil if c is out of range.
func (m *PolyMesh) CellPoints(c int) []int {
	if c < 0 || c >= len(m.cells) {
		return nil
	}
	return m.cells[c]
}

// PointCells returns the cells incident to point i, or nil if i is out of
// range. The incidence table is built on first use.
func (m *PolyMesh) PointCells(i int) []int {
	if i < 0 || i >= len(m.points) {
		return nil
	}
	m.linksOnce.Do(m.buildLinks)
	return m.links[i]
}

func (m *PolyMesh) PointData() *PointData {
	return m.pd
}

// buildLinks records, for every point, the cells that use it. Out-of-range
// indices are skipped.
func (m *PolyMesh) buildLinks() {
	m.links = make([][]int, len(m.points))
	for c, cell := range m.cells {
		for _, p := range cell {
			if p < 0 || p >= len(m.points) {
				continue
			}
			// A polygon may list a vertex twice; record the cell once.
			l := m.links[p]
			if len(l) > 0 && l[len(l)-1] == c {
				continue
			}
			m.links[p] = append(l, c)
		}
	}
}
