package mesh

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Grid returns an nx-by-ny grid of points in the z=0 plane, triangulated
// with two triangles per quad. Vertex (i, j) has index j*nx + i and sits at
// (i*spacing, j*spacing, 0). Each quad is split along the diagonal from
// (i, j) to (i+1, j+1).
func Grid(name string, nx, ny int, spacing float64) *PolyMesh {
	if nx < 1 || ny < 1 {
		return New(name, nil, nil)
	}
	points := make([]v3.Vec, 0, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			points = append(points, v3.Vec{X: float64(i) * spacing, Y: float64(j) * spacing})
		}
	}
	var cells [][]int
	for j := 0; j+1 < ny; j++ {
		for i := 0; i+1 < nx; i++ {
			a := j*nx + i
			b := a + 1
			c := a + nx
			d := c + 1
			cells = append(cells, []int{a, b, d}, []int{a, d, c})
		}
	}
	return New(name, points, cells)
}

// QuadGrid is like Grid but keeps each quad as a single four-vertex cell.
func QuadGrid(name string, nx, ny int, spacing float64) *PolyMesh {
	g := Grid(name, nx, ny, spacing)
	var cells [][]int
	for j := 0; j+1 < ny; j++ {
		for i := 0; i+1 < nx; i++ {
			a := j*nx + i
			cells = append(cells, []int{a, a + 1, a + nx + 1, a + nx})
		}
	}
	return New(name, g.points, cells)
}
