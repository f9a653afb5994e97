package tessellate_test

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/pickandpaint/pkg/kernel"
	"github.com/chazu/pickandpaint/pkg/kernel/sdfx"
	"github.com/chazu/pickandpaint/pkg/mesh"
	"github.com/chazu/pickandpaint/pkg/tessellate"
	"github.com/chazu/pickandpaint/pkg/topology"
)

// newKernel returns a coarse sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.New(16)
}

func TestWeldSharedEdge(t *testing.T) {
	// Two triangles of a unit square, each with private vertices.
	soup := &kernel.Mesh{
		Vertices: []float32{
			0, 0, 0, 1, 0, 0, 1, 1, 0,
			0, 0, 0, 1, 1, 0, 0, 1, 0,
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
	m, err := tessellate.Weld(soup, "square", 1e-6)
	require.NoError(t, err)
	assert.Equal(t, "square", m.Name())
	assert.Equal(t, 4, m.NumPoints())
	assert.Equal(t, 2, m.NumCells())

	// Vertex 0 sits on the shared diagonal and sees every other corner.
	assert.Equal(t, []int{1, 2, 3}, topology.Neighbors(m, 0).Sorted())
}

func TestWeldDropsCollapsedTriangles(t *testing.T) {
	soup := &kernel.Mesh{
		Vertices: []float32{
			0, 0, 0, 1, 0, 0, 0, 1, 0,
			5, 5, 5, 5.0000001, 5, 5, 6, 5, 5,
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
	m, err := tessellate.Weld(soup, "w", 1e-3)
	require.NoError(t, err)
	assert.Equal(t, 1, m.NumCells())
	assert.Equal(t, 5, m.NumPoints())
}

func TestWeldErrors(t *testing.T) {
	tests := []struct {
		name string
		soup *kernel.Mesh
		tol  float64
	}{
		{"zero tolerance", &kernel.Mesh{}, 0},
		{"ragged vertices", &kernel.Mesh{Vertices: []float32{1, 2}}, 1e-6},
		{"index out of range", &kernel.Mesh{Vertices: []float32{0, 0, 0}, Indices: []uint32{0, 0, 3}}, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tessellate.Weld(tt.soup, "bad", tt.tol)
			assert.Error(t, err)
		})
	}
}

func TestSolidSphereHasAdjacency(t *testing.T) {
	k := newKernel()
	soup, err := k.ToMesh(k.Sphere(10))
	require.NoError(t, err)

	m, err := tessellate.Solid(k, k.Sphere(10), "ball", 1e-4)
	require.NoError(t, err)
	assert.Less(t, m.NumPoints(), soup.VertexCount()/2, "welding shares vertices")
	assert.False(t, mesh.HasErrors(mesh.Validate(m)))

	// On a welded surface two hops reach further than one.
	one, err := topology.GrowRegion(m, 0, 1)
	require.NoError(t, err)
	two, err := topology.GrowRegion(m, 0, 2)
	require.NoError(t, err)
	assert.Greater(t, one.Len(), 1)
	assert.Greater(t, two.Len(), one.Len())
}

func TestTessellatePlacesParts(t *testing.T) {
	k := newKernel()
	parts := []tessellate.Part{
		{Name: "a", Solid: k.Box(10, 10, 10)},
		{Name: "b", Solid: k.Box(10, 10, 10), Translation: v3.Vec{X: 100, Y: 50}},
	}
	meshes, err := tessellate.Tessellate(parts, k, 1e-4)
	require.NoError(t, err)
	require.Len(t, meshes, 2)
	assert.Equal(t, "b", meshes[1].Name())

	var c v3.Vec
	b := meshes[1]
	for i := 0; i < b.NumPoints(); i++ {
		c = c.Add(b.Point(i))
	}
	c = c.DivScalar(float64(b.NumPoints()))
	// Generous tolerance since marching cubes is approximate.
	const tol = 2.0
	assert.InDelta(t, 100, c.X, tol)
	assert.InDelta(t, 50, c.Y, tol)
	assert.InDelta(t, 0, c.Z, tol)

	_, err = tessellate.Tessellate([]tessellate.Part{parts[0], parts[0]}, k, 1e-4)
	assert.ErrorContains(t, err, "duplicate part name")
}

func TestFlatten(t *testing.T) {
	g := mesh.QuadGrid("q", 3, 2, 1)
	flat := tessellate.Flatten(g)

	assert.Equal(t, "q", flat.Name)
	assert.Equal(t, g.NumPoints(), flat.VertexCount())
	assert.Equal(t, 4, flat.TriangleCount(), "two quads fan into four triangles")
	for i := 0; i < flat.VertexCount(); i++ {
		assert.InDelta(t, 1, float64(flat.Normals[3*i+2]), 1e-6, "vertex %d normal", i)
		n := math.Hypot(float64(flat.Normals[3*i]), float64(flat.Normals[3*i+1]))
		assert.InDelta(t, 0, n, 1e-6)
	}
}
