// Package tessellate turns kernel solids into shared-vertex surfaces and
// flattens surfaces back into render arrays.
//
// Kernels emit triangle soups: every triangle owns three private vertices,
// so the soup has no adjacency. Weld merges coincident vertices, which is
// what gives the result a one-ring for landmark region growing.
package tessellate

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/pickandpaint/pkg/kernel"
	"github.com/chazu/pickandpaint/pkg/mesh"
)

// Part is a named solid with an optional placement.
type Part struct {
	Name  string
	Solid kernel.Solid

	// Rotation holds Euler angles in degrees, applied before Translation.
	Rotation    v3.Vec
	Translation v3.Vec
}

// Tessellate meshes and welds every part. Names must be unique since they
// become mesh names.
func Tessellate(parts []Part, k kernel.Kernel, tol float64) ([]*mesh.PolyMesh, error) {
	seen := make(map[string]bool, len(parts))
	out := make([]*mesh.PolyMesh, 0, len(parts))
	for _, p := range parts {
		if p.Name == "" {
			return nil, fmt.Errorf("tessellate: part without a name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("tessellate: duplicate part name %q", p.Name)
		}
		seen[p.Name] = true

		// Apply rotation first, then translation.
		solid := p.Solid
		if r := p.Rotation; r.X != 0 || r.Y != 0 || r.Z != 0 {
			solid = k.Rotate(solid, r.X, r.Y, r.Z)
		}
		if t := p.Translation; t.X != 0 || t.Y != 0 || t.Z != 0 {
			solid = k.Translate(solid, t.X, t.Y, t.Z)
		}
		m, err := Solid(k, solid, p.Name, tol)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Solid meshes one solid and welds the result.
func Solid(k kernel.Kernel, s kernel.Solid, name string, tol float64) (*mesh.PolyMesh, error) {
	soup, err := k.ToMesh(s)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", name, err)
	}
	return Weld(soup, name, tol)
}

type weldKey [3]int64

// Weld merges soup vertices that fall in the same tol-sized cell and drops
// triangles that collapse as a result. Points keep first-seen order.
func Weld(soup *kernel.Mesh, name string, tol float64) (*mesh.PolyMesh, error) {
	if tol <= 0 {
		return nil, fmt.Errorf("tessellate: weld %s: tolerance %g is not positive", name, tol)
	}
	if len(soup.Vertices)%3 != 0 || len(soup.Indices)%3 != 0 {
		return nil, fmt.Errorf("tessellate: weld %s: flat arrays are not multiples of 3", name)
	}

	n := soup.VertexCount()
	index := make(map[weldKey]int, n/3)
	remap := make([]int, n)
	var points []v3.Vec
	for i := range remap {
		p := soup.Vertex(i)
		key := weldKey{
			int64(math.Round(p[0] / tol)),
			int64(math.Round(p[1] / tol)),
			int64(math.Round(p[2] / tol)),
		}
		j, ok := index[key]
		if !ok {
			j = len(points)
			index[key] = j
			points = append(points, v3.Vec{X: p[0], Y: p[1], Z: p[2]})
		}
		remap[i] = j
	}

	cells := make([][]int, 0, soup.TriangleCount())
	for t := 0; t < soup.TriangleCount(); t++ {
		var tri [3]int
		for j := range tri {
			v := int(soup.Indices[3*t+j])
			if v >= n {
				return nil, fmt.Errorf("tessellate: weld %s: triangle %d references vertex %d of %d", name, t, v, n)
			}
			tri[j] = remap[v]
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			continue
		}
		cells = append(cells, tri[:])
	}
	return mesh.New(name, points, cells), nil
}

// Flatten converts a surface into render arrays. Polygons are fanned into
// triangles; each vertex normal is the area-weighted mean of its face
// normals.
func Flatten(m mesh.Surface) *kernel.Mesh {
	n := m.NumPoints()
	out := &kernel.Mesh{
		Vertices: make([]float32, 0, 3*n),
		Normals:  make([]float32, 3*n),
		Name:     m.Name(),
	}
	for i := 0; i < n; i++ {
		p := m.Point(i)
		out.Vertices = append(out.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
	}

	acc := make([]v3.Vec, n)
	for c := 0; c < m.NumCells(); c++ {
		pts := m.CellPoints(c)
		for j := 1; j+1 < len(pts); j++ {
			a, b, d := pts[0], pts[j], pts[j+1]
			out.Indices = append(out.Indices, uint32(a), uint32(b), uint32(d))
			// Cross product length is twice the area, which weights the sum.
			fn := m.Point(b).Sub(m.Point(a)).Cross(m.Point(d).Sub(m.Point(a)))
			acc[a] = acc[a].Add(fn)
			acc[b] = acc[b].Add(fn)
			acc[d] = acc[d].Add(fn)
		}
	}
	for i, v := range acc {
		if l := v.Length(); l > 0 {
			v = v.DivScalar(l)
		}
		out.Normals[3*i] = float32(v.X)
		out.Normals[3*i+1] = float32(v.Y)
		out.Normals[3*i+2] = float32(v.Z)
	}
	return out
}
