package locate

import (
	"math/rand"
	"testing"

	"github.com/chazu/pickandpaint/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exhaustive is the reference scan every strategy must agree with.
func exhaustive(m Points, p v3.Vec) int {
	best, bestD := -1, 0.0
	for i := 0; i < m.NumPoints(); i++ {
		d := dist2(p, m.Point(i))
		if best < 0 || closer(d, i, bestD, best) {
			best, bestD = i, d
		}
	}
	return best
}

func cloud(n int, seed int64) *mesh.PolyMesh {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]v3.Vec, n)
	for i := range pts {
		pts[i] = v3.Vec{X: rng.Float64()*20 - 10, Y: rng.Float64()*20 - 10, Z: rng.Float64()*20 - 10}
	}
	return mesh.New("cloud", pts, nil)
}

func strategies(t *testing.T, m Points) map[Strategy]Locator {
	t.Helper()
	out := map[Strategy]Locator{}
	for _, s := range []Strategy{StrategyBruteForce, StrategyRTree} {
		loc, err := New(s, m)
		require.NoError(t, err)
		out[s] = loc
	}
	return out
}

func TestClosestMatchesExhaustiveScan(t *testing.T) {
	meshes := []Points{
		mesh.Grid("grid", 10, 10, 1.5),
		cloud(500, 1),
		cloud(37, 2),
	}
	rng := rand.New(rand.NewSource(99))
	for _, m := range meshes {
		locs := strategies(t, m)
		for q := 0; q < 200; q++ {
			p := v3.Vec{X: rng.Float64()*30 - 10, Y: rng.Float64()*30 - 10, Z: rng.Float64()*6 - 3}
			want := exhaustive(m, p)
			for name, loc := range locs {
				got, err := loc.Closest(p)
				require.NoError(t, err)
				assert.Equal(t, want, got, "%s query %v", name, p)
			}
		}
	}
}

func TestClosestExactVertex(t *testing.T) {
	m := cloud(200, 5)
	for name, loc := range strategies(t, m) {
		for i := 0; i < m.NumPoints(); i += 7 {
			got, err := loc.Closest(m.Point(i))
			require.NoError(t, err)
			assert.Equal(t, i, got, name)
			assert.Zero(t, dist2(m.Point(i), m.Point(got)))
		}
	}
}

func TestClosestTieLowestIndex(t *testing.T) {
	// The query sits exactly between vertices 1 and 2 and equidistant
	// from the four grid corners around the center of a cell.
	pts := []v3.Vec{{X: 10}, {X: -1}, {X: 1}, {Y: 5}}
	m := mesh.New("tie", pts, nil)
	g := mesh.Grid("g", 4, 4, 2)
	for name, loc := range strategies(t, m) {
		got, err := loc.Closest(v3.Vec{})
		require.NoError(t, err)
		assert.Equal(t, 1, got, name)
	}
	for name, loc := range strategies(t, g) {
		got, err := loc.Closest(v3.Vec{X: 3, Y: 3})
		require.NoError(t, err)
		assert.Equal(t, 5, got, name)
	}
}

func TestClosestEmptyMesh(t *testing.T) {
	empty := mesh.New("empty", nil, nil)
	for name, loc := range strategies(t, empty) {
		idx, err := loc.Closest(v3.Vec{X: 1})
		assert.ErrorIs(t, err, ErrEmptyMesh, name)
		assert.Equal(t, -1, idx)
	}
	_, err := ClosestVertex(empty, v3.Vec{})
	assert.ErrorIs(t, err, ErrEmptyMesh)
}

func TestClosestVertexSingle(t *testing.T) {
	m := mesh.New("one", []v3.Vec{{X: 3, Y: 3, Z: 3}}, nil)
	got, err := ClosestVertex(m, v3.Vec{X: -100})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyBruteForce, false},
		{"brute", StrategyBruteForce, false},
		{"rtree", StrategyRTree, false},
		{"kdtree", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := New("kdtree", cloud(3, 1))
	assert.Error(t, err)
}
