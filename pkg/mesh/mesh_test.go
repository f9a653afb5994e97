package mesh

import (
	"image/color"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridLayout(t *testing.T) {
	g := Grid("g", 3, 3, 2)
	assert.Equal(t, "g", g.Name())
	assert.Equal(t, 9, g.NumPoints())
	assert.Equal(t, 8, g.NumCells())
	assert.Equal(t, v3.Vec{X: 2, Y: 4}, g.Point(7))
	assert.Equal(t, 9, g.PointData().NumTuples())
}

func TestGridDegenerateSizes(t *testing.T) {
	assert.Equal(t, 0, Grid("empty", 0, 3, 1).NumPoints())
	line := Grid("line", 4, 1, 1)
	assert.Equal(t, 4, line.NumPoints())
	assert.Equal(t, 0, line.NumCells())
}

func TestPointCells(t *testing.T) {
	g := Grid("g", 3, 3, 1)
	// The center point touches all six triangles around it.
	assert.Len(t, g.PointCells(4), 6)
	// Corner 0 touches both triangles of the first quad.
	assert.Equal(t, []int{0, 1}, g.PointCells(0))
	// Corner 2 sits on the non-diagonal corner of quad (1,0).
	assert.Equal(t, []int{2}, g.PointCells(2))

	assert.Nil(t, g.PointCells(-1))
	assert.Nil(t, g.PointCells(9))
	assert.Nil(t, g.CellPoints(100))
}

func TestPointCellsRepeatedVertex(t *testing.T) {
	pts := []v3.Vec{{}, {X: 1}, {Y: 1}}
	m := New("m", pts, [][]int{{0, 1, 0, 2}})
	assert.Equal(t, []int{0}, m.PointCells(0))
}

func TestPointCellsSkipsOutOfRange(t *testing.T) {
	pts := []v3.Vec{{}, {X: 1}, {Y: 1}}
	m := New("m", pts, [][]int{{0, 1, 7}, {-1, 1, 2}})
	assert.Equal(t, []int{0}, m.PointCells(0))
	assert.Equal(t, []int{0, 1}, m.PointCells(1))
	assert.Equal(t, []int{1}, m.PointCells(2))
}

func TestQuadGrid(t *testing.T) {
	q := QuadGrid("q", 3, 3, 1)
	assert.Equal(t, 9, q.NumPoints())
	assert.Equal(t, 4, q.NumCells())
	assert.Equal(t, []int{0, 1, 4, 3}, q.CellPoints(0))
}

func TestPointDataSetReplace(t *testing.T) {
	pd := NewPointData(3)

	require.NoError(t, pd.Set(&Array{Name: "a", Values: []float64{1, 2, 3}}))
	require.NoError(t, pd.Set(&Array{Name: "b", Values: []float64{0, 0, 0}}))
	assert.Equal(t, []string{"a", "b"}, pd.Names())

	// Same name replaces in place, keeping the table position.
	require.NoError(t, pd.Set(&Array{Name: "a", Values: []float64{9, 9, 9}}))
	assert.Equal(t, 2, pd.Len())
	i, ok := pd.Index("a")
	require.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Equal(t, []float64{9, 9, 9}, pd.At(i).Values)

	err := pd.Set(&Array{Name: "short", Values: []float64{1}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestPointDataLookupMiss(t *testing.T) {
	pd := NewPointData(2)
	_, ok := pd.Index("nope")
	assert.False(t, ok)
	_, err := pd.Array("nope")
	assert.ErrorIs(t, err, ErrArrayNotFound)
	assert.ErrorIs(t, pd.Remove("nope"), ErrArrayNotFound)
	assert.ErrorIs(t, pd.SetActiveScalars("nope"), ErrArrayNotFound)
}

func TestPointDataRemoveActive(t *testing.T) {
	pd := NewPointData(1)
	require.NoError(t, pd.Set(NewArray("roi", 1)))
	require.NoError(t, pd.SetActiveScalars("roi"))
	pd.SetScalarVisibility(true)

	require.NoError(t, pd.Remove("roi"))
	assert.Equal(t, "", pd.ActiveScalars())
	assert.False(t, pd.ScalarVisibility())
	assert.Equal(t, 0, pd.Len())
}

func TestArrayClone(t *testing.T) {
	a := &Array{Name: "x", Values: []float64{1, 0}, Lookup: NewLookupTable(0, 1, color.NRGBA{B: 255, A: 255})}
	c := a.Clone()
	c.Values[0] = 5
	c.Lookup.Colors[0] = color.NRGBA{}
	assert.Equal(t, 1.0, a.Values[0])
	assert.Equal(t, uint8(255), a.Lookup.Colors[0].B)
}

func TestLookupTableMap(t *testing.T) {
	blue := color.NRGBA{B: 255, A: 255}
	red := color.NRGBA{R: 255, A: 255}
	lut := NewLookupTable(0, 1, blue, red)

	assert.Equal(t, blue, lut.Map(0))
	assert.Equal(t, red, lut.Map(1))
	assert.Equal(t, blue, lut.Map(-3))
	assert.Equal(t, red, lut.Map(7))
	assert.Equal(t, color.NRGBA{}, (&LookupTable{}).Map(1))
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#0000FF", color.NRGBA{B: 255, A: 255}, false},
		{"#ff000080", color.NRGBA{R: 255, A: 128}, false},
		{"red", color.NRGBA{}, true},
		{"#zzzzzz", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
