package scene

import (
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	ev Event
	id string
}

func TestMarkupsAddAndNotify(t *testing.T) {
	m := NewMarkups("F")
	var got []recorded
	m.AddObserver(func(ev Event, id string) { got = append(got, recorded{ev, id}) })

	a := m.Add(v3.Vec{X: 1})
	b := m.Add(v3.Vec{Y: 2})
	require.NoError(t, m.SetPosition(a, v3.Vec{Z: 3}))

	assert.Equal(t, []recorded{{PointAdded, a}, {PointAdded, b}, {PointModified, a}}, got)
	assert.Equal(t, []string{a, b}, m.IDs())
	assert.Equal(t, 2, m.Len())

	p, err := m.Point(b)
	require.NoError(t, err)
	assert.Equal(t, "F-2", p.Label)
	assert.Equal(t, 2, p.Ordinal)

	pos, err := m.Position(a)
	require.NoError(t, err)
	assert.Equal(t, v3.Vec{Z: 3}, pos)
}

func TestMarkupsObserverRemoval(t *testing.T) {
	m := NewMarkups("F")
	calls := 0
	tag := m.AddObserver(func(Event, string) { calls++ })
	m.Add(v3.Vec{})
	m.RemoveObserver(tag)
	m.Add(v3.Vec{})
	assert.Equal(t, 1, calls)
}

func TestMarkupsObserverOrder(t *testing.T) {
	m := NewMarkups("F")
	var order []int
	for i := 1; i <= 3; i++ {
		m.AddObserver(func(Event, string) { order = append(order, i) })
	}
	m.Add(v3.Vec{})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestMarkupsLabels(t *testing.T) {
	m := NewMarkups("L")
	a := m.Add(v3.Vec{})
	b := m.Add(v3.Vec{})

	id, err := m.Lookup("L-2")
	require.NoError(t, err)
	assert.Equal(t, b, id)

	assert.ErrorIs(t, m.SetLabel(a, "L-2"), ErrDuplicateLabel)
	require.NoError(t, m.SetLabel(a, "L-2b"))
	require.NoError(t, m.SetLabel(a, "L-2b"))
	_, err = m.Lookup("L-1")
	assert.ErrorIs(t, err, ErrNoPoint)

	// A renamed point frees its label; new points skip labels in use.
	require.NoError(t, m.SetLabel(b, "L-3"))
	c := m.Add(v3.Vec{})
	p, _ := m.Point(c)
	assert.Equal(t, "L-4", p.Label)
	assert.Equal(t, 3, p.Ordinal)
}

func TestMarkupsUnknownPoint(t *testing.T) {
	m := NewMarkups("F")
	_, err := m.Position("nope")
	assert.ErrorIs(t, err, ErrNoPoint)
	assert.ErrorIs(t, m.SetPosition("nope", v3.Vec{}), ErrNoPoint)
	assert.ErrorIs(t, m.SetLabel("nope", "x"), ErrNoPoint)
	_, err = m.Point("nope")
	assert.ErrorIs(t, err, ErrNoPoint)
}

func TestMarkupsVisibility(t *testing.T) {
	m := NewMarkups("F")
	assert.True(t, m.Visible())
	assert.False(t, m.Locked())
	m.SetVisible(false)
	m.SetLocked(true)
	assert.False(t, m.Visible())
	assert.True(t, m.Locked())
}

func TestMarkupsLockedStillEditable(t *testing.T) {
	m := NewMarkups("F")
	a := m.Add(v3.Vec{})
	m.SetLocked(true)
	var got []recorded
	m.AddObserver(func(ev Event, id string) { got = append(got, recorded{ev, id}) })

	b := m.Add(v3.Vec{X: 1})
	require.NoError(t, m.SetPosition(a, v3.Vec{Y: 2}))
	require.NoError(t, m.SetLabel(b, "tip"))

	assert.True(t, m.Locked())
	assert.Equal(t, 2, m.Len())
	pos, err := m.Position(a)
	require.NoError(t, err)
	assert.Equal(t, v3.Vec{Y: 2}, pos)
	id, err := m.Lookup("tip")
	require.NoError(t, err)
	assert.Equal(t, b, id)
	assert.Equal(t, []recorded{{PointAdded, b}, {PointModified, a}}, got)
}

func TestSelection(t *testing.T) {
	s := NewSelection()
	var changes [][2]string
	s.AddObserver(func(prev, next string) { changes = append(changes, [2]string{prev, next}) })

	s.Set("skull")
	s.Set("skull")
	s.Set("jaw")
	assert.Equal(t, "jaw", s.Active())
	assert.Equal(t, [][2]string{{"", "skull"}, {"skull", "jaw"}}, changes)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "point-added", PointAdded.String())
	assert.Equal(t, "point-modified", PointModified.String())
	assert.Equal(t, "unknown", Event(7).String())
}
