// Package scene provides in-memory stand-ins for the host scene: an ordered
// collection of labelled 3D points per mesh that raises notifications when
// points are added or moved, and the active-mesh selection.
package scene

import (
	"errors"
	"fmt"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	// ErrNoPoint is returned when a point ID or label has no match.
	ErrNoPoint = errors.New("no such point")

	// ErrDuplicateLabel is returned when a label is already used in the
	// collection.
	ErrDuplicateLabel = errors.New("label already in use")
)

// Event identifies what happened to a point.
type Event int

const (
	PointAdded Event = iota
	PointModified
)

func (e Event) String() string {
	switch e {
	case PointAdded:
		return "point-added"
	case PointModified:
		return "point-modified"
	default:
		return "unknown"
	}
}

// Observer is called synchronously after a point changes.
type Observer func(ev Event, id string)

// Point is one placed point.
type Point struct {
	ID       string
	Label    string
	Position v3.Vec

	// Ordinal is the 1-based insertion number within the collection.
	Ordinal int
}

// Markups is an ordered collection of points. Points are never removed
// individually; the collection is hidden and locked instead.
type Markups struct {
	prefix string
	points []*Point
	byID   map[string]*Point

	visible bool
	locked  bool

	observers map[int]Observer
	nextTag   int
}

// NewMarkups returns an empty, visible collection. New points are labelled
// prefix-1, prefix-2 and so on.
func NewMarkups(prefix string) *Markups {
	return &Markups{
		prefix:    prefix,
		byID:      make(map[string]*Point),
		visible:   true,
		observers: make(map[int]Observer),
	}
}

// AddObserver registers fn and returns a tag for RemoveObserver.
func (m *Markups) AddObserver(fn Observer) int {
	m.nextTag++
	m.observers[m.nextTag] = fn
	return m.nextTag
}

// RemoveObserver detaches the observer registered under tag.
func (m *Markups) RemoveObserver(tag int) {
	delete(m.observers, tag)
}

func (m *Markups) notify(ev Event, id string) {
	tags := lo.Keys(m.observers)
	slices.Sort(tags)
	for _, tag := range tags {
		if fn, ok := m.observers[tag]; ok {
			fn(ev, id)
		}
	}
}

// Add appends a point at pos and returns its ID.
func (m *Markups) Add(pos v3.Vec) string {
	ordinal := len(m.points) + 1
	label := fmt.Sprintf("%s-%d", m.prefix, ordinal)
	for m.labelInUse(label) {
		ordinal++
		label = fmt.Sprintf("%s-%d", m.prefix, ordinal)
	}
	p := &Point{
		ID:       uuid.NewString(),
		Label:    label,
		Position: pos,
		Ordinal:  len(m.points) + 1,
	}
	m.points = append(m.points, p)
	m.byID[p.ID] = p
	m.notify(PointAdded, p.ID)
	return p.ID
}

func (m *Markups) labelInUse(label string) bool {
	return lo.ContainsBy(m.points, func(p *Point) bool { return p.Label == label })
}

func (m *Markups) get(id string) (*Point, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("scene: point %s: %w", id, ErrNoPoint)
	}
	return p, nil
}

// Point returns a copy of the point with the given ID.
func (m *Markups) Point(id string) (Point, error) {
	p, err := m.get(id)
	if err != nil {
		return Point{}, err
	}
	return *p, nil
}

// Position returns the position of a point.
func (m *Markups) Position(id string) (v3.Vec, error) {
	p, err := m.get(id)
	if err != nil {
		return v3.Vec{}, err
	}
	return p.Position, nil
}

// SetPosition moves a point and raises PointModified.
func (m *Markups) SetPosition(id string, pos v3.Vec) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	p.Position = pos
	m.notify(PointModified, id)
	return nil
}

// SetLabel renames a point. Labels are unique within the collection.
func (m *Markups) SetLabel(id, label string) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	if p.Label == label {
		return nil
	}
	if m.labelInUse(label) {
		return fmt.Errorf("scene: label %q: %w", label, ErrDuplicateLabel)
	}
	p.Label = label
	return nil
}

// Lookup returns the ID of the point with the given label.
func (m *Markups) Lookup(label string) (string, error) {
	p, ok := lo.Find(m.points, func(p *Point) bool { return p.Label == label })
	if !ok {
		return "", fmt.Errorf("scene: label %q: %w", label, ErrNoPoint)
	}
	return p.ID, nil
}

// Len returns the number of points.
func (m *Markups) Len() int { return len(m.points) }

// IDs returns point IDs in insertion order.
func (m *Markups) IDs() []string {
	return lo.Map(m.points, func(p *Point, _ int) string { return p.ID })
}

func (m *Markups) SetVisible(on bool) { m.visible = on }
func (m *Markups) Visible() bool      { return m.visible }

// SetLocked flags the collection as locked for the host, which should refuse
// interactive edits while it is set. The flag is display state only: Markups
// applies every edit it is given, including programmatic ones.
func (m *Markups) SetLocked(on bool) { m.locked = on }
func (m *Markups) Locked() bool      { return m.locked }
