package landmark

import (
	"fmt"

	"github.com/chazu/pickandpaint/pkg/mesh"
	"github.com/chazu/pickandpaint/pkg/scene"
)

// Mode is the propagation strategy of a reference mesh.
type Mode int

const (
	ModeUnset Mode = iota
	// ModeCorrespondent shares ROI arrays with meshes that have the same
	// vertex indexing.
	ModeCorrespondent
	// ModeNonCorrespondent re-snaps and re-grows every ROI on each target.
	ModeNonCorrespondent
)

func (m Mode) String() string {
	switch m {
	case ModeUnset:
		return "unset"
	case ModeCorrespondent:
		return "correspondent"
	case ModeNonCorrespondent:
		return "non-correspondent"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "correspondent":
		return ModeCorrespondent, nil
	case "non-correspondent", "noncorrespondent":
		return ModeNonCorrespondent, nil
	}
	return ModeUnset, fmt.Errorf("landmark: unknown propagation mode %q", s)
}

// Snap is the vertex a landmark was last snapped to. The zero value means
// the landmark has never been snapped.
type Snap struct {
	index int
	ok    bool
}

func snapTo(i int) Snap { return Snap{index: i, ok: true} }

// Index returns the snapped vertex and whether one is set.
func (s Snap) Index() (int, bool) { return s.index, s.ok }

// State is the engine's record for one placed landmark.
type State struct {
	ID    string // point ID in the owning markups collection
	Label string

	// Scale is the glyph size. Cosmetic only.
	Scale float64

	// Radius is the ROI extent in hops; 0 means no ROI.
	Radius int

	Snapped Snap

	// ArrayName is derived from the mesh name and the landmark ordinal and
	// never changes.
	ArrayName string

	FollowsSurface bool
	Propagated     bool
}

// ArrayName returns the ROI array name for the ordinal-th landmark of a mesh.
func ArrayName(meshName string, ordinal int) string {
	return fmt.Sprintf("%s_ROI_%d", meshName, ordinal)
}

// Entry is the working state of one reference mesh.
type Entry struct {
	Mesh    mesh.Surface
	Markups *scene.Markups

	// Landmarks is keyed by point ID.
	Landmarks map[string]*State

	// Targets holds the meshes that receive propagated ROIs, by name.
	Targets map[string]mesh.Surface

	Mode Mode

	selected string // point ID whose ROI is on display
	tag      int    // markups observer tag
}

func newEntry(m mesh.Surface, prefix string) *Entry {
	return &Entry{
		Mesh:      m,
		Markups:   scene.NewMarkups(prefix),
		Landmarks: make(map[string]*State),
		Targets:   make(map[string]mesh.Surface),
	}
}
