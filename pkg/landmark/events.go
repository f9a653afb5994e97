package landmark

import (
	"github.com/chazu/pickandpaint/pkg/scene"
)

// onMarkupEvent is the markups observer of every reference entry. Each
// notification from outside runs exactly one handler; the notifications
// raised by the handler's own position write-back are dropped.
func (s *Session) onMarkupEvent(e *Entry, ev scene.Event, id string) {
	if s.handling {
		return
	}
	s.handling = true
	defer func() { s.handling = false }()

	var err error
	switch ev {
	case scene.PointAdded:
		err = s.landmarkAdded(e, id)
	case scene.PointModified:
		err = s.landmarkMoved(e, id)
	}
	if err != nil {
		s.log.Warn("landmark event", "event", ev.String(), "mesh", e.Mesh.Name(), "err", err)
		s.pending = append(s.pending, err)
	}
}

func (s *Session) landmarkAdded(e *Entry, id string) error {
	p, err := e.Markups.Point(id)
	if err != nil {
		return s.wrap("add landmark", e, nil, err)
	}
	st := &State{
		ID:             id,
		Label:          p.Label,
		Scale:          s.opts.Scale,
		ArrayName:      ArrayName(e.Mesh.Name(), p.Ordinal),
		FollowsSurface: s.opts.FollowSurface,
	}
	e.Landmarks[id] = st
	s.log.Debug("landmark added", "mesh", e.Mesh.Name(), "landmark", st.Label, "array", st.ArrayName)

	if err := s.snap(e, st); err != nil {
		return err
	}
	if s.opts.Radius == 0 {
		return nil
	}
	st.Radius = s.opts.Radius
	st.FollowsSurface = true
	e.selected = id
	return s.refresh(e, st)
}

func (s *Session) landmarkMoved(e *Entry, id string) error {
	st, ok := e.Landmarks[id]
	if !ok {
		return newError(KindNotFound, "move landmark", e.Mesh.Name(), id, "", nil)
	}
	if st.FollowsSurface {
		if err := s.snap(e, st); err != nil {
			return err
		}
	}
	if st.Radius > 0 {
		if err := s.refresh(e, st); err != nil {
			return err
		}
	}
	if st.Propagated {
		return s.repropagate(e, st)
	}
	return nil
}
