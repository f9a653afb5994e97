package landmark

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/chazu/pickandpaint/pkg/mesh"
	"github.com/chazu/pickandpaint/pkg/roi"
	"github.com/chazu/pickandpaint/pkg/topology"
)

// AddTarget marks target as a receiver of ref's ROIs. Targets added after
// the first propagation are reached by the next change.
func (s *Session) AddTarget(ref, target string) error {
	const op = "add target"
	if ref == target {
		return newError(KindInvalidArgument, op, ref, "", "", errors.New("a mesh cannot target itself"))
	}
	e, err := s.ensureEntry(op, ref)
	if err != nil {
		return err
	}
	t, err := s.Mesh(target)
	if err != nil {
		return err
	}
	e.Targets[target] = t
	return nil
}

// RemoveTarget stops propagating ref's ROIs to target. Arrays already on
// the target are kept.
func (s *Session) RemoveTarget(ref, target string) error {
	const op = "remove target"
	e, err := s.entry(op, ref)
	if err != nil {
		return err
	}
	if _, ok := e.Targets[target]; !ok {
		return newError(KindNotFound, op, target, "", "", fmt.Errorf("not a target of %s", ref))
	}
	delete(e.Targets, target)
	return nil
}

// Targets returns the names of ref's targets in ascending order.
func (s *Session) Targets(ref string) []string {
	e, ok := s.entries[ref]
	if !ok {
		return nil
	}
	return lo.Map(s.sortedTargets(e), func(m mesh.Surface, _ int) string { return m.Name() })
}

// Mode returns the propagation mode of a reference mesh.
func (s *Session) Mode(ref string) Mode {
	if e, ok := s.entries[ref]; ok {
		return e.Mode
	}
	return ModeUnset
}

// Propagate pushes every landmark ROI of ref to all of its targets. The
// mode is fixed by the first propagation; asking for another one fails with
// a ModeConflict until ClearPropagation is called. Each failure aborts only
// its own landmark and target; the failures are joined.
func (s *Session) Propagate(ref string, mode Mode) error {
	e, err := s.beginPropagation("propagate", ref, mode)
	if err != nil || e == nil {
		return err
	}
	var errs []error
	for _, id := range e.Markups.IDs() {
		st, ok := e.Landmarks[id]
		if !ok {
			continue
		}
		if err := s.propagateLandmark(e, st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PropagateLandmark pushes one landmark ROI of ref to all of its targets.
func (s *Session) PropagateLandmark(ref, key string, mode Mode) error {
	const op = "propagate landmark"
	e, err := s.entry(op, ref)
	if err != nil {
		return err
	}
	st, err := s.resolve(op, e, key)
	if err != nil {
		return err
	}
	e, err = s.beginPropagation(op, ref, mode)
	if err != nil || e == nil {
		return err
	}
	return s.propagateLandmark(e, st)
}

// beginPropagation checks the mode and fixes it on the entry. A nil entry
// with a nil error means there is nothing to propagate to.
func (s *Session) beginPropagation(op, ref string, mode Mode) (*Entry, error) {
	e, err := s.entry(op, ref)
	if err != nil {
		return nil, err
	}
	if mode != ModeCorrespondent && mode != ModeNonCorrespondent {
		return nil, newError(KindInvalidArgument, op, ref, "", "", fmt.Errorf("mode %s", mode))
	}
	if e.Mode != ModeUnset && e.Mode != mode {
		return nil, newError(KindModeConflict, op, ref, "", "",
			fmt.Errorf("mesh already propagated as %s, requested %s", e.Mode, mode))
	}
	if len(e.Targets) == 0 {
		s.log.Debug("nothing to propagate to", "mesh", ref)
		return nil, nil
	}
	e.Mode = mode
	return e, nil
}

func (s *Session) propagateLandmark(e *Entry, st *State) error {
	const op = "propagate"
	if st.Radius == 0 {
		return newError(KindNoROIDefined, op, e.Mesh.Name(), st.Label, st.ArrayName,
			errors.New("radius is 0"))
	}
	if _, ok := roi.Find(e.Mesh, st.ArrayName); !ok {
		return newError(KindNoROIDefined, op, e.Mesh.Name(), st.Label, st.ArrayName,
			errors.New("ROI array was never written"))
	}
	var errs []error
	reached := false
	for _, t := range s.sortedTargets(e) {
		if err := s.propagateTo(e, st, t); err != nil {
			s.log.Warn("propagation failed", "mesh", e.Mesh.Name(), "target", t.Name(),
				"landmark", st.Label, "err", err)
			errs = append(errs, err)
			continue
		}
		reached = true
	}
	if reached {
		st.Propagated = true
	}
	return errors.Join(errs...)
}

// repropagate repeats the fixed-mode propagation of a landmark on every
// current target.
func (s *Session) repropagate(e *Entry, st *State) error {
	if st.Radius == 0 {
		return nil
	}
	var errs []error
	for _, t := range s.sortedTargets(e) {
		if err := s.propagateTo(e, st, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) propagateTo(e *Entry, st *State, t mesh.Surface) error {
	const op = "propagate"
	switch e.Mode {
	case ModeCorrespondent:
		if e.Mesh.NumPoints() != t.NumPoints() {
			return newError(KindInvalidTopologyAssumption, op, t.Name(), st.Label, st.ArrayName,
				fmt.Errorf("%s has %d points, %s has %d",
					e.Mesh.Name(), e.Mesh.NumPoints(), t.Name(), t.NumPoints()))
		}
		if err := roi.Copy(e.Mesh, t, st.ArrayName); err != nil {
			return s.wrapOn(op, t.Name(), st, err)
		}
	case ModeNonCorrespondent:
		pos, err := e.Markups.Position(st.ID)
		if err != nil {
			return s.wrap(op, e, st, err)
		}
		center, err := s.closest(t, pos)
		if err != nil {
			return s.wrapOn(op, t.Name(), st, err)
		}
		region, err := topology.GrowRegion(t, center, st.Radius)
		if err != nil {
			return s.wrapOn(op, t.Name(), st, err)
		}
		if err := roi.Write(t, st.ArrayName, region, s.opts.Lookup); err != nil {
			return s.wrapOn(op, t.Name(), st, err)
		}
	default:
		return newError(KindInvalidArgument, op, e.Mesh.Name(), st.Label, st.ArrayName,
			errors.New("propagation mode is unset"))
	}
	// A target shows only the ROI of the landmark selected on its reference.
	if e.selected == st.ID {
		if err := roi.Show(t, st.ArrayName); err != nil {
			return s.wrapOn(op, t.Name(), st, err)
		}
	}
	s.log.Debug("ROI propagated", "mesh", e.Mesh.Name(), "target", t.Name(),
		"array", st.ArrayName, "mode", e.Mode.String())
	return nil
}

// ClearPropagation forgets ref's propagation mode and every landmark's
// propagated flag, so the next Propagate may pick any mode. ROIs already on
// targets are hidden but kept.
func (s *Session) ClearPropagation(ref string) error {
	e, err := s.entry("clear propagation", ref)
	if err != nil {
		return err
	}
	e.Mode = ModeUnset
	for _, st := range e.Landmarks {
		if st.Propagated {
			for _, t := range e.Targets {
				roi.Hide(t, st.ArrayName)
			}
		}
		st.Propagated = false
	}
	return nil
}
