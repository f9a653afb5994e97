package landmark

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"

	"github.com/chazu/pickandpaint/pkg/locate"
	"github.com/chazu/pickandpaint/pkg/mesh"
	"github.com/chazu/pickandpaint/pkg/roi"
	"github.com/chazu/pickandpaint/pkg/scene"
	"github.com/chazu/pickandpaint/pkg/topology"
)

// Options configures a Session.
type Options struct {
	// Radius is the hop radius given to new landmarks. 0 means no ROI.
	Radius int
	// Scale is the glyph size given to new landmarks.
	Scale float64
	// FollowSurface is the initial surface-follow flag of new landmarks.
	FollowSurface bool
	// LabelPrefix prefixes generated landmark labels.
	LabelPrefix string
	// Locator selects the nearest-vertex strategy.
	Locator locate.Strategy
	// Lookup colors ROI arrays. Nil selects roi.DefaultLookupTable.
	Lookup *mesh.LookupTable
	// Logger receives debug and warning records. Nil selects slog.Default.
	Logger *slog.Logger
}

// DefaultOptions returns radius 0, scale 2, surface following on, label
// prefix "F" and the exhaustive locator.
func DefaultOptions() Options {
	return Options{
		Scale:         2.0,
		FollowSurface: true,
		LabelPrefix:   "F",
		Locator:       locate.StrategyBruteForce,
	}
}

// Session holds every reference mesh entry of one editing session and
// reacts to landmark notifications. A Session is not safe for concurrent
// use; the host must deliver notifications from a single goroutine.
type Session struct {
	opts Options
	log  *slog.Logger

	meshes   map[string]mesh.Surface
	order    []string
	entries  map[string]*Entry
	locators map[string]locate.Locator

	selection *scene.Selection

	// handling is set while a notification handler or a position
	// write-back runs. Notifications that arrive while it is set are
	// the handler's own echoes and are dropped.
	handling bool

	// pending collects errors raised inside notification handlers. A
	// public call returns the ones its own notifications raised; the rest
	// wait for Errors.
	pending []error
}

// NewSession returns an empty session.
func NewSession(opts Options) (*Session, error) {
	if opts.Radius < 0 {
		return nil, newError(KindInvalidArgument, "new session", "", "", "",
			fmt.Errorf("radius %d is negative", opts.Radius))
	}
	if opts.Scale <= 0 {
		return nil, newError(KindInvalidArgument, "new session", "", "", "",
			fmt.Errorf("scale %g is not positive", opts.Scale))
	}
	if opts.LabelPrefix == "" {
		opts.LabelPrefix = DefaultOptions().LabelPrefix
	}
	strategy, err := locate.ParseStrategy(string(opts.Locator))
	if err != nil {
		return nil, newError(KindInvalidArgument, "new session", "", "", "", err)
	}
	opts.Locator = strategy

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		opts:      opts,
		log:       logger,
		meshes:    make(map[string]mesh.Surface),
		entries:   make(map[string]*Entry),
		locators:  make(map[string]locate.Locator),
		selection: scene.NewSelection(),
	}
	s.selection.AddObserver(func(_, next string) { s.applySelection(next) })
	return s, nil
}

// Options returns the options the session was built with.
func (s *Session) Options() Options { return s.opts }

// Selection returns the active-mesh selection. Setting it directly behaves
// like SelectMesh.
func (s *Session) Selection() *scene.Selection { return s.selection }

// Errors returns and clears the errors raised while handling notifications
// that the host delivered directly through a Markups collection, such as a
// drag. Errors raised by the session's own calls are returned by those calls.
func (s *Session) Errors() []error {
	errs := s.pending
	s.pending = nil
	return errs
}

// AddMesh registers a mesh with the session. Meshes whose topology fails
// validation are rejected; warnings are logged.
func (s *Session) AddMesh(m mesh.Surface) error {
	const op = "add mesh"
	if m == nil || m.Name() == "" {
		return newError(KindInvalidArgument, op, "", "", "", errors.New("mesh has no name"))
	}
	name := m.Name()
	if _, ok := s.meshes[name]; ok {
		return newError(KindInvalidArgument, op, name, "", "", errors.New("mesh already registered"))
	}
	findings := mesh.Validate(m)
	if mesh.HasErrors(findings) {
		errs := make([]error, 0, len(findings))
		for _, f := range findings {
			if f.Severity == mesh.SeverityError {
				errs = append(errs, f)
			}
		}
		return newError(KindInvalidArgument, op, name, "", "", errors.Join(errs...))
	}
	for _, f := range findings {
		s.log.Warn("mesh validation", "mesh", name, "finding", f.Error())
	}
	s.meshes[name] = m
	s.order = append(s.order, name)
	return nil
}

// Mesh returns a registered mesh by name.
func (s *Session) Mesh(name string) (mesh.Surface, error) {
	m, ok := s.meshes[name]
	if !ok {
		return nil, newError(KindNotFound, "mesh", name, "", "", nil)
	}
	return m, nil
}

// Meshes returns the registered meshes in registration order.
func (s *Session) Meshes() []mesh.Surface {
	return lo.Map(s.order, func(name string, _ int) mesh.Surface { return s.meshes[name] })
}

// SelectMesh makes name the active reference mesh, creating its entry on
// first selection. Only the active mesh's landmarks stay visible and
// interactive.
func (s *Session) SelectMesh(name string) error {
	if _, err := s.ensureEntry("select mesh", name); err != nil {
		return err
	}
	s.selection.Set(name)
	s.applySelection(name)
	return nil
}

func (s *Session) applySelection(active string) {
	if active != "" {
		if _, ok := s.meshes[active]; ok {
			if _, err := s.ensureEntry("select mesh", active); err != nil {
				s.log.Warn("select mesh", "mesh", active, "err", err)
			}
		}
	}
	for name, e := range s.entries {
		on := name == active
		e.Markups.SetVisible(on)
		e.Markups.SetLocked(!on)
	}
}

// Entry returns the reference entry of a mesh.
func (s *Session) Entry(name string) (*Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

func (s *Session) ensureEntry(op, name string) (*Entry, error) {
	if e, ok := s.entries[name]; ok {
		return e, nil
	}
	m, ok := s.meshes[name]
	if !ok {
		return nil, newError(KindNotFound, op, name, "", "", nil)
	}
	e := newEntry(m, s.opts.LabelPrefix)
	e.tag = e.Markups.AddObserver(func(ev scene.Event, id string) { s.onMarkupEvent(e, ev, id) })
	on := s.selection.Active() == name
	e.Markups.SetVisible(on)
	e.Markups.SetLocked(!on)
	s.entries[name] = e
	s.log.Debug("reference entry created", "mesh", name)
	return e, nil
}

func (s *Session) entry(op, name string) (*Entry, error) {
	e, ok := s.entries[name]
	if !ok {
		if _, known := s.meshes[name]; known {
			return nil, newError(KindNotFound, op, name, "", "", errors.New("mesh was never selected as reference"))
		}
		return nil, newError(KindNotFound, op, name, "", "", nil)
	}
	return e, nil
}

// resolve finds a landmark by point ID or label.
func (s *Session) resolve(op string, e *Entry, key string) (*State, error) {
	if st, ok := e.Landmarks[key]; ok {
		return st, nil
	}
	id, err := e.Markups.Lookup(key)
	if err == nil {
		if st, ok := e.Landmarks[id]; ok {
			return st, nil
		}
	}
	return nil, newError(KindNotFound, op, e.Mesh.Name(), key, "", err)
}

// AddLandmark places a landmark on the named mesh and returns its point ID.
// The landmark is snapped to the nearest vertex immediately. The mesh gets
// a reference entry if it has none yet.
func (s *Session) AddLandmark(meshName string, pos v3.Vec) (string, error) {
	e, err := s.ensureEntry("add landmark", meshName)
	if err != nil {
		return "", err
	}
	mark := len(s.pending)
	id := e.Markups.Add(pos)
	return id, s.flush(mark)
}

// MoveLandmark replaces a landmark's position, as a drag would.
func (s *Session) MoveLandmark(meshName, key string, pos v3.Vec) error {
	const op = "move landmark"
	e, err := s.entry(op, meshName)
	if err != nil {
		return err
	}
	st, err := s.resolve(op, e, key)
	if err != nil {
		return err
	}
	mark := len(s.pending)
	if err := e.Markups.SetPosition(st.ID, pos); err != nil {
		return s.wrap(op, e, st, err)
	}
	return s.flush(mark)
}

// SetRadius changes a landmark's ROI radius. A radius of 0 hides the ROI
// everywhere it is shown. A positive radius forces surface following,
// rebuilds the ROI and re-propagates it if the landmark was propagated.
func (s *Session) SetRadius(meshName, key string, radius int) error {
	const op = "set radius"
	e, err := s.entry(op, meshName)
	if err != nil {
		return err
	}
	st, err := s.resolve(op, e, key)
	if err != nil {
		return err
	}
	if radius < 0 {
		return newError(KindInvalidArgument, op, meshName, st.Label, st.ArrayName,
			fmt.Errorf("radius %d is negative", radius))
	}
	st.Radius = radius
	if radius == 0 {
		s.hideEverywhere(e, st)
		return nil
	}
	if !st.FollowsSurface {
		st.FollowsSurface = true
		if err := s.snap(e, st); err != nil {
			return err
		}
	}
	e.selected = st.ID
	if err := s.refresh(e, st); err != nil {
		return err
	}
	if st.Propagated {
		return s.repropagate(e, st)
	}
	return nil
}

// SetFollowSurface toggles surface following. Turning it on snaps the
// landmark at once. Turning it off keeps the last snapped vertex as the
// ROI center.
func (s *Session) SetFollowSurface(meshName, key string, on bool) error {
	const op = "follow surface"
	e, err := s.entry(op, meshName)
	if err != nil {
		return err
	}
	st, err := s.resolve(op, e, key)
	if err != nil {
		return err
	}
	was := st.FollowsSurface
	st.FollowsSurface = on
	if !on || was {
		return nil
	}
	s.handling = true
	err = s.landmarkMoved(e, st.ID)
	s.handling = false
	return err
}

// SelectLandmark makes a landmark's ROI the one shown on its mesh and on
// the mesh's targets if the landmark was propagated.
func (s *Session) SelectLandmark(meshName, key string) error {
	const op = "select landmark"
	e, err := s.entry(op, meshName)
	if err != nil {
		return err
	}
	st, err := s.resolve(op, e, key)
	if err != nil {
		return err
	}
	if prev, ok := e.Landmarks[e.selected]; ok && prev != st {
		s.hideEverywhere(e, prev)
	}
	e.selected = st.ID
	if st.Radius == 0 {
		return nil
	}
	if err := roi.Show(e.Mesh, st.ArrayName); err != nil {
		return s.wrap(op, e, st, err)
	}
	if !st.Propagated {
		return nil
	}
	var errs []error
	for _, t := range s.sortedTargets(e) {
		if _, ok := roi.Find(t, st.ArrayName); !ok {
			continue
		}
		if err := roi.Show(t, st.ArrayName); err != nil {
			errs = append(errs, s.wrapOn(op, t.Name(), st, err))
		}
	}
	return errors.Join(errs...)
}

// SelectedLandmark returns the point ID of the landmark shown on a mesh.
func (s *Session) SelectedLandmark(meshName string) (string, bool) {
	e, ok := s.entries[meshName]
	if !ok || e.selected == "" {
		return "", false
	}
	return e.selected, true
}

// RenameLandmark changes a landmark's label. Labels are unique per mesh.
func (s *Session) RenameLandmark(meshName, key, label string) error {
	const op = "rename landmark"
	e, err := s.entry(op, meshName)
	if err != nil {
		return err
	}
	st, err := s.resolve(op, e, key)
	if err != nil {
		return err
	}
	if label == "" {
		return newError(KindInvalidArgument, op, meshName, st.Label, "", errors.New("empty label"))
	}
	if err := e.Markups.SetLabel(st.ID, label); err != nil {
		return s.wrap(op, e, st, err)
	}
	st.Label = label
	return nil
}

// Landmark returns a copy of a landmark's state.
func (s *Session) Landmark(meshName, key string) (State, error) {
	const op = "landmark"
	e, err := s.entry(op, meshName)
	if err != nil {
		return State{}, err
	}
	st, err := s.resolve(op, e, key)
	if err != nil {
		return State{}, err
	}
	return *st, nil
}

// Landmarks returns copies of a mesh's landmark states in placement order.
func (s *Session) Landmarks(meshName string) ([]State, error) {
	e, err := s.entry("landmarks", meshName)
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(e.Markups.IDs(), func(id string, _ int) (State, bool) {
		st, ok := e.Landmarks[id]
		if !ok {
			return State{}, false
		}
		return *st, true
	}), nil
}

// Position returns a landmark's current position.
func (s *Session) Position(meshName, key string) (v3.Vec, error) {
	const op = "position"
	e, err := s.entry(op, meshName)
	if err != nil {
		return v3.Vec{}, err
	}
	st, err := s.resolve(op, e, key)
	if err != nil {
		return v3.Vec{}, err
	}
	return e.Markups.Position(st.ID)
}

// Markups returns the landmark collection of a reference mesh.
func (s *Session) Markups(meshName string) (*scene.Markups, error) {
	e, err := s.entry("markups", meshName)
	if err != nil {
		return nil, err
	}
	return e.Markups, nil
}

// ClosestVertex answers a nearest-vertex query on a registered mesh with the
// session's locator.
func (s *Session) ClosestVertex(meshName string, p v3.Vec) (int, error) {
	m, err := s.Mesh(meshName)
	if err != nil {
		return -1, err
	}
	i, err := s.closest(m, p)
	if err != nil {
		return -1, newError(KindOf(err), "closest vertex", meshName, "", "", err)
	}
	return i, nil
}

// Reset clears every reference entry and removes the ROI arrays the session
// created. Queued handler errors are dropped. Registered meshes stay
// registered.
func (s *Session) Reset() {
	for _, name := range s.order {
		e, ok := s.entries[name]
		if !ok {
			continue
		}
		e.Markups.RemoveObserver(e.tag)
		e.Markups.SetVisible(false)
		e.Markups.SetLocked(true)
		for _, st := range e.Landmarks {
			roi.Hide(e.Mesh, st.ArrayName)
			roi.Remove(e.Mesh, st.ArrayName)
			for _, t := range e.Targets {
				roi.Hide(t, st.ArrayName)
				roi.Remove(t, st.ArrayName)
			}
		}
	}
	clear(s.entries)
	clear(s.locators)
	s.pending = nil
	s.selection.Set("")
	s.log.Debug("session reset")
}

func (s *Session) closest(m mesh.Surface, p v3.Vec) (int, error) {
	loc, ok := s.locators[m.Name()]
	if !ok {
		var err error
		loc, err = locate.New(s.opts.Locator, m)
		if err != nil {
			return -1, newError(KindInvalidArgument, "locate", m.Name(), "", "", err)
		}
		s.locators[m.Name()] = loc
	}
	i, err := loc.Closest(p)
	if err != nil {
		if errors.Is(err, locate.ErrEmptyMesh) {
			return -1, newError(KindEmptyMesh, "locate", m.Name(), "", "", err)
		}
		return -1, err
	}
	return i, nil
}

// snap moves a landmark onto its nearest reference vertex and records the
// vertex.
func (s *Session) snap(e *Entry, st *State) error {
	pos, err := e.Markups.Position(st.ID)
	if err != nil {
		return s.wrap("snap", e, st, err)
	}
	i, err := s.closest(e.Mesh, pos)
	if err != nil {
		return s.wrap("snap", e, st, err)
	}
	st.Snapped = snapTo(i)
	s.log.Debug("landmark snapped", "mesh", e.Mesh.Name(), "landmark", st.Label, "vertex", i)
	if target := e.Mesh.Point(i); target != pos {
		return s.writeBack(e, st, target)
	}
	return nil
}

// writeBack stores a snapped position with the notification path muted.
func (s *Session) writeBack(e *Entry, st *State, pos v3.Vec) error {
	prev := s.handling
	s.handling = true
	defer func() { s.handling = prev }()
	if err := e.Markups.SetPosition(st.ID, pos); err != nil {
		return s.wrap("snap", e, st, err)
	}
	return nil
}

// refresh regrows and shows a landmark's ROI on its reference mesh.
func (s *Session) refresh(e *Entry, st *State) error {
	const op = "update ROI"
	center, ok := st.Snapped.Index()
	if !ok {
		return newError(KindNoROIDefined, op, e.Mesh.Name(), st.Label, st.ArrayName,
			errors.New("landmark was never snapped"))
	}
	region, err := topology.GrowRegion(e.Mesh, center, st.Radius)
	if err != nil {
		return s.wrap(op, e, st, err)
	}
	if err := roi.Write(e.Mesh, st.ArrayName, region, s.opts.Lookup); err != nil {
		return s.wrap(op, e, st, err)
	}
	if e.selected == st.ID {
		if err := roi.Show(e.Mesh, st.ArrayName); err != nil {
			return s.wrap(op, e, st, err)
		}
	}
	s.log.Debug("ROI written", "mesh", e.Mesh.Name(), "array", st.ArrayName,
		"center", center, "radius", st.Radius, "size", region.Len())
	return nil
}

func (s *Session) hideEverywhere(e *Entry, st *State) {
	roi.Hide(e.Mesh, st.ArrayName)
	for _, t := range e.Targets {
		roi.Hide(t, st.ArrayName)
	}
}

func (s *Session) sortedTargets(e *Entry) []mesh.Surface {
	names := lo.Keys(e.Targets)
	slices.Sort(names)
	return lo.Map(names, func(n string, _ int) mesh.Surface { return e.Targets[n] })
}

// flush returns and removes the handler errors queued since mark. Errors
// queued before mark belong to notifications the host sent directly and
// stay for Errors.
func (s *Session) flush(mark int) error {
	err := errors.Join(s.pending[mark:]...)
	s.pending = s.pending[:mark]
	return err
}

func (s *Session) wrap(op string, e *Entry, st *State, err error) error {
	return s.wrapOn(op, e.Mesh.Name(), st, err)
}

func (s *Session) wrapOn(op, meshName string, st *State, err error) error {
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	label, array := "", ""
	if st != nil {
		label, array = st.Label, st.ArrayName
	}
	return newError(classify(err), op, meshName, label, array, err)
}

// classify maps package sentinels to a Kind.
func classify(err error) Kind {
	switch {
	case errors.Is(err, locate.ErrEmptyMesh):
		return KindEmptyMesh
	case errors.Is(err, mesh.ErrLengthMismatch):
		return KindInvalidTopologyAssumption
	case errors.Is(err, mesh.ErrArrayNotFound), errors.Is(err, scene.ErrNoPoint):
		return KindNotFound
	default:
		return KindInvalidArgument
	}
}
