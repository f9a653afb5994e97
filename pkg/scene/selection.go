package scene

// Selection tracks which mesh is active for editing.
type Selection struct {
	active    string
	observers []func(prev, next string)
}

// NewSelection returns a selection with no active mesh.
func NewSelection() *Selection {
	return &Selection{}
}

// Active returns the name of the active mesh, or "".
func (s *Selection) Active() string { return s.active }

// Set activates the named mesh and notifies observers if it changed.
func (s *Selection) Set(name string) {
	if name == s.active {
		return
	}
	prev := s.active
	s.active = name
	for _, fn := range s.observers {
		fn(prev, name)
	}
}

// AddObserver registers fn to run after every change.
func (s *Selection) AddObserver(fn func(prev, next string)) {
	s.observers = append(s.observers, fn)
}
