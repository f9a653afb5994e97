package engine

import (
	"errors"
	"fmt"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/pickandpaint/pkg/kernel"
	"github.com/chazu/pickandpaint/pkg/landmark"
	"github.com/chazu/pickandpaint/pkg/mesh"
	"github.com/chazu/pickandpaint/pkg/roi"
	"github.com/chazu/pickandpaint/pkg/tessellate"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: add-landmark -> add_landmark
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point in space.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpMesh is returned by the mesh constructors and accepted wherever a
// mesh name is.
type sexpMesh struct {
	name string
}

func (m *sexpMesh) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mesh %q)", m.name)
}
func (m *sexpMesh) Type() *zygo.RegisteredType { return nil }

// sexpLandmark refers to a landmark by point ID so that it survives a
// rename.
type sexpLandmark struct {
	mesh string
	id   string
}

func (l *sexpLandmark) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(landmark %q %s)", l.mesh, l.id)
}
func (l *sexpLandmark) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A keyword
// is followed by its value unless the next argument is itself a keyword, in
// which case it is a bare flag.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			if _, next := isKW(args[i+1]); !next {
				result.kw[name] = args[i+1]
				i += 2
				continue
			}
		}
		result.kw[name] = zygo.SexpNull
		i++
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer. Floats are accepted when they are whole.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == float64(int(v.Val)) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toBool extracts a boolean.
func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toMeshName accepts a mesh value or a plain name.
func toMeshName(s zygo.Sexp) (string, error) {
	if m, ok := s.(*sexpMesh); ok {
		return m.name, nil
	}
	name, err := toString(s)
	if err != nil {
		return "", fmt.Errorf("expected mesh or mesh name: %w", err)
	}
	return name, nil
}

// toVec3 extracts a point from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// landmarkArgs resolves the landmark a builtin operates on. It accepts a
// landmark value, or a mesh followed by a label, and returns the remaining
// arguments.
func landmarkArgs(fn string, args []zygo.Sexp) (meshName, key string, rest []zygo.Sexp, err error) {
	if len(args) == 0 {
		return "", "", nil, fmt.Errorf("%s requires a landmark", fn)
	}
	if l, ok := args[0].(*sexpLandmark); ok {
		return l.mesh, l.id, args[1:], nil
	}
	if len(args) < 2 {
		return "", "", nil, fmt.Errorf("%s requires a landmark or a mesh and a label", fn)
	}
	meshName, err = toMeshName(args[0])
	if err != nil {
		return "", "", nil, fmt.Errorf("%s: mesh: %w", fn, err)
	}
	key, err = toString(args[1])
	if err != nil {
		return "", "", nil, fmt.Errorf("%s: label: %w", fn, err)
	}
	return meshName, key, args[2:], nil
}

// placement reads the optional :at and :rotate keywords of a mesh
// constructor.
func placement(fn string, pa kwArgs) (at, rot v3.Vec, err error) {
	if v, ok := pa.kw["at"]; ok {
		if at, err = toVec3(v); err != nil {
			return at, rot, fmt.Errorf("%s: at: %w", fn, err)
		}
	}
	if v, ok := pa.kw["rotate"]; ok {
		if rot, err = toVec3(v); err != nil {
			return at, rot, fmt.Errorf("%s: rotate: %w", fn, err)
		}
	}
	return at, rot, nil
}

// positiveKW reads a required positive number keyword.
func positiveKW(fn, key string, pa kwArgs) (float64, error) {
	v, ok := pa.kw[key]
	if !ok {
		return 0, fmt.Errorf("%s requires :%s", fn, key)
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s: %s must be positive, got %g", fn, key, f)
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// evalState is what the builtins of one evaluation share.
type evalState struct {
	session  *landmark.Session
	kernel   kernel.Kernel
	tol      float64
	warnings []EvalWarning
}

func (st *evalState) warn(err error) {
	w := EvalWarning{Message: err.Error()}
	var le *landmark.Error
	if errors.As(err, &le) {
		w.Mesh, w.Landmark = le.Mesh, le.Landmark
	}
	st.warnings = append(st.warnings, w)
}

// recoverable splits a propagation error into per-landmark, per-target
// failures. Recoverable ones become warnings; the rest abort the script.
func (st *evalState) recoverable(err error) error {
	if err == nil {
		return nil
	}
	var fatal []error
	for _, e := range flatten(err) {
		switch landmark.KindOf(e) {
		case landmark.KindNoROIDefined, landmark.KindInvalidTopologyAssumption, landmark.KindEmptyMesh:
			st.warn(e)
		default:
			fatal = append(fatal, e)
		}
	}
	return errors.Join(fatal...)
}

// flatten expands nested errors.Join trees into their leaves.
func flatten(err error) []error {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var out []error
	for _, e := range joined.Unwrap() {
		out = append(out, flatten(e)...)
	}
	return out
}

func (st *evalState) addSolid(fn, name string, solid kernel.Solid, pa kwArgs) (zygo.Sexp, error) {
	at, rot, err := placement(fn, pa)
	if err != nil {
		return zygo.SexpNull, err
	}
	meshes, err := tessellate.Tessellate([]tessellate.Part{{
		Name: name, Solid: solid, Rotation: rot, Translation: at,
	}}, st.kernel, st.tol)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
	}
	return st.addMesh(fn, meshes[0])
}

func (st *evalState) addMesh(fn string, m mesh.Surface) (zygo.Sexp, error) {
	if err := st.session.AddMesh(m); err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
	}
	return &sexpMesh{name: m.Name()}, nil
}

// registerBuiltins installs the landmark builtins into a zygomys environment.
// The builtins operate on the session in st.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals. Names
// are registered in underscore form for the same reason.
func registerBuiltins(env *zygo.Zlisp, st *evalState) {
	s := st.session

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: v3.Vec{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (grid-mesh "name" :nx 10 :ny 10 :spacing 1 :quads false)
	// -----------------------------------------------------------------------
	env.AddFunction("grid_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("grid-mesh requires a name")
		}
		meshName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("grid-mesh: name: %w", err)
		}
		nx, ny, spacing := 10, 10, 1.0
		if v, ok := pa.kw["nx"]; ok {
			if nx, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("grid-mesh: nx: %w", err)
			}
		}
		if v, ok := pa.kw["ny"]; ok {
			if ny, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("grid-mesh: ny: %w", err)
			}
		}
		if _, ok := pa.kw["spacing"]; ok {
			if spacing, err = positiveKW("grid-mesh", "spacing", pa); err != nil {
				return zygo.SexpNull, err
			}
		}
		if nx < 2 || ny < 2 {
			return zygo.SexpNull, fmt.Errorf("grid-mesh: need at least 2x2 points, got %dx%d", nx, ny)
		}
		quads := false
		if v, ok := pa.kw["quads"]; ok {
			if quads, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("grid-mesh: quads: %w", err)
			}
		}
		if quads {
			return st.addMesh("grid-mesh", mesh.QuadGrid(meshName, nx, ny, spacing))
		}
		return st.addMesh("grid-mesh", mesh.Grid(meshName, nx, ny, spacing))
	})

	// -----------------------------------------------------------------------
	// (box-mesh "name" :size (vec3 10 10 10) :at (vec3 0 0 0) :rotate (vec3 0 0 45))
	// -----------------------------------------------------------------------
	env.AddFunction("box_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("box-mesh requires a name")
		}
		meshName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box-mesh: name: %w", err)
		}
		v, ok := pa.kw["size"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("box-mesh requires :size")
		}
		size, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box-mesh: size: %w", err)
		}
		if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
			return zygo.SexpNull, fmt.Errorf("box-mesh: size must be positive on every axis")
		}
		return st.addSolid("box-mesh", meshName, st.kernel.Box(size.X, size.Y, size.Z), pa)
	})

	// -----------------------------------------------------------------------
	// (sphere-mesh "name" :radius 5 :at (vec3 0 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("sphere_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("sphere-mesh requires a name")
		}
		meshName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere-mesh: name: %w", err)
		}
		r, err := positiveKW("sphere-mesh", "radius", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		return st.addSolid("sphere-mesh", meshName, st.kernel.Sphere(r), pa)
	})

	// -----------------------------------------------------------------------
	// (cylinder-mesh "name" :height 10 :radius 2 :at (vec3 0 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("cylinder-mesh requires a name")
		}
		meshName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder-mesh: name: %w", err)
		}
		h, err := positiveKW("cylinder-mesh", "height", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		r, err := positiveKW("cylinder-mesh", "radius", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		return st.addSolid("cylinder-mesh", meshName, st.kernel.Cylinder(h, r), pa)
	})

	// -----------------------------------------------------------------------
	// (select-mesh "skull")
	// -----------------------------------------------------------------------
	env.AddFunction("select_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("select-mesh requires a mesh")
		}
		meshName, err := toMeshName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("select-mesh: %w", err)
		}
		if err := s.SelectMesh(meshName); err != nil {
			return zygo.SexpNull, fmt.Errorf("select-mesh: %w", err)
		}
		return &sexpMesh{name: meshName}, nil
	})

	// -----------------------------------------------------------------------
	// (add-landmark "skull" (vec3 1 2 3))
	// -----------------------------------------------------------------------
	env.AddFunction("add_landmark", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("add-landmark requires a mesh and a position")
		}
		meshName, err := toMeshName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("add-landmark: %w", err)
		}
		pos, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("add-landmark: position: %w", err)
		}
		id, err := s.AddLandmark(meshName, pos)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("add-landmark: %w", err)
		}
		return &sexpLandmark{mesh: meshName, id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (move-landmark lm (vec3 4 5 6))
	// -----------------------------------------------------------------------
	env.AddFunction("move_landmark", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		meshName, key, rest, err := landmarkArgs("move-landmark", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if len(rest) != 1 {
			return zygo.SexpNull, fmt.Errorf("move-landmark requires a position")
		}
		pos, err := toVec3(rest[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move-landmark: position: %w", err)
		}
		if err := st.recoverable(s.MoveLandmark(meshName, key, pos)); err != nil {
			return zygo.SexpNull, fmt.Errorf("move-landmark: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (set-radius lm 2)
	// -----------------------------------------------------------------------
	env.AddFunction("set_radius", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		meshName, key, rest, err := landmarkArgs("set-radius", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if len(rest) != 1 {
			return zygo.SexpNull, fmt.Errorf("set-radius requires a radius")
		}
		r, err := toInt(rest[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-radius: %w", err)
		}
		if err := st.recoverable(s.SetRadius(meshName, key, r)); err != nil {
			return zygo.SexpNull, fmt.Errorf("set-radius: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (follow-surface lm false)
	// -----------------------------------------------------------------------
	env.AddFunction("follow_surface", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		meshName, key, rest, err := landmarkArgs("follow-surface", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if len(rest) != 1 {
			return zygo.SexpNull, fmt.Errorf("follow-surface requires true or false")
		}
		on, err := toBool(rest[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("follow-surface: %w", err)
		}
		if err := st.recoverable(s.SetFollowSurface(meshName, key, on)); err != nil {
			return zygo.SexpNull, fmt.Errorf("follow-surface: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (select-landmark lm)
	// -----------------------------------------------------------------------
	env.AddFunction("select_landmark", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		meshName, key, _, err := landmarkArgs("select-landmark", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := s.SelectLandmark(meshName, key); err != nil {
			return zygo.SexpNull, fmt.Errorf("select-landmark: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (rename-landmark lm "nasion")
	// -----------------------------------------------------------------------
	env.AddFunction("rename_landmark", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		meshName, key, rest, err := landmarkArgs("rename-landmark", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if len(rest) != 1 {
			return zygo.SexpNull, fmt.Errorf("rename-landmark requires a label")
		}
		label, err := toString(rest[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rename-landmark: %w", err)
		}
		if err := s.RenameLandmark(meshName, key, label); err != nil {
			return zygo.SexpNull, fmt.Errorf("rename-landmark: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (add-target "skull" "skull-2") and (remove-target "skull" "skull-2")
	// -----------------------------------------------------------------------
	targetFn := func(fn string, apply func(ref, target string) error) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires a reference mesh and a target mesh", fn)
			}
			ref, err := toMeshName(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: reference: %w", fn, err)
			}
			target, err := toMeshName(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: target: %w", fn, err)
			}
			if err := apply(ref, target); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			return zygo.SexpNull, nil
		}
	}
	env.AddFunction("add_target", targetFn("add-target", s.AddTarget))
	env.AddFunction("remove_target", targetFn("remove-target", s.RemoveTarget))

	// -----------------------------------------------------------------------
	// (propagate "skull" :correspondent)
	// (propagate "skull" :non-correspondent :landmark lm)
	//
	// Landmark failures are reported as warnings; the result is the number
	// of warnings raised.
	// -----------------------------------------------------------------------
	env.AddFunction("propagate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("propagate requires a reference mesh")
		}
		ref, err := toMeshName(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("propagate: %w", err)
		}
		mode := landmark.ModeUnset
		for kw := range pa.kw {
			if m, err := landmark.ParseMode(kw); err == nil {
				if mode != landmark.ModeUnset && mode != m {
					return zygo.SexpNull, fmt.Errorf("propagate: more than one mode given")
				}
				mode = m
			}
		}
		if mode == landmark.ModeUnset {
			return zygo.SexpNull, fmt.Errorf("propagate requires :correspondent or :non-correspondent")
		}

		before := len(st.warnings)
		if v, ok := pa.kw["landmark"]; ok {
			lm, ok := v.(*sexpLandmark)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("propagate: landmark: expected landmark, got %T", v)
			}
			err = s.PropagateLandmark(ref, lm.id, mode)
		} else {
			err = s.Propagate(ref, mode)
		}
		if err := st.recoverable(err); err != nil {
			return zygo.SexpNull, fmt.Errorf("propagate: %w", err)
		}
		return &zygo.SexpInt{Val: int64(len(st.warnings) - before)}, nil
	})

	// -----------------------------------------------------------------------
	// (clear-propagation "skull")
	// -----------------------------------------------------------------------
	env.AddFunction("clear_propagation", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("clear-propagation requires a reference mesh")
		}
		ref, err := toMeshName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("clear-propagation: %w", err)
		}
		if err := s.ClearPropagation(ref); err != nil {
			return zygo.SexpNull, fmt.Errorf("clear-propagation: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (roi-size lm) or (roi-size lm "target")
	// -----------------------------------------------------------------------
	env.AddFunction("roi_size", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		meshName, key, rest, err := landmarkArgs("roi-size", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		state, err := s.Landmark(meshName, key)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("roi-size: %w", err)
		}
		on := meshName
		if len(rest) == 1 {
			if on, err = toMeshName(rest[0]); err != nil {
				return zygo.SexpNull, fmt.Errorf("roi-size: %w", err)
			}
		}
		m, err := s.Mesh(on)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("roi-size: %w", err)
		}
		if _, ok := roi.Find(m, state.ArrayName); !ok {
			return &zygo.SexpInt{Val: 0}, nil
		}
		members, err := roi.Members(m, state.ArrayName)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("roi-size: %w", err)
		}
		return &zygo.SexpInt{Val: int64(len(members))}, nil
	})

	// -----------------------------------------------------------------------
	// (closest-vertex "skull" (vec3 1 2 3))
	// -----------------------------------------------------------------------
	env.AddFunction("closest_vertex", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("closest-vertex requires a mesh and a position")
		}
		meshName, err := toMeshName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("closest-vertex: %w", err)
		}
		pos, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("closest-vertex: position: %w", err)
		}
		i, err := s.ClosestVertex(meshName, pos)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("closest-vertex: %w", err)
		}
		return &zygo.SexpInt{Val: int64(i)}, nil
	})

	// -----------------------------------------------------------------------
	// (landmark-vertex lm) returns the snapped vertex, or nil if none.
	// -----------------------------------------------------------------------
	env.AddFunction("landmark_vertex", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		meshName, key, _, err := landmarkArgs("landmark-vertex", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		state, err := s.Landmark(meshName, key)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("landmark-vertex: %w", err)
		}
		i, ok := state.Snapped.Index()
		if !ok {
			return zygo.SexpNull, nil
		}
		return &zygo.SexpInt{Val: int64(i)}, nil
	})

	// -----------------------------------------------------------------------
	// (reset-session)
	// -----------------------------------------------------------------------
	env.AddFunction("reset_session", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		s.Reset()
		return zygo.SexpNull, nil
	})
}
