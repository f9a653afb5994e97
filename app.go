package main

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"log/slog"

	"github.com/chazu/pickandpaint/pkg/config"
	"github.com/chazu/pickandpaint/pkg/engine"
	"github.com/chazu/pickandpaint/pkg/kernel/sdfx"
	"github.com/chazu/pickandpaint/pkg/landmark"
	"github.com/chazu/pickandpaint/pkg/mesh"
	"github.com/chazu/pickandpaint/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to meshes
// that show no ROI.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the host backend. It exposes methods to a frontend.
type App struct {
	ctx    context.Context
	engine *engine.Engine
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`

	// Colors holds RGBA per vertex, mapped through the lookup table of the
	// ROI array shown on the mesh, or the palette color if none is shown.
	Colors []float32 `json:"colors"`

	// ActiveROI names the array the colors come from. Empty if none.
	ActiveROI string `json:"activeRoi,omitempty"`
}

// LandmarkData is the JSON-serializable landmark format.
type LandmarkData struct {
	Mesh       string     `json:"mesh"`
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Position   [3]float64 `json:"position"`
	Vertex     *int       `json:"vertex"`
	Radius     int        `json:"radius"`
	ArrayName  string     `json:"arrayName"`
	Propagated bool       `json:"propagated"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Message  string `json:"message"`
	Mesh     string `json:"mesh,omitempty"`
	Landmark string `json:"landmark,omitempty"`
}

// EvalResult is the full result returned to the frontend.
type EvalResult struct {
	Meshes    []MeshData      `json:"meshes"`
	Landmarks []LandmarkData  `json:"landmarks"`
	Errors    []EvalErrorData `json:"errors"`
	Warnings  []EvalErrorData `json:"warnings"`
}

// NewApp creates an App from a resolved configuration.
func NewApp(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.SessionOptions(logger)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.EvalTimeout()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &App{
		engine: engine.NewEngine(engine.Config{
			Options:       opts,
			Kernel:        sdfx.New(cfg.Mesh.Cells),
			WeldTolerance: cfg.Mesh.WeldTolerance,
			Timeout:       timeout,
		}),
	}, nil
}

// startup is called by the host on app startup. The context is saved
// so we can call runtime methods later if needed.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// Evaluate takes Lisp source and returns mesh data, landmarks and errors.
// This is the primary binding called by the frontend editor.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:    []MeshData{},
		Landmarks: []LandmarkData{},
		Errors:    []EvalErrorData{},
		Warnings:  []EvalErrorData{},
	}

	// Step 1: Evaluate the Lisp source into a landmark session.
	res, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Printf("Evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors to the frontend format.
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{
			Line:     w.Line,
			Col:      w.Col,
			Message:  w.Message,
			Mesh:     w.Mesh,
			Landmark: w.Landmark,
		})
	}

	// Step 3: Flatten every mesh and color it by its visible ROI.
	s := res.Session
	for i, m := range s.Meshes() {
		flat := tessellate.Flatten(m)
		colors, active, err := vertexColors(m, colorPalette[i%len(colorPalette)])
		if err != nil {
			log.Printf("Color error on %s: %v", m.Name(), err)
			result.Errors = append(result.Errors, EvalErrorData{
				Message: "coloring failed: " + err.Error(),
			})
			return result
		}
		result.Meshes = append(result.Meshes, MeshData{
			Vertices:  flat.Vertices,
			Normals:   flat.Normals,
			Indices:   flat.Indices,
			Name:      flat.Name,
			Colors:    colors,
			ActiveROI: active,
		})

		// Step 4: Collect the landmarks placed on the mesh.
		states, err := s.Landmarks(m.Name())
		if err != nil {
			// Meshes that only serve as targets have no landmarks.
			if landmark.KindOf(err) == landmark.KindNotFound {
				continue
			}
			result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
			return result
		}
		for _, st := range states {
			pos, err := s.Position(m.Name(), st.ID)
			if err != nil {
				result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
				return result
			}
			ld := LandmarkData{
				Mesh:       m.Name(),
				ID:         st.ID,
				Label:      st.Label,
				Position:   [3]float64{pos.X, pos.Y, pos.Z},
				Radius:     st.Radius,
				ArrayName:  st.ArrayName,
				Propagated: st.Propagated,
			}
			if v, ok := st.Snapped.Index(); ok {
				ld.Vertex = &v
			}
			result.Landmarks = append(result.Landmarks, ld)
		}
	}

	return result
}

// vertexColors returns RGBA floats per point. A visible active array is
// mapped through its lookup table; otherwise every point gets fallback.
func vertexColors(m mesh.Surface, fallback string) ([]float32, string, error) {
	n := m.NumPoints()
	out := make([]float32, 0, 4*n)
	pd := m.PointData()

	if name := pd.ActiveScalars(); name != "" && pd.ScalarVisibility() {
		a, err := pd.Array(name)
		if err != nil {
			return nil, "", err
		}
		if a.Lookup != nil {
			for _, v := range a.Values {
				out = appendColor(out, a.Lookup.Map(v))
			}
			return out, name, nil
		}
	}

	c, err := mesh.ParseHexColor(fallback)
	if err != nil {
		return nil, "", err
	}
	for i := 0; i < n; i++ {
		out = appendColor(out, c)
	}
	return out, "", nil
}

func appendColor(dst []float32, c color.NRGBA) []float32 {
	return append(dst,
		float32(c.R)/255, float32(c.G)/255, float32(c.B)/255, float32(c.A)/255)
}
