package engine

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/pickandpaint/pkg/kernel/sdfx"
	"github.com/chazu/pickandpaint/pkg/landmark"
)

// newTestEngine returns an engine with a coarse kernel and a silent logger.
func newTestEngine() *Engine {
	opts := landmark.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(Config{Options: opts, Kernel: sdfx.New(12)})
}

// mustEvaluate fails the test on fatal or eval errors.
func mustEvaluate(t *testing.T, eng *Engine, source string) *EvalResult {
	t.Helper()
	res, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected eval errors: %v", res.Errors)
	}
	if res.Session == nil {
		t.Fatal("expected non-nil session")
	}
	return res
}

func TestEvaluateEmptyString(t *testing.T) {
	res := mustEvaluate(t, newTestEngine(), "")
	if n := len(res.Session.Meshes()); n != 0 {
		t.Errorf("expected empty session, got %d meshes", n)
	}
}

func TestEvaluateWhitespaceOnly(t *testing.T) {
	res := mustEvaluate(t, newTestEngine(), "   \n\t  \n  ")
	if n := len(res.Session.Meshes()); n != 0 {
		t.Errorf("expected empty session, got %d meshes", n)
	}
}

func TestEvaluateValidExpression(t *testing.T) {
	// (+ 1 2) is valid Lisp that touches no builtin.
	res := mustEvaluate(t, newTestEngine(), "(+ 1 2)")
	if n := len(res.Session.Meshes()); n != 0 {
		t.Errorf("expected empty session, got %d meshes", n)
	}
}

func TestEvaluateMultipleExpressions(t *testing.T) {
	source := `
(def x 10)
(def y 20)
(+ x y)
`
	mustEvaluate(t, newTestEngine(), source)
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := newTestEngine()

	// Unmatched paren is a parse error.
	res, err := eng.Evaluate("(+ 1 2")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if res.Session != nil {
		t.Fatal("expected nil session on syntax error")
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if res.Errors[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	eng := newTestEngine()

	res, err := eng.Evaluate("(+ 1 undefined-symbol)")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if res.Session != nil {
		t.Fatal("expected nil session on eval error")
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvaluateSyntaxErrorHasLineInfo(t *testing.T) {
	eng := newTestEngine()

	// Put the error on line 2.
	res, err := eng.Evaluate("(+ 1 2)\n(+ 3")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected at least one eval error")
	}

	// Line info may or may not be available depending on the error format;
	// we just check the error is populated.
	e := res.Errors[0]
	if e.Message == "" {
		t.Error("eval error message should not be empty")
	}
	if e.Line > 0 {
		t.Logf("extracted line info: line=%d, message=%q", e.Line, e.Message)
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") {
		t.Errorf("Error() should contain line info, got: %s", s)
	}
	if !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() should contain message, got: %s", s)
	}

	e2 := EvalError{Message: "no location"}
	if s2 := e2.Error(); strings.Contains(s2, "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", s2)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := newTestEngine()
	source := `
(grid-mesh "g" :nx 4 :ny 4)
(def lm (add-landmark "g" (vec3 1.2 2.1 0)))
(set-radius lm 1)
`
	// Every evaluation starts from a fresh session.
	for i := 0; i < 5; i++ {
		res := mustEvaluate(t, eng, source)
		states, err := res.Session.Landmarks("g")
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if len(states) != 1 {
			t.Fatalf("iteration %d: expected 1 landmark, got %d", i, len(states))
		}
		if states[0].ArrayName != "g_ROI_1" {
			t.Errorf("iteration %d: array name = %q", i, states[0].ArrayName)
		}
	}
}

func TestEvaluateRejectsBadOptions(t *testing.T) {
	opts := landmark.DefaultOptions()
	opts.Radius = -1
	eng := NewEngine(Config{Options: opts})
	if _, err := eng.Evaluate("(+ 1 2)"); err == nil {
		t.Fatal("expected fatal error for negative default radius")
	}
}

func TestNewEngineDefaults(t *testing.T) {
	eng := NewEngine(Config{})
	if eng.cfg.Timeout != DefaultEvalTimeout {
		t.Errorf("timeout = %s, want %s", eng.cfg.Timeout, DefaultEvalTimeout)
	}
	if eng.cfg.WeldTolerance != DefaultWeldTolerance {
		t.Errorf("weld tolerance = %g", eng.cfg.WeldTolerance)
	}
	if eng.cfg.Kernel == nil {
		t.Error("expected default kernel")
	}
	if eng.cfg.Options.Scale != 2.0 || !eng.cfg.Options.FollowSurface {
		t.Errorf("expected default landmark options, got %+v", eng.cfg.Options)
	}
}

func TestEvaluateTimeout(t *testing.T) {
	// Test the timeout plumbing directly with a channel that never sends.
	var mu sync.Mutex
	var gen uint64 = 1
	ch := make(chan evalResult)

	const timeout = 50 * time.Millisecond
	start := time.Now()
	_, err := waitWithTimeout(ch, 1, &mu, &gen, timeout)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error message, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Errorf("returned after %s, before the %s timeout", elapsed, timeout)
	}
}

func TestEvaluateGenerationDiscardsStale(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(2) // Current generation is 2

	ch := make(chan evalResult, 1)
	ch <- evalResult{}

	// Pass generation 1 (stale).
	_, err := waitWithTimeout(ch, 1, &mu, &gen, time.Second)
	if err == nil {
		t.Fatal("expected error for stale generation")
	}
	if !strings.Contains(err.Error(), "superseded") {
		t.Errorf("expected superseded error, got: %v", err)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
		{
			name:     "short line format",
			msg:      "line 3: bad radius",
			wantLine: 3,
			wantMsg:  "bad radius",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
