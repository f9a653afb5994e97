// Package engine provides the script evaluation engine for landmark
// sessions. It wraps zygomys in a sandboxed environment and drives a fresh
// landmark.Session from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/pickandpaint/pkg/kernel"
	"github.com/chazu/pickandpaint/pkg/kernel/sdfx"
	"github.com/chazu/pickandpaint/pkg/landmark"
)

// DefaultWeldTolerance merges tessellated vertices closer than this.
const DefaultWeldTolerance = 1e-6

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a recoverable landmark failure, such as
// propagating a landmark that has no ROI.
type EvalWarning struct {
	Line     int
	Col      int
	Message  string
	Mesh     string
	Landmark string
}

// EvalResult bundles the full output of an evaluation for use by UI bindings.
type EvalResult struct {
	Session  *landmark.Session
	Errors   []EvalError
	Warnings []EvalWarning
}

// Config configures an Engine. Zero fields take defaults.
type Config struct {
	// Options configure the session each evaluation creates. A zero Scale
	// selects landmark.DefaultOptions, keeping Logger.
	Options landmark.Options

	// Kernel builds solid meshes. Nil selects sdfx with default cells.
	Kernel kernel.Kernel

	WeldTolerance float64
	Timeout       time.Duration
}

// Engine wraps the zygomys interpreter for landmark scripts.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment and session for determinism.
type Engine struct {
	cfg Config

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine(cfg Config) *Engine {
	if cfg.Options.Scale == 0 {
		logger := cfg.Options.Logger
		cfg.Options = landmark.DefaultOptions()
		cfg.Options.Logger = logger
	}
	if cfg.Kernel == nil {
		cfg.Kernel = sdfx.New(0)
	}
	if cfg.WeldTolerance <= 0 {
		cfg.WeldTolerance = DefaultWeldTolerance
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEvalTimeout
	}
	return &Engine{cfg: cfg}
}

// Evaluate runs script source against a new session.
//
// Return semantics:
//   - On success: returns a result holding the session and any warnings
//   - On parse/eval failure: returns a result with errors and no session
//   - On fatal failure (timeout, panic, bad options): returns nil + error
func (e *Engine) Evaluate(source string) (*EvalResult, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res, err := e.evaluate(source)
		ch <- evalResult{result: res, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, e.cfg.Timeout)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*EvalResult, error) {
	session, err := landmark.NewSession(e.cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	// Empty source is a valid program that produces an empty session.
	if strings.TrimSpace(source) == "" {
		return &EvalResult{Session: session}, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	st := &evalState{session: session, kernel: e.cfg.Kernel, tol: e.cfg.WeldTolerance}
	registerBuiltins(env, st)

	// Load and compile the source string into bytecode.
	if err := env.LoadString(preprocessSource(source)); err != nil {
		return &EvalResult{Errors: parseZygomysError(err)}, nil
	}

	// Execute the compiled bytecode.
	if _, err := env.Run(); err != nil {
		return &EvalResult{Errors: parseZygomysError(err)}, nil
	}

	return &EvalResult{Session: session, Warnings: st.warnings}, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, p := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := p.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
