// Package engine runs edit scripts against a session. Scripts are written
// in a small Lisp (zygomys) extended with builtins that select, move,
// scale, pin and join primitives.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/gcdeform/pkg/primitive"
	"github.com/chazu/gcdeform/pkg/session"
)

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

// Edit records one mutating builtin call.
type Edit struct {
	Op     string
	Target string
}

// Report is the outcome of a successful evaluation.
type Report struct {
	Edits []Edit
	Value string // printed value of the last expression
}

// Engine evaluates scripts against a session. Evaluations are serialized;
// each one gets a fresh sandboxed interpreter.
type Engine struct {
	mu   sync.Mutex
	sess *session.Session
}

// NewEngine creates an Engine driving s.
func NewEngine(s *session.Session) *Engine {
	return &Engine{sess: s}
}

// Session returns the session the engine edits.
func (e *Engine) Session() *session.Session {
	return e.sess
}

// Evaluate runs source against the session. A script either applies all
// of its shape edits or none: on any failure every primitive's geometry
// and frozen flag are restored. Pins and joints added by a failed script
// are kept.
//
// Return semantics:
//   - On success: returns report + nil errors + nil error
//   - On parse/eval failure: returns nil report + eval errors + nil error
//   - On fatal failure (panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (rep *Report, evalErrs []EvalError, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.sess.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			rep, evalErrs, err = nil, nil, fmt.Errorf("panic during evaluation: %v", r)
		}
		if rep == nil {
			if rerr := e.sess.Restore(snap); rerr != nil {
				primitive.Logger().Error("failed to roll back script", "err", rerr)
			}
		}
	}()
	return e.evaluate(source)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Report, []EvalError, error) {
	// Empty source is a valid program that edits nothing.
	if strings.TrimSpace(source) == "" {
		return &Report{}, nil, nil
	}

	// Sandbox mode prevents scripts from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	rep := &Report{}
	registerBuiltins(env, e.sess, rep)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	v, err := env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}
	if v != nil {
		rep.Value = v.SexpString(nil)
	}
	primitive.Logger().Debug("script evaluated", "edits", len(rep.Edits))
	return rep, nil, nil
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
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
