// Package recipe evaluates frame recipes: small Lisp programs that choose
// which relaxation operators run each frame and with what arguments.
//
//	(frame
//	  (movement :drag 0.8)
//	  (repeat 2
//	    (springs :factor 0.99 :stiffness 100 :samples 25)
//	    (pins))
//	  (smooth 0.5)
//	  (attract :factor 0.5)
//	  (mirror))
//
// Recipes run in a fresh zygomys sandbox per evaluation and compile to a
// Plan, which the host applies to an engine every frame without touching
// the interpreter again.
package recipe

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

var (
	// ErrTimeout is returned when an evaluation exceeds its time limit.
	ErrTimeout = errors.New("recipe: evaluation timed out")
	// ErrSuperseded is returned when a newer evaluation started first.
	ErrSuperseded = errors.New("recipe: evaluation superseded by newer request")
)

// EvalError is a non-fatal error in user code, such as a parse error or a
// bad builtin argument.
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

// Engine compiles recipes. It is safe for concurrent use; each Evaluate
// call gets its own sandbox.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
	log        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for evaluation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine returns a recipe engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate compiles source into a Plan.
//
// Return semantics:
//   - On success: plan + nil errors + nil error
//   - On parse/eval failure: nil plan + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): nil + nil + error
//
// Source that never calls frame yields an empty plan.
func (e *Engine) Evaluate(source string) (*Plan, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("recipe: panic during evaluation: %v", r)}
			}
		}()
		p, evalErrs, err := e.evaluate(source)
		ch <- evalResult{plan: p, errors: evalErrs, err: err}
	}()

	p, evalErrs, err := waitWithTimeout(ch, gen, &e.mu, &e.generation, e.timeout)
	switch {
	case err != nil:
		e.log.Warn("recipe: evaluation failed", "err", err)
	case len(evalErrs) > 0:
		e.log.Debug("recipe: evaluation errors", "count", len(evalErrs), "first", evalErrs[0].Error())
	default:
		e.log.Debug("recipe: compiled", "ops", p.Len())
	}
	return p, evalErrs, err
}

func (e *Engine) evaluate(source string) (*Plan, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return &Plan{}, nil, nil
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := &builder{}
	registerBuiltins(env, b)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if b.plan == nil {
		return &Plan{}, nil, nil
	}
	return b.plan, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?is)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting the
// line number when the message carries one. Text around the line marker is
// kept so builtin error messages survive.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		loc := re.FindStringSubmatchIndex(msg)
		if loc == nil {
			continue
		}
		line, _ := strconv.Atoi(msg[loc[2]:loc[3]])
		detail := strings.TrimSpace(msg[:loc[0]] + " " + msg[loc[4]:loc[5]])
		return []EvalError{{Line: line, Message: detail}}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
