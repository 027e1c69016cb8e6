// Package directive evaluates dataset recipes written in a small Lisp.
// A recipe names the feature combinations to synthesize and, optionally,
// fixed stock dimensions and a base seed:
//
//	(stock :x 40 :y 40 :z 20)
//	(seed 7)
//	(repeat 3 (dataset "spur-gear" "boss"))
//
// Evaluation runs in a fresh zygomys sandbox per call.
package directive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/featsynth/pkg/feature"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError is a non-fatal error in user code, such as a parse error or a
// builtin rejecting its arguments.
type EvalError struct {
	Line    int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Dims are stock box dimensions in millimeters.
type Dims struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Plan is the result of a recipe. Stock and Seed are nil when the recipe
// leaves them to the configuration.
type Plan struct {
	Stock  *Dims
	Seed   *uint64
	Combos [][]string
}

// Engine evaluates recipes. It is safe for concurrent use; a call overtaken
// by a newer one fails as superseded.
type Engine struct {
	// Known restricts feature names when non-empty. Names are compared
	// after normalization.
	Known []string

	// Timeout bounds one evaluation; EvalTimeout when zero.
	Timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewEngine returns an engine that accepts the given feature names.
func NewEngine(known ...string) *Engine {
	return &Engine{Known: known}
}

// Evaluate runs source and returns its plan.
//
// Return semantics:
//   - On success: plan + nil errors + nil error
//   - On parse/eval failure: nil plan + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): nil + nil + error
func (e *Engine) Evaluate(source string) (*Plan, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("directive: panic during evaluation: %v", r)}
			}
		}()
		p, evalErrs, err := e.evaluate(source)
		ch <- evalResult{plan: p, errors: evalErrs, err: err}
	}()

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	return waitWithTimeout(ch, gen, timeout, &e.mu, &e.generation)
}

func (e *Engine) evaluate(source string) (*Plan, []EvalError, error) {
	p := &Plan{}
	if strings.TrimSpace(source) == "" {
		return p, nil, nil
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, p, e.known())

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return p, nil, nil
}

func (e *Engine) known() map[string]bool {
	if len(e.Known) == 0 {
		return nil
	}
	out := make(map[string]bool, len(e.Known))
	for _, n := range e.Known {
		out[feature.Normalize(n)] = true
	}
	return out
}

// linePattern matches zygomys messages of the form "Error on line N: ...".
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches "line N: ...".
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
