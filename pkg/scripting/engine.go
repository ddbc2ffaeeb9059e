// Package scripting evaluates Script(...) blocks with goja, an ECMAScript
// 5.1+ runtime written in Go.
package scripting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

const (
	defaultTimeout  = 500 * time.Millisecond
	defaultMaxCache = 1000

	interruptedMessage = "RuntimeError: timeout"
)

var (
	// ErrInterrupted is returned when a script is stopped by timeout or cancellation.
	ErrInterrupted = errors.New(interruptedMessage)
	// ErrCompile is returned when a script does not compile.
	ErrCompile = errors.New("failed to compile script")
	// ErrRuntime is returned when a script throws.
	ErrRuntime = errors.New("script failed")
)

// Engine evaluates scripts in a fresh runtime per call. Compiled programs
// are cached by source.
type Engine struct {
	timeout  time.Duration
	maxCache int

	mu       sync.RWMutex
	programs map[string]*goja.Program
}

type Option func(*Engine)

// WithTimeout bounds the run time of a single evaluation.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

// WithMaxCache bounds the number of cached compiled programs.
func WithMaxCache(size int) Option {
	return func(e *Engine) {
		e.maxCache = size
	}
}

func NewEngine(opts ...Option) *Engine {
	engine := &Engine{
		timeout:  defaultTimeout,
		maxCache: defaultMaxCache,
		programs: make(map[string]*goja.Program),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Evaluate runs source with vars as globals and returns the completion
// value. Strings are returned verbatim, objects as JSON and undefined or
// null as the empty string.
func (e *Engine) Evaluate(ctx context.Context, source string, vars map[string]any) (string, error) {
	program, err := e.compile(source)
	if err != nil {
		return "", err
	}

	vm := goja.New()

	for name, value := range vars {
		err = vm.Set(name, value)
		if err != nil {
			return "", fmt.Errorf("failed to set script variable '%s': %w", name, err)
		}
	}

	ictx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	go func() {
		<-ictx.Done()
		// After RunProgram returned this interrupts a runtime nobody uses anymore.
		vm.Interrupt(interruptedMessage)
	}()

	value, err := vm.RunProgram(program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return "", fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ictx))
		}

		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return toString(value)
}

func (e *Engine) compile(source string) (*goja.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[source]
	e.mu.RUnlock()

	if ok {
		return program, nil
	}

	program, err := goja.Compile("script", source, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.programs) >= e.maxCache {
		e.programs = make(map[string]*goja.Program)
	}

	e.programs[source] = program

	return program, nil
}

func toString(value goja.Value) (string, error) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return "", nil
	}

	switch exported := value.Export().(type) {
	case string:
		return exported, nil
	case map[string]any, []any:
		data, err := json.Marshal(exported)
		if err != nil {
			return "", fmt.Errorf("failed to serialize script result: %w", err)
		}

		return string(data), nil
	default:
		return value.String(), nil
	}
}
