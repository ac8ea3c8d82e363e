package foreigncall

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/consensys/acvm/logger"
)

// Names of the built-in calls. The vocabulary is shared with the front-end
// compiler, which emits requests by name.
const (
	FuncPrint         = "print"
	FuncAssertMessage = "assert_message"
)

// Handler resolves one foreign call. It sees only the values packaged in the
// request; it has no access to witness or solver state.
type Handler func(env *Env, inputs []Value) ([]Value, error)

// Env carries the caller-controlled side-effect surface available to handlers.
type Env struct {
	// ShowOutput gates rendering of human-readable output.
	ShowOutput bool

	// Output is the sink printing handlers render to.
	Output io.Writer
}

// UnknownIdentifierError is returned when a request names a call the
// dispatcher does not recognize. It is fatal for the execution: an unhandled
// request would desynchronize the solver.
type UnknownIdentifierError struct {
	Function string
}

func (e *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("unknown foreign call %q", e.Function)
}

// ShapeMismatchError is returned when a handler's result does not match the
// shape the requesting opcode expects. It indicates a handler bug or a
// compiler/dispatcher skew.
type ShapeMismatchError struct {
	Function string
	Got      []Shape
	Want     []Shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("foreign call %q result shape mismatch: got %v, want %v", e.Function, e.Got, e.Want)
}

// AssertionError carries the custom failure text chosen by the source
// program through an assert_message call.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string {
	return "assertion failed: " + e.Msg
}

var (
	registry  = make(map[string]Handler)
	registryM sync.RWMutex
)

func init() {
	Register(FuncPrint, printHandler)
	Register(FuncAssertMessage, assertMessageHandler)
}

// Register adds a handler to the global registry under the given identifier.
// Registering the same identifier twice keeps the first handler.
func Register(name string, fn Handler) {
	registryM.Lock()
	defer registryM.Unlock()
	if _, ok := registry[name]; ok {
		log := logger.Logger()
		log.Debug().Str("name", name).Msg("foreign call handler registered multiple times")
		return
	}
	registry[name] = fn
}

func cloneRegistry() map[string]Handler {
	registryM.RLock()
	defer registryM.RUnlock()
	res := make(map[string]Handler, len(registry))
	for k, v := range registry {
		res[k] = v
	}
	return res
}

// Option alters the behavior of a Dispatcher. See the With* functions.
type Option func(*Dispatcher) error

// WithShowOutput controls whether printing calls render to the output sink.
func WithShowOutput(show bool) Option {
	return func(d *Dispatcher) error {
		d.env.ShowOutput = show
		return nil
	}
}

// WithOutput sets the sink printing calls render to. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(d *Dispatcher) error {
		if w == nil {
			return fmt.Errorf("nil output writer")
		}
		d.env.Output = w
		return nil
	}
}

// WithHandler adds or overrides a handler for this dispatcher only.
func WithHandler(name string, fn Handler) Option {
	return func(d *Dispatcher) error {
		d.handlers[name] = fn
		return nil
	}
}

// Dispatcher resolves foreign call requests into results. It is seeded from
// the global registry at construction.
type Dispatcher struct {
	handlers map[string]Handler
	env      Env
}

// NewDispatcher returns a dispatcher with the registered handlers and the
// given options applied.
func NewDispatcher(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: cloneRegistry(),
		env:      Env{Output: os.Stdout},
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Execute resolves req. The result's shape is validated against the shapes
// the requesting opcode expects before it is returned.
func (d *Dispatcher) Execute(req *Request) (*Result, error) {
	fn, ok := d.handlers[req.Function]
	if !ok {
		return nil, &UnknownIdentifierError{Function: req.Function}
	}

	values, err := fn(&d.env, req.Inputs)
	if err != nil {
		return nil, fmt.Errorf("foreign call %q: %w", req.Function, err)
	}

	if err := checkShapes(req, values); err != nil {
		return nil, err
	}
	return &Result{Values: values}, nil
}

func checkShapes(req *Request, values []Value) error {
	mismatch := len(values) != len(req.Expected)
	for i := 0; !mismatch && i < len(values); i++ {
		if values[i].Shape != req.Expected[i] {
			mismatch = true
		}
	}
	if !mismatch {
		return nil
	}
	got := make([]Shape, len(values))
	for i := range values {
		got[i] = values[i].Shape
	}
	return &ShapeMismatchError{Function: req.Function, Got: got, Want: req.Expected}
}

// printHandler renders its inputs to the output sink when ShowOutput is set.
// It produces no values; the requesting opcode has no destinations.
func printHandler(env *Env, inputs []Value) ([]Value, error) {
	if env.ShowOutput {
		var sbb strings.Builder
		for i := range inputs {
			if i > 0 {
				sbb.WriteByte(' ')
			}
			sbb.WriteString(formatValue(&inputs[i]))
		}
		if _, err := fmt.Fprintln(env.Output, sbb.String()); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// assertMessageHandler decodes its single array input as the bytes of the
// failure message and fails the execution with it.
func assertMessageHandler(_ *Env, inputs []Value) ([]Value, error) {
	var sbb strings.Builder
	for i := range inputs {
		for j := range inputs[i].Elements {
			var b big.Int
			inputs[i].Elements[j].BigInt(&b)
			sbb.WriteByte(byte(b.Uint64()))
		}
	}
	return nil, &AssertionError{Msg: sbb.String()}
}

func formatValue(v *Value) string {
	var b big.Int
	if v.Shape.Kind == ShapeSingle {
		if len(v.Elements) == 0 {
			return ""
		}
		v.Elements[0].BigInt(&b)
		return b.String()
	}
	var sbb strings.Builder
	sbb.WriteByte('[')
	for i := range v.Elements {
		if i > 0 {
			sbb.WriteString(", ")
		}
		v.Elements[i].BigInt(&b)
		sbb.WriteString(b.String())
	}
	sbb.WriteByte(']')
	return sbb.String()
}
