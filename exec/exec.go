// Package exec implements the execution driver: it drives one circuit to a
// fully assigned witness or a definite failure, dispatching any foreign
// calls the solving engine emits along the way.
//
// The driver owns the solve/suspend/resume loop. Solving yields control only
// at three boundaries: the circuit is solved, an opcode failed, or a foreign
// call is required. Exactly one foreign call is outstanding at a time;
// requests are never buffered or reordered.
package exec

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/consensys/acvm/circuit"
	"github.com/consensys/acvm/foreigncall"
	"github.com/consensys/acvm/logger"
	"github.com/consensys/acvm/solver"
	"github.com/consensys/acvm/witness"
)

// Engine is the constraint-solving capability the driver consumes. A Solver
// from the solver package implements it; tests may substitute their own.
type Engine interface {
	// Solve runs until the circuit is solved, an opcode fails, or a foreign
	// call is required. It never returns InProgress.
	Solve() solver.Status

	// Err returns the failure detail when Solve returned Failure.
	Err() error

	// PendingForeignCall returns the outstanding request when Solve returned
	// RequiresForeignCall.
	PendingForeignCall() *foreigncall.Request

	// ResolvePendingForeignCall feeds the result of the outstanding request
	// back into the engine.
	ResolvePendingForeignCall(*foreigncall.Result)

	// Finalize returns the witness store once Solve returned Solved.
	Finalize() *witness.Map
}

// ErrInternalInvariant reports a defect in the engine or driver, not a
// recoverable condition: the engine yielded a status it must never yield.
var ErrInternalInvariant = errors.New("internal invariant violation")

// SolverError wraps a failure reported by the solving engine: unsatisfiable
// constraints, a failed black-box evaluation, or a failed circuit-embedded
// assertion. Failures are deterministic given identical circuit and inputs;
// they are never retried.
type SolverError struct {
	Err error
}

func (e *SolverError) Error() string { return "circuit execution failed: " + e.Err.Error() }
func (e *SolverError) Unwrap() error { return e.Err }

// DispatchError wraps a failure of the foreign call dispatcher. Use
// errors.As to reach the underlying *foreigncall.UnknownIdentifierError or
// *foreigncall.ShapeMismatchError, which stay distinguishable from solver
// failures.
type DispatchError struct {
	Function string
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("foreign call %q failed: %s", e.Function, e.Err.Error())
}
func (e *DispatchError) Unwrap() error { return e.Err }

// Option alters the behavior of Execute. See the With* functions.
type Option func(*config) error

type config struct {
	showOutput     bool
	output         io.Writer
	log            zerolog.Logger
	haveLog        bool
	foreignOptions []foreigncall.Option
	solverOptions  []solver.Option
}

// WithShowOutput controls whether printing foreign calls render to the
// output sink. Witness values are identical either way.
func WithShowOutput(show bool) Option {
	return func(cfg *config) error {
		cfg.showOutput = show
		return nil
	}
}

// WithOutput sets the sink printing foreign calls render to.
func WithOutput(w io.Writer) Option {
	return func(cfg *config) error {
		if w == nil {
			return errors.New("nil output writer")
		}
		cfg.output = w
		return nil
	}
}

// WithLogger sets the logger used by the driver and the engine it constructs.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) error {
		cfg.log = l
		cfg.haveLog = true
		return nil
	}
}

// WithForeignCallOptions passes additional options to the dispatcher, e.g.
// extra handlers.
func WithForeignCallOptions(opts ...foreigncall.Option) Option {
	return func(cfg *config) error {
		cfg.foreignOptions = append(cfg.foreignOptions, opts...)
		return nil
	}
}

// WithSolverOptions passes additional options to the solving engine.
func WithSolverOptions(opts ...solver.Option) Option {
	return func(cfg *config) error {
		cfg.solverOptions = append(cfg.solverOptions, opts...)
		return nil
	}
}

// Execute drives c to a final witness assignment. It constructs a solving
// engine from the circuit, the initial witness and the black-box evaluator,
// and a dispatcher from the registered foreign call handlers, then runs the
// driver loop. On success the returned store assigns every variable the
// circuit requires; ownership transfers to the caller.
func Execute(bb solver.BlackBoxEvaluator, c *circuit.Circuit, initial *witness.Map, opts ...Option) (*witness.Map, error) {
	cfg := config{log: logger.Logger()}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	solverOptions := cfg.solverOptions
	if cfg.haveLog {
		solverOptions = append(solverOptions, solver.WithLogger(cfg.log))
	}
	engine, err := solver.New(c, initial, bb, solverOptions...)
	if err != nil {
		return nil, err
	}

	foreignOptions := append([]foreigncall.Option{
		foreigncall.WithShowOutput(cfg.showOutput),
	}, cfg.foreignOptions...)
	if cfg.output != nil {
		foreignOptions = append(foreignOptions, foreigncall.WithOutput(cfg.output))
	}
	dispatcher, err := foreigncall.NewDispatcher(foreignOptions...)
	if err != nil {
		return nil, err
	}

	return Run(engine, dispatcher, cfg.log)
}

// Run is the driver state machine over an already constructed engine and
// dispatcher. It loops on the engine status: Solved terminates successfully,
// Failure and dispatch errors terminate with a typed error, and
// RequiresForeignCall dispatches the single outstanding request and resumes.
func Run(engine Engine, dispatcher *foreigncall.Dispatcher, log zerolog.Logger) (*witness.Map, error) {
	for {
		switch status := engine.Solve(); status {
		case solver.Solved:
			return engine.Finalize(), nil

		case solver.InProgress:
			// Solve is defined to run to one of the other three statuses
			return nil, fmt.Errorf("%w: solver stopped while in progress", ErrInternalInvariant)

		case solver.Failure:
			return nil, &SolverError{Err: engine.Err()}

		case solver.RequiresForeignCall:
			req := engine.PendingForeignCall()
			if req == nil {
				return nil, fmt.Errorf("%w: no pending request for RequiresForeignCall", ErrInternalInvariant)
			}
			log.Debug().Str("function", req.Function).Int("nbInputs", len(req.Inputs)).Msg("dispatching foreign call")
			res, err := dispatcher.Execute(req)
			if err != nil {
				// an assert_message call is the circuit failing on purpose; it
				// classifies as a solver failure, not a dispatcher one
				var assertErr *foreigncall.AssertionError
				if errors.As(err, &assertErr) {
					return nil, &SolverError{Err: assertErr}
				}
				return nil, &DispatchError{Function: req.Function, Err: err}
			}
			engine.ResolvePendingForeignCall(res)

		default:
			return nil, fmt.Errorf("%w: unknown solver status %s", ErrInternalInvariant, status)
		}
	}
}
