// Package solver implements the constraint-solving engine: given a compiled
// circuit and a partial witness, it fills the remaining witness entries
// opcode by opcode, suspending whenever an oracle-call opcode requires a
// value only a foreign call can supply.
//
// Solve runs until one of three boundaries: the circuit is fully solved, an
// opcode fails, or a foreign call is required. The InProgress status exists
// only as the initial state and is never returned by Solve.
package solver

import (
	"fmt"
	"math/big"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"

	"github.com/consensys/acvm/circuit"
	"github.com/consensys/acvm/foreigncall"
	"github.com/consensys/acvm/logger"
	"github.com/consensys/acvm/witness"
)

// Status is the state of the engine as observed between Solve calls.
type Status uint8

const (
	// InProgress is the initial state; Solve never returns it.
	InProgress Status = iota

	// Solved means every opcode has been processed successfully.
	Solved

	// Failure means an opcode could not be satisfied; see Err.
	Failure

	// RequiresForeignCall means solving is suspended on an oracle call; see
	// PendingForeignCall.
	RequiresForeignCall
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "InProgress"
	case Solved:
		return "Solved"
	case Failure:
		return "Failure"
	case RequiresForeignCall:
		return "RequiresForeignCall"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Option alters the behavior of a Solver. See the With* functions.
type Option func(*Solver) error

// WithLogger sets the logger used for opcode tracing. Defaults to the
// package-global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Solver) error {
		s.log = l
		return nil
	}
}

// Solver solves one circuit. It is not safe for concurrent use; independent
// circuits may be solved on independent goroutines with distinct Solvers.
type Solver struct {
	circuit *circuit.Circuit
	w       *witness.Map
	bb      BlackBoxEvaluator

	pc     int // next opcode to attempt
	status Status
	err    error

	pending       *foreigncall.Request
	pendingResult *foreigncall.Result

	memory map[uint32][]fr.Element

	log zerolog.Logger
}

// New returns a Solver over the given circuit, seeded with the initial
// witness. The black-box evaluator supplies the primitives the circuit
// cannot express generically.
func New(c *circuit.Circuit, initial *witness.Map, bb BlackBoxEvaluator, opts ...Option) (*Solver, error) {
	s := &Solver{
		circuit: c,
		w:       initial,
		bb:      bb,
		status:  InProgress,
		memory:  make(map[uint32][]fr.Element),
		log:     logger.Logger(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Status returns the engine state as of the last Solve call.
func (s *Solver) Status() Status { return s.status }

// Err returns the failure detail when Status is Failure.
func (s *Solver) Err() error { return s.err }

// PendingForeignCall returns the outstanding request when Status is
// RequiresForeignCall, nil otherwise.
func (s *Solver) PendingForeignCall() *foreigncall.Request { return s.pending }

// Solve runs the engine until the circuit is solved, an opcode fails, or a
// foreign call is required. Calling Solve with an unresolved foreign call
// returns RequiresForeignCall again without advancing.
func (s *Solver) Solve() Status {
	if s.status == Solved || s.status == Failure {
		return s.status
	}
	if s.pending != nil {
		return s.status
	}

	for s.pc < len(s.circuit.Opcodes) {
		op := &s.circuit.Opcodes[s.pc]
		s.log.Trace().Int("opcode", s.pc).Stringer("kind", op).Msg("solving")

		var err error
		switch op.Kind() {
		case circuit.KindAssertZero:
			err = solveAssertZero(s.w, op.AssertZero)
		case circuit.KindBlackBox:
			err = s.solveBlackBox(op.BlackBox)
		case circuit.KindMemoryInit:
			err = s.solveMemoryInit(op.MemoryInit)
		case circuit.KindMemoryOp:
			err = s.solveMemoryOp(op.MemoryOp)
		case circuit.KindOracle:
			var suspended bool
			suspended, err = s.solveOracle(op.Oracle)
			if err == nil && suspended {
				s.status = RequiresForeignCall
				return s.status
			}
		default:
			err = fmt.Errorf("invalid opcode at index %d", s.pc)
		}

		if err != nil {
			s.status = Failure
			s.err = fmt.Errorf("opcode %d (%s): %w", s.pc, op, err)
			return s.status
		}
		s.pc++
	}

	s.status = Solved
	return s.status
}

// ResolvePendingForeignCall supplies the result of the outstanding foreign
// call. It panics if no call is pending: resolution without a matching
// request is a driver bug.
func (s *Solver) ResolvePendingForeignCall(res *foreigncall.Result) {
	if s.pending == nil {
		panic("no foreign call pending resolution")
	}
	s.pending = nil
	s.pendingResult = res
	s.status = InProgress
}

// Finalize returns the witness store; ownership transfers to the caller.
// It must be called once the engine reports Solved.
func (s *Solver) Finalize() *witness.Map {
	w := s.w
	s.w = nil
	return w
}

// solveOracle builds the foreign call request for op, or injects a
// previously supplied result. It reports whether solving must suspend.
func (s *Solver) solveOracle(op *circuit.OracleCall) (bool, error) {
	if s.pendingResult != nil {
		res := s.pendingResult
		s.pendingResult = nil
		return false, s.injectForeignCallResult(op, res)
	}

	inputs := make([]foreigncall.Value, len(op.Inputs))
	for i := range op.Inputs {
		in := &op.Inputs[i]
		if in.Single != nil {
			v, err := evalExpression(s.w, in.Single)
			if err != nil {
				return false, err
			}
			inputs[i] = foreigncall.Single(v)
			continue
		}
		vs := make([]fr.Element, len(in.Array))
		for j := range in.Array {
			v, err := evalExpression(s.w, &in.Array[j])
			if err != nil {
				return false, err
			}
			vs[j] = v
		}
		inputs[i] = foreigncall.Array(vs)
	}

	expected := make([]foreigncall.Shape, len(op.Destinations))
	for i := range op.Destinations {
		if op.Destinations[i].Single != nil {
			expected[i] = foreigncall.Shape{Kind: foreigncall.ShapeSingle}
		} else {
			expected[i] = foreigncall.Shape{
				Kind: foreigncall.ShapeArray,
				Len:  uint32(len(op.Destinations[i].Array)),
			}
		}
	}

	s.pending = &foreigncall.Request{
		Function: op.Function,
		Inputs:   inputs,
		Expected: expected,
	}
	return true, nil
}

func (s *Solver) injectForeignCallResult(op *circuit.OracleCall, res *foreigncall.Result) error {
	if len(res.Values) != len(op.Destinations) {
		return fmt.Errorf("foreign call %q returned %d values for %d destinations",
			op.Function, len(res.Values), len(op.Destinations))
	}
	for i := range op.Destinations {
		dst := &op.Destinations[i]
		v := &res.Values[i]
		if dst.Single != nil {
			if len(v.Elements) != 1 {
				return fmt.Errorf("foreign call %q value %d: want a single element, got %d",
					op.Function, i, len(v.Elements))
			}
			if err := s.w.Set(*dst.Single, v.Elements[0]); err != nil {
				return err
			}
			continue
		}
		if len(v.Elements) != len(dst.Array) {
			return fmt.Errorf("foreign call %q value %d: want %d elements, got %d",
				op.Function, i, len(dst.Array), len(v.Elements))
		}
		for j := range dst.Array {
			if err := s.w.Set(dst.Array[j], v.Elements[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Solver) solveBlackBox(op *circuit.BlackBoxCall) error {
	inputs := make([]fr.Element, len(op.Inputs))
	for i := range op.Inputs {
		v, ok := s.w.Get(op.Inputs[i].W)
		if !ok {
			return fmt.Errorf("%w: witness %d", ErrOpcodeNotSolvable, op.Inputs[i].W)
		}
		inputs[i] = v
	}

	switch op.Function {
	case circuit.BlackBoxRange:
		if len(op.Inputs) != 1 {
			return fmt.Errorf("range check expects 1 input, got %d", len(op.Inputs))
		}
		return s.bb.RangeCheck(inputs[0], op.Inputs[0].NbBits)

	case circuit.BlackBoxAnd, circuit.BlackBoxXor:
		if len(op.Inputs) != 2 || len(op.Outputs) != 1 {
			return fmt.Errorf("bitwise op expects 2 inputs and 1 output")
		}
		f := s.bb.And
		if op.Function == circuit.BlackBoxXor {
			f = s.bb.Xor
		}
		res, err := f(inputs[0], inputs[1], op.Inputs[0].NbBits)
		if err != nil {
			return err
		}
		return s.w.Set(op.Outputs[0], res)

	case circuit.BlackBoxMiMC:
		if len(op.Outputs) != 1 {
			return fmt.Errorf("mimc expects 1 output, got %d", len(op.Outputs))
		}
		res, err := s.bb.MiMCHash(inputs)
		if err != nil {
			return err
		}
		return s.w.Set(op.Outputs[0], res)

	case circuit.BlackBoxBlake2s:
		if len(op.Outputs) != 32 {
			return fmt.Errorf("blake2s expects 32 outputs, got %d", len(op.Outputs))
		}
		data := make([]byte, len(inputs))
		for i := range inputs {
			b := inputs[i].Bytes()
			data[i] = b[fr.Bytes-1]
		}
		digest, err := s.bb.Blake2s(data)
		if err != nil {
			return err
		}
		var v fr.Element
		for i := range digest {
			v.SetUint64(uint64(digest[i]))
			if err := s.w.Set(op.Outputs[i], v); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unsupported black box function %s", op.Function)
	}
}

func (s *Solver) solveMemoryInit(op *circuit.MemoryInit) error {
	if _, ok := s.memory[op.BlockID]; ok {
		return fmt.Errorf("memory block %d initialized twice", op.BlockID)
	}
	block := make([]fr.Element, len(op.Init))
	for i := range op.Init {
		v, ok := s.w.Get(op.Init[i])
		if !ok {
			return fmt.Errorf("%w: witness %d", ErrOpcodeNotSolvable, op.Init[i])
		}
		block[i] = v
	}
	s.memory[op.BlockID] = block
	return nil
}

func (s *Solver) solveMemoryOp(op *circuit.MemoryOp) error {
	block, ok := s.memory[op.BlockID]
	if !ok {
		return fmt.Errorf("memory block %d not initialized", op.BlockID)
	}

	idxValue, err := evalExpression(s.w, &op.Index)
	if err != nil {
		return err
	}
	var b big.Int
	idxValue.BigInt(&b)
	if !b.IsUint64() || b.Uint64() >= uint64(len(block)) {
		return fmt.Errorf("memory access out of bounds: index %s, block size %d", b.String(), len(block))
	}
	idx := b.Uint64()

	if op.Access == circuit.MemWrite {
		if op.Value == nil {
			return fmt.Errorf("memory write without value")
		}
		v, err := evalExpression(s.w, op.Value)
		if err != nil {
			return err
		}
		block[idx] = v
		return nil
	}
	return s.w.Set(op.Destination, block[idx])
}
