package solver

import (
	"testing"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2s"

	"github.com/consensys/acvm/circuit"
	"github.com/consensys/acvm/foreigncall"
	"github.com/consensys/acvm/witness"
)

func elem(v int64) fr.Element {
	var e fr.Element
	e.SetInt64(v)
	return e
}

func initialWitness(t *testing.T, nbVariables uint32, values map[witness.Index]int64) *witness.Map {
	t.Helper()
	w := witness.New(nbVariables)
	for i, v := range values {
		require.NoError(t, w.Set(i, elem(v)))
	}
	return w
}

func requireValue(t *testing.T, w *witness.Map, i witness.Index, v int64) {
	t.Helper()
	got, ok := w.Get(i)
	require.True(t, ok, "witness %d unassigned", i)
	want := elem(v)
	require.True(t, got.Equal(&want), "witness %d = %s, want %d", i, got.String(), v)
}

// w2 = w0 * w1 + 5
func productCircuit() *circuit.Circuit {
	e := circuit.NewLinear(-1, 2).AddMul(1, 0, 1).AddConstant(5)
	return &circuit.Circuit{
		NbVariables: 3,
		Opcodes:     []circuit.Opcode{{AssertZero: e}},
	}
}

func TestSolveArithmetic(t *testing.T) {
	assert := require.New(t)

	s, err := New(productCircuit(), initialWitness(t, 3, map[witness.Index]int64{0: 3, 1: 4}), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(Solved, s.Solve())
	w := s.Finalize()
	requireValue(t, w, 2, 17)
}

func TestSolveChainsThroughOpcodes(t *testing.T) {
	assert := require.New(t)

	// w1 = w0 + 1 ; w2 = w1 * w1
	c := &circuit.Circuit{
		NbVariables: 3,
		Opcodes: []circuit.Opcode{
			{AssertZero: circuit.NewLinear(1, 0).AddLinear(-1, 1).AddConstant(1)},
			{AssertZero: circuit.NewLinear(-1, 2).AddMul(1, 1, 1)},
		},
	}
	s, err := New(c, initialWitness(t, 3, map[witness.Index]int64{0: 6}), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(Solved, s.Solve())
	w := s.Finalize()
	requireValue(t, w, 1, 7)
	requireValue(t, w, 2, 49)
}

func TestUnsatisfiedConstraint(t *testing.T) {
	assert := require.New(t)

	// 2 * w0 = 5 with w0 = 1
	c := &circuit.Circuit{
		NbVariables: 1,
		Opcodes:     []circuit.Opcode{{AssertZero: circuit.NewLinear(2, 0).AddConstant(-5)}},
	}
	s, err := New(c, initialWitness(t, 1, map[witness.Index]int64{0: 1}), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(Failure, s.Solve())
	assert.ErrorIs(s.Err(), ErrUnsatisfiedConstraint)
}

func TestOpcodeNotSolvable(t *testing.T) {
	assert := require.New(t)

	// two unknowns in one linear opcode
	c := &circuit.Circuit{
		NbVariables: 2,
		Opcodes:     []circuit.Opcode{{AssertZero: circuit.NewLinear(1, 0).AddLinear(1, 1)}},
	}
	s, err := New(c, witness.New(2), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(Failure, s.Solve())
	assert.ErrorIs(s.Err(), ErrOpcodeNotSolvable)
}

func TestSolveIsTerminalAfterFailure(t *testing.T) {
	assert := require.New(t)

	c := &circuit.Circuit{
		NbVariables: 1,
		Opcodes:     []circuit.Opcode{{AssertZero: circuit.NewConstant(1)}},
	}
	s, err := New(c, witness.New(1), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(Failure, s.Solve())
	assert.Equal(Failure, s.Solve())
}

func TestOracleSuspendResume(t *testing.T) {
	assert := require.New(t)

	dst := witness.Index(1)
	c := &circuit.Circuit{
		NbVariables: 3,
		Opcodes: []circuit.Opcode{
			{Oracle: &circuit.OracleCall{
				Function:     "double",
				Inputs:       []circuit.OracleInput{{Single: circuit.NewLinear(1, 0)}},
				Destinations: []circuit.OracleDestination{{Single: &dst}},
			}},
			// w2 = w1 + 1
			{AssertZero: circuit.NewLinear(1, 1).AddLinear(-1, 2).AddConstant(1)},
		},
	}
	s, err := New(c, initialWitness(t, 3, map[witness.Index]int64{0: 21}), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(RequiresForeignCall, s.Solve())

	req := s.PendingForeignCall()
	assert.NotNil(req)
	assert.Equal("double", req.Function)
	assert.Len(req.Inputs, 1)
	want := elem(21)
	assert.True(req.Inputs[0].Elements[0].Equal(&want))
	assert.Equal([]foreigncall.Shape{{Kind: foreigncall.ShapeSingle}}, req.Expected)

	// calling Solve again without resolving does not advance
	assert.Equal(RequiresForeignCall, s.Solve())
	assert.Same(req, s.PendingForeignCall())

	before := s.w.Len()
	s.ResolvePendingForeignCall(&foreigncall.Result{Values: []foreigncall.Value{foreigncall.Single(elem(42))}})
	assert.Nil(s.PendingForeignCall())

	assert.Equal(Solved, s.Solve())
	w := s.Finalize()
	assert.Greater(w.Len(), before)
	requireValue(t, w, 1, 42)
	requireValue(t, w, 2, 43)
}

func TestResolveWithoutPendingPanics(t *testing.T) {
	assert := require.New(t)

	s, err := New(productCircuit(), witness.New(3), DefaultEvaluator{})
	assert.NoError(err)
	assert.Panics(func() {
		s.ResolvePendingForeignCall(&foreigncall.Result{})
	})
}

func TestOracleResultArityChecked(t *testing.T) {
	assert := require.New(t)

	dst := witness.Index(1)
	c := &circuit.Circuit{
		NbVariables: 2,
		Opcodes: []circuit.Opcode{
			{Oracle: &circuit.OracleCall{
				Function:     "f",
				Inputs:       []circuit.OracleInput{{Single: circuit.NewLinear(1, 0)}},
				Destinations: []circuit.OracleDestination{{Single: &dst}},
			}},
		},
	}
	s, err := New(c, initialWitness(t, 2, map[witness.Index]int64{0: 1}), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(RequiresForeignCall, s.Solve())
	s.ResolvePendingForeignCall(&foreigncall.Result{}) // no values
	assert.Equal(Failure, s.Solve())
	assert.Error(s.Err())
}

func TestMemoryOps(t *testing.T) {
	assert := require.New(t)

	c := &circuit.Circuit{
		NbVariables: 5,
		Opcodes: []circuit.Opcode{
			{MemoryInit: &circuit.MemoryInit{BlockID: 0, Init: []witness.Index{0, 1}}},
			// mem[0] <- w2
			{MemoryOp: &circuit.MemoryOp{BlockID: 0, Access: circuit.MemWrite,
				Index: *circuit.NewConstant(0), Value: circuit.NewLinear(1, 2)}},
			// w3 <- mem[0], w4 <- mem[1]
			{MemoryOp: &circuit.MemoryOp{BlockID: 0, Access: circuit.MemRead,
				Index: *circuit.NewConstant(0), Destination: 3}},
			{MemoryOp: &circuit.MemoryOp{BlockID: 0, Access: circuit.MemRead,
				Index: *circuit.NewConstant(1), Destination: 4}},
		},
	}
	s, err := New(c, initialWitness(t, 5, map[witness.Index]int64{0: 10, 1: 20, 2: 30}), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(Solved, s.Solve())
	w := s.Finalize()
	requireValue(t, w, 3, 30)
	requireValue(t, w, 4, 20)
}

func TestMemoryOutOfBounds(t *testing.T) {
	assert := require.New(t)

	c := &circuit.Circuit{
		NbVariables: 2,
		Opcodes: []circuit.Opcode{
			{MemoryInit: &circuit.MemoryInit{BlockID: 0, Init: []witness.Index{0}}},
			{MemoryOp: &circuit.MemoryOp{BlockID: 0, Access: circuit.MemRead,
				Index: *circuit.NewConstant(3), Destination: 1}},
		},
	}
	s, err := New(c, initialWitness(t, 2, map[witness.Index]int64{0: 1}), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(Failure, s.Solve())
	assert.Contains(s.Err().Error(), "out of bounds")
}

func TestBlackBoxBitwise(t *testing.T) {
	assert := require.New(t)

	c := &circuit.Circuit{
		NbVariables: 4,
		Opcodes: []circuit.Opcode{
			{BlackBox: &circuit.BlackBoxCall{
				Function: circuit.BlackBoxAnd,
				Inputs:   []circuit.FunctionInput{{W: 0, NbBits: 8}, {W: 1, NbBits: 8}},
				Outputs:  []witness.Index{2},
			}},
			{BlackBox: &circuit.BlackBoxCall{
				Function: circuit.BlackBoxXor,
				Inputs:   []circuit.FunctionInput{{W: 0, NbBits: 8}, {W: 1, NbBits: 8}},
				Outputs:  []witness.Index{3},
			}},
		},
	}
	s, err := New(c, initialWitness(t, 4, map[witness.Index]int64{0: 0b1100, 1: 0b1010}), DefaultEvaluator{})
	assert.NoError(err)

	assert.Equal(Solved, s.Solve())
	w := s.Finalize()
	requireValue(t, w, 2, 0b1000)
	requireValue(t, w, 3, 0b0110)
}

func TestBlackBoxRange(t *testing.T) {
	assert := require.New(t)

	rangeCircuit := func() *circuit.Circuit {
		return &circuit.Circuit{
			NbVariables: 1,
			Opcodes: []circuit.Opcode{
				{BlackBox: &circuit.BlackBoxCall{
					Function: circuit.BlackBoxRange,
					Inputs:   []circuit.FunctionInput{{W: 0, NbBits: 8}},
				}},
			},
		}
	}

	s, err := New(rangeCircuit(), initialWitness(t, 1, map[witness.Index]int64{0: 255}), DefaultEvaluator{})
	assert.NoError(err)
	assert.Equal(Solved, s.Solve())

	s, err = New(rangeCircuit(), initialWitness(t, 1, map[witness.Index]int64{0: 256}), DefaultEvaluator{})
	assert.NoError(err)
	assert.Equal(Failure, s.Solve())
}

func TestBlackBoxBlake2s(t *testing.T) {
	assert := require.New(t)

	inputs := []circuit.FunctionInput{{W: 0, NbBits: 8}, {W: 1, NbBits: 8}}
	outputs := make([]witness.Index, 32)
	for i := range outputs {
		outputs[i] = witness.Index(2 + i)
	}
	c := &circuit.Circuit{
		NbVariables: 34,
		Opcodes: []circuit.Opcode{
			{BlackBox: &circuit.BlackBoxCall{
				Function: circuit.BlackBoxBlake2s,
				Inputs:   inputs,
				Outputs:  outputs,
			}},
		},
	}
	s, err := New(c, initialWitness(t, 34, map[witness.Index]int64{0: 'h', 1: 'i'}), DefaultEvaluator{})
	assert.NoError(err)
	assert.Equal(Solved, s.Solve())
	w := s.Finalize()

	digest := blake2s.Sum256([]byte("hi"))
	for i := range digest {
		requireValue(t, w, outputs[i], int64(digest[i]))
	}
}

// monotonic fill: the set of assigned entries after each resumption is a
// superset of the set before the matching suspension
func TestMonotonicFillAcrossSuspensions(t *testing.T) {
	assert := require.New(t)

	d1, d2 := witness.Index(1), witness.Index(2)
	c := &circuit.Circuit{
		NbVariables: 3,
		Opcodes: []circuit.Opcode{
			{Oracle: &circuit.OracleCall{
				Function:     "f",
				Inputs:       []circuit.OracleInput{{Single: circuit.NewLinear(1, 0)}},
				Destinations: []circuit.OracleDestination{{Single: &d1}},
			}},
			{Oracle: &circuit.OracleCall{
				Function:     "f",
				Inputs:       []circuit.OracleInput{{Single: circuit.NewLinear(1, 1)}},
				Destinations: []circuit.OracleDestination{{Single: &d2}},
			}},
		},
	}
	s, err := New(c, initialWitness(t, 3, map[witness.Index]int64{0: 1}), DefaultEvaluator{})
	assert.NoError(err)

	k := 0
	for s.Solve() == RequiresForeignCall {
		before := assignedSet(s.w)
		s.ResolvePendingForeignCall(&foreigncall.Result{Values: []foreigncall.Value{foreigncall.Single(elem(int64(10 + k)))}})
		status := s.Solve()
		after := assignedSet(s.w)
		for i := range before {
			assert.Contains(after, i, "resumption %d lost witness %d", k, i)
		}
		assert.Greater(len(after), len(before), "resumption %d filled nothing", k)
		if status != RequiresForeignCall {
			break
		}
		k++
	}
	assert.Equal(Solved, s.Status())
}

func assignedSet(w *witness.Map) map[witness.Index]struct{} {
	r := make(map[witness.Index]struct{}, w.Len())
	for _, i := range w.Indices() {
		r[i] = struct{}{}
	}
	return r
}
