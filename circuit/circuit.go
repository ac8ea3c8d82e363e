// Package circuit defines the compiled circuit representation consumed by the
// witness-execution engine: an ordered, immutable sequence of opcodes over
// witness indices.
//
// A circuit is produced by the front-end compiler; this package performs no
// well-formedness validation. Opcodes reference only witness indices declared
// or produced earlier in solving order.
package circuit

import (
	"fmt"

	"github.com/consensys/acvm/witness"
)

// Circuit is the compiled form of a program.
//
// A Circuit is immutable once decoded; the execution engine never mutates it
// and independent executions may share one instance.
type Circuit struct {
	// NbVariables is the total number of witness indices the circuit declares.
	NbVariables uint32

	// PublicInputs are the indices the caller must provide and may publish.
	PublicInputs []witness.Index

	// ReturnValues are the indices holding the program's return values once solved.
	ReturnValues []witness.Index

	Opcodes []Opcode
}

// OpcodeKind discriminates the variants of Opcode.
type OpcodeKind uint8

const (
	KindInvalid OpcodeKind = iota
	KindAssertZero
	KindBlackBox
	KindMemoryInit
	KindMemoryOp
	KindOracle
)

// Opcode is one instruction of a circuit. Exactly one field is non-nil.
type Opcode struct {
	AssertZero *Expression   `cbor:"1,keyasint,omitempty"`
	BlackBox   *BlackBoxCall `cbor:"2,keyasint,omitempty"`
	MemoryInit *MemoryInit   `cbor:"3,keyasint,omitempty"`
	MemoryOp   *MemoryOp     `cbor:"4,keyasint,omitempty"`
	Oracle     *OracleCall   `cbor:"5,keyasint,omitempty"`
}

// Kind returns the variant tag of the opcode.
func (op *Opcode) Kind() OpcodeKind {
	switch {
	case op.AssertZero != nil:
		return KindAssertZero
	case op.BlackBox != nil:
		return KindBlackBox
	case op.MemoryInit != nil:
		return KindMemoryInit
	case op.MemoryOp != nil:
		return KindMemoryOp
	case op.Oracle != nil:
		return KindOracle
	default:
		return KindInvalid
	}
}

func (op *Opcode) String() string {
	switch op.Kind() {
	case KindAssertZero:
		return fmt.Sprintf("ASSERT %s = 0", op.AssertZero)
	case KindBlackBox:
		return fmt.Sprintf("BLACKBOX %s", op.BlackBox.Function)
	case KindMemoryInit:
		return fmt.Sprintf("MEM INIT block %d (%d entries)", op.MemoryInit.BlockID, len(op.MemoryInit.Init))
	case KindMemoryOp:
		return fmt.Sprintf("MEM %s block %d", op.MemoryOp.Access, op.MemoryOp.BlockID)
	case KindOracle:
		return fmt.Sprintf("ORACLE %q", op.Oracle.Function)
	default:
		return "INVALID"
	}
}

// BlackBoxFunc identifies a black-box primitive not expressible as generic gates.
type BlackBoxFunc uint8

const (
	BlackBoxRange BlackBoxFunc = iota
	BlackBoxAnd
	BlackBoxXor
	BlackBoxMiMC
	BlackBoxBlake2s
)

func (f BlackBoxFunc) String() string {
	switch f {
	case BlackBoxRange:
		return "range"
	case BlackBoxAnd:
		return "and"
	case BlackBoxXor:
		return "xor"
	case BlackBoxMiMC:
		return "mimc"
	case BlackBoxBlake2s:
		return "blake2s"
	default:
		return fmt.Sprintf("blackbox(%d)", uint8(f))
	}
}

// FunctionInput is one input of a black-box call: a witness index with the
// bit size the primitive should consider.
type FunctionInput struct {
	W      witness.Index `cbor:"1,keyasint"`
	NbBits uint32        `cbor:"2,keyasint"`
}

// BlackBoxCall invokes a black-box primitive on witness-backed inputs and
// writes its results to the output indices.
type BlackBoxCall struct {
	Function BlackBoxFunc    `cbor:"1,keyasint"`
	Inputs   []FunctionInput `cbor:"2,keyasint"`
	Outputs  []witness.Index `cbor:"3,keyasint"`
}

// MemAccess discriminates memory reads from writes.
type MemAccess uint8

const (
	MemRead MemAccess = iota
	MemWrite
)

func (a MemAccess) String() string {
	if a == MemWrite {
		return "WRITE"
	}
	return "READ"
}

// MemoryInit declares a memory block and fills it from witness indices.
type MemoryInit struct {
	BlockID uint32          `cbor:"1,keyasint"`
	Init    []witness.Index `cbor:"2,keyasint"`
}

// MemoryOp reads or writes one cell of a previously initialized block. The
// index expression must be fully determined when the opcode is reached.
type MemoryOp struct {
	BlockID uint32     `cbor:"1,keyasint"`
	Access  MemAccess  `cbor:"2,keyasint"`
	Index   Expression `cbor:"3,keyasint"`

	// Value is the written value; write only. It must be fully determined
	// when the opcode is reached.
	Value *Expression `cbor:"4,keyasint,omitempty"`

	// Destination receives the read value; read only.
	Destination witness.Index `cbor:"5,keyasint,omitempty"`
}

// OracleInput is one input of an oracle call: either a single expression or
// an ordered array of expressions.
type OracleInput struct {
	Single *Expression  `cbor:"1,keyasint,omitempty"`
	Array  []Expression `cbor:"2,keyasint,omitempty"`
}

// OracleDestination is one output slot of an oracle call: either a single
// witness index or an ordered array of indices.
type OracleDestination struct {
	Single *witness.Index  `cbor:"1,keyasint,omitempty"`
	Array  []witness.Index `cbor:"2,keyasint,omitempty"`
}

// OracleCall requests a value only an oracle outside the constraint algebra
// can supply. Solving suspends at this opcode until the caller provides the
// oracle's result.
type OracleCall struct {
	Function     string              `cbor:"1,keyasint"`
	Inputs       []OracleInput       `cbor:"2,keyasint"`
	Destinations []OracleDestination `cbor:"3,keyasint"`
}
