package circuit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consensys/acvm/witness"
)

func sampleCircuit() *Circuit {
	dst := witness.Index(4)
	return &Circuit{
		NbVariables:  6,
		PublicInputs: []witness.Index{0, 1},
		ReturnValues: []witness.Index{5},
		Opcodes: []Opcode{
			{AssertZero: NewLinear(-1, 2).AddMul(1, 0, 1).AddConstant(3)},
			{BlackBox: &BlackBoxCall{
				Function: BlackBoxXor,
				Inputs:   []FunctionInput{{W: 0, NbBits: 32}, {W: 1, NbBits: 32}},
				Outputs:  []witness.Index{3},
			}},
			{MemoryInit: &MemoryInit{BlockID: 1, Init: []witness.Index{0, 1, 2}}},
			{MemoryOp: &MemoryOp{BlockID: 1, Access: MemRead, Index: *NewConstant(2), Destination: 4}},
			{Oracle: &OracleCall{
				Function:     "get_balance",
				Inputs:       []OracleInput{{Single: NewLinear(1, 0)}, {Array: []Expression{*NewConstant(1), *NewConstant(2)}}},
				Destinations: []OracleDestination{{Single: &dst}},
			}},
		},
	}
}

func TestCircuitRoundTrip(t *testing.T) {
	assert := require.New(t)

	c := sampleCircuit()
	data, err := c.ToBytes()
	assert.NoError(err)

	var decoded Circuit
	n, err := decoded.FromBytes(data)
	assert.NoError(err)
	assert.Equal(len(data), n)

	assert.Equal(c.NbVariables, decoded.NbVariables)
	assert.Equal(c.PublicInputs, decoded.PublicInputs)
	assert.Equal(c.ReturnValues, decoded.ReturnValues)
	assert.Equal(len(c.Opcodes), len(decoded.Opcodes))
	for i := range c.Opcodes {
		assert.Equal(c.Opcodes[i].Kind(), decoded.Opcodes[i].Kind(), "opcode %d", i)
	}
	assert.Equal(c.Opcodes, decoded.Opcodes)
}

func TestFromBytesRejectsCorruptHeader(t *testing.T) {
	assert := require.New(t)

	c := sampleCircuit()
	data, err := c.ToBytes()
	assert.NoError(err)

	var decoded Circuit

	// short buffer
	_, err = decoded.FromBytes(data[:4])
	assert.Error(err)

	// bad magic
	bad := append([]byte{}, data...)
	bad[0] ^= 0xff
	_, err = decoded.FromBytes(bad)
	assert.Error(err)

	// unsupported version
	bad = append([]byte{}, data...)
	bad[4] = 99
	_, err = decoded.FromBytes(bad)
	assert.Error(err)

	// truncated body
	_, err = decoded.FromBytes(data[:len(data)-3])
	assert.Error(err)
}

func TestOpcodeString(t *testing.T) {
	c := sampleCircuit()
	for i := range c.Opcodes {
		require.NotEmpty(t, c.Opcodes[i].String())
	}
	var invalid Opcode
	require.Equal(t, KindInvalid, invalid.Kind())
}
