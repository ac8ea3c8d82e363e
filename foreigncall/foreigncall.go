// Package foreigncall defines the protocol between the solving engine and
// the oracles living outside the constraint algebra: the request and result
// values exchanged at a suspension point, their wire encoding, and the
// dispatcher resolving a request into a result.
//
// Solving is strictly sequential; at most one request is outstanding at any
// time. A request is emitted when the engine reaches an oracle-call opcode
// whose inputs are known, and its matching result must be fed back before
// solving resumes.
package foreigncall

import (
	"encoding/binary"
	"errors"
	"fmt"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ShapeKind discriminates single values from arrays.
type ShapeKind uint8

const (
	ShapeSingle ShapeKind = iota
	ShapeArray
)

// Shape describes the structure of one Value. Len is meaningful for
// ShapeArray only.
type Shape struct {
	Kind ShapeKind
	Len  uint32
}

func (s Shape) String() string {
	if s.Kind == ShapeArray {
		return fmt.Sprintf("array[%d]", s.Len)
	}
	return "single"
}

// Value is one input or output of a foreign call: a flat sequence of field
// elements together with its shape descriptor.
type Value struct {
	Shape    Shape
	Elements []fr.Element
}

// Single wraps a field element as a single-shaped value.
func Single(v fr.Element) Value {
	return Value{Shape: Shape{Kind: ShapeSingle}, Elements: []fr.Element{v}}
}

// Array wraps a sequence of field elements as an array-shaped value.
func Array(vs []fr.Element) Value {
	return Value{Shape: Shape{Kind: ShapeArray, Len: uint32(len(vs))}, Elements: vs}
}

// Request is emitted by the solving engine when an opcode requires a value
// only an oracle can supply.
type Request struct {
	// Function is the call identifier, shared vocabulary with the front-end.
	Function string

	// Inputs are the witness-backed input values, in opcode order.
	Inputs []Value

	// Expected are the shapes of the destination slots the requesting opcode
	// will fill from the result, in order.
	Expected []Shape
}

// Result is the oracle's answer to a Request, fed back verbatim into the
// solving engine.
type Result struct {
	Values []Value
}

// EncodingVersion tags the wire form of encoded values; bump on breaking change.
const EncodingVersion = 1

var errTruncatedValues = errors.New("truncated foreign call value encoding")

// EncodeValues serializes values to the version-tagged wire form:
//
//	[version byte | uint32(nbValues) | (shapeKind byte | uint32(nbElements) | elements)* ]
//
// with each element big-endian, fr.Bytes wide.
func EncodeValues(values []Value) []byte {
	size := 1 + 4
	for i := range values {
		size += 1 + 4 + len(values[i].Elements)*fr.Bytes
	}
	buf := make([]byte, 0, size)
	buf = append(buf, EncodingVersion)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(values)))
	for i := range values {
		buf = append(buf, byte(values[i].Shape.Kind))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(values[i].Elements)))
		for j := range values[i].Elements {
			b := values[i].Elements[j].Bytes()
			buf = append(buf, b[:]...)
		}
	}
	return buf
}

// DecodeValues parses the wire form produced by EncodeValues.
func DecodeValues(data []byte) ([]Value, error) {
	if len(data) < 5 {
		return nil, errTruncatedValues
	}
	if data[0] != EncodingVersion {
		return nil, fmt.Errorf("unsupported foreign call encoding version %d", data[0])
	}
	nbValues := binary.BigEndian.Uint32(data[1:5])
	data = data[5:]

	values := make([]Value, 0, nbValues)
	for i := uint32(0); i < nbValues; i++ {
		if len(data) < 5 {
			return nil, errTruncatedValues
		}
		kind := ShapeKind(data[0])
		nbElements := binary.BigEndian.Uint32(data[1:5])
		data = data[5:]
		if uint64(len(data)) < uint64(nbElements)*fr.Bytes {
			return nil, errTruncatedValues
		}
		elements := make([]fr.Element, nbElements)
		for j := uint32(0); j < nbElements; j++ {
			elements[j].SetBytes(data[:fr.Bytes])
			data = data[fr.Bytes:]
		}
		v := Value{Shape: Shape{Kind: kind}, Elements: elements}
		if kind == ShapeArray {
			v.Shape.Len = nbElements
		}
		values = append(values, v)
	}
	if len(data) != 0 {
		return nil, errors.New("trailing bytes in foreign call value encoding")
	}
	return values, nil
}
