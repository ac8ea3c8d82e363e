package circuit

import (
	"math/big"
	"strconv"
	"strings"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/acvm/witness"
)

// Term is coeff * w.
type Term struct {
	Coeff fr.Element    `cbor:"1,keyasint"`
	W     witness.Index `cbor:"2,keyasint"`
}

// MulTerm is coeff * wL * wR.
type MulTerm struct {
	Coeff fr.Element    `cbor:"1,keyasint"`
	WL    witness.Index `cbor:"2,keyasint"`
	WR    witness.Index `cbor:"3,keyasint"`
}

// Expression is a degree-2 combination of witness values:
//
//	Σ mulTerm.Coeff * wL * wR + Σ term.Coeff * w + Constant
//
// An AssertZero opcode constrains its expression to evaluate to zero.
type Expression struct {
	MulTerms []MulTerm  `cbor:"1,keyasint,omitempty"`
	LinTerms []Term     `cbor:"2,keyasint,omitempty"`
	Constant fr.Element `cbor:"3,keyasint"`
}

// NewConstant returns the expression holding only the given constant.
func NewConstant(c int64) *Expression {
	var e Expression
	e.Constant.SetInt64(c)
	return &e
}

// NewLinear returns the expression coeff * w.
func NewLinear(coeff int64, w witness.Index) *Expression {
	var e Expression
	e.AddLinear(coeff, w)
	return &e
}

// AddLinear appends the term coeff * w and returns the expression.
func (e *Expression) AddLinear(coeff int64, w witness.Index) *Expression {
	var c fr.Element
	c.SetInt64(coeff)
	e.LinTerms = append(e.LinTerms, Term{Coeff: c, W: w})
	return e
}

// AddMul appends the term coeff * wL * wR and returns the expression.
func (e *Expression) AddMul(coeff int64, wL, wR witness.Index) *Expression {
	var c fr.Element
	c.SetInt64(coeff)
	e.MulTerms = append(e.MulTerms, MulTerm{Coeff: c, WL: wL, WR: wR})
	return e
}

// AddConstant adds c to the expression's constant and returns the expression.
func (e *Expression) AddConstant(c int64) *Expression {
	var v fr.Element
	v.SetInt64(c)
	e.Constant.Add(&e.Constant, &v)
	return e
}

// IsConstant reports whether the expression carries no witness terms.
func (e *Expression) IsConstant() bool {
	return len(e.MulTerms) == 0 && len(e.LinTerms) == 0
}

func (e *Expression) String() string {
	var sbb strings.Builder
	first := true
	writeCoeff := func(c *fr.Element) {
		if !first {
			sbb.WriteString(" + ")
		}
		first = false
		var b big.Int
		c.BigInt(&b)
		sbb.WriteString(b.String())
	}
	for i := range e.MulTerms {
		t := &e.MulTerms[i]
		writeCoeff(&t.Coeff)
		sbb.WriteString("*w")
		sbb.WriteString(witnessString(t.WL))
		sbb.WriteString("*w")
		sbb.WriteString(witnessString(t.WR))
	}
	for i := range e.LinTerms {
		t := &e.LinTerms[i]
		writeCoeff(&t.Coeff)
		sbb.WriteString("*w")
		sbb.WriteString(witnessString(t.W))
	}
	if !e.Constant.IsZero() || first {
		writeCoeff(&e.Constant)
	}
	return sbb.String()
}

func witnessString(w witness.Index) string {
	return strconv.FormatUint(uint64(w), 10)
}
