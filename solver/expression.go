package solver

import (
	"errors"
	"fmt"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/acvm/circuit"
	"github.com/consensys/acvm/witness"
)

var (
	// ErrUnsatisfiedConstraint is returned when a fully determined constraint
	// does not evaluate to zero.
	ErrUnsatisfiedConstraint = errors.New("unsatisfied constraint")

	// ErrOpcodeNotSolvable is returned when an opcode's unknowns cannot be
	// determined from the current witness. The front-end orders opcodes so
	// that this indicates a missing input.
	ErrOpcodeNotSolvable = errors.New("opcode not solvable, missing assignment")
)

// solveAssertZero propagates through one arithmetic opcode: if the
// expression has exactly one unknown witness appearing linearly, that
// witness is solved for; if it is fully determined, it is checked to
// evaluate to zero.
func solveAssertZero(w *witness.Map, e *circuit.Expression) error {
	// acc accumulates the known part of the expression; coeffs the linear
	// coefficients of the unknowns.
	acc := e.Constant
	coeffs := make(map[witness.Index]fr.Element)

	addCoeff := func(idx witness.Index, c fr.Element) {
		prev := coeffs[idx]
		prev.Add(&prev, &c)
		coeffs[idx] = prev
	}

	var t fr.Element
	for i := range e.MulTerms {
		mt := &e.MulTerms[i]
		vl, okL := w.Get(mt.WL)
		vr, okR := w.Get(mt.WR)
		switch {
		case okL && okR:
			t.Mul(&vl, &vr)
			t.Mul(&t, &mt.Coeff)
			acc.Add(&acc, &t)
		case okL:
			t.Mul(&mt.Coeff, &vl)
			addCoeff(mt.WR, t)
		case okR:
			t.Mul(&mt.Coeff, &vr)
			addCoeff(mt.WL, t)
		default:
			// two unknowns in a product cannot be solved linearly
			return fmt.Errorf("%w: witnesses %d and %d", ErrOpcodeNotSolvable, mt.WL, mt.WR)
		}
	}

	for i := range e.LinTerms {
		lt := &e.LinTerms[i]
		if v, ok := w.Get(lt.W); ok {
			t.Mul(&lt.Coeff, &v)
			acc.Add(&acc, &t)
		} else {
			addCoeff(lt.W, lt.Coeff)
		}
	}

	// drop unknowns with a zero net coefficient; their value is irrelevant here
	for idx, c := range coeffs {
		if c.IsZero() {
			delete(coeffs, idx)
		}
	}

	switch len(coeffs) {
	case 0:
		if !acc.IsZero() {
			return fmt.Errorf("%w: %s != 0", ErrUnsatisfiedConstraint, e)
		}
		return nil
	case 1:
		for idx, c := range coeffs {
			// idx = -acc / c
			var v fr.Element
			v.Neg(&acc)
			c.Inverse(&c)
			v.Mul(&v, &c)
			return w.Set(idx, v)
		}
		panic("unreachable")
	default:
		return fmt.Errorf("%w: %d unknown witnesses", ErrOpcodeNotSolvable, len(coeffs))
	}
}

// evalExpression evaluates a fully determined expression. It returns
// ErrOpcodeNotSolvable if any referenced witness is unassigned.
func evalExpression(w *witness.Map, e *circuit.Expression) (fr.Element, error) {
	acc := e.Constant
	var t fr.Element
	for i := range e.MulTerms {
		mt := &e.MulTerms[i]
		vl, okL := w.Get(mt.WL)
		vr, okR := w.Get(mt.WR)
		if !okL || !okR {
			return fr.Element{}, fmt.Errorf("%w: in %s", ErrOpcodeNotSolvable, e)
		}
		t.Mul(&vl, &vr)
		t.Mul(&t, &mt.Coeff)
		acc.Add(&acc, &t)
	}
	for i := range e.LinTerms {
		lt := &e.LinTerms[i]
		v, ok := w.Get(lt.W)
		if !ok {
			return fr.Element{}, fmt.Errorf("%w: witness %d in %s", ErrOpcodeNotSolvable, lt.W, e)
		}
		t.Mul(&lt.Coeff, &v)
		acc.Add(&acc, &t)
	}
	return acc, nil
}
