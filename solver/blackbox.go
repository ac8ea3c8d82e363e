package solver

import (
	"fmt"
	"math/big"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"golang.org/x/crypto/blake2s"
)

// BlackBoxEvaluator evaluates the cryptographic/arithmetic primitives a
// circuit cannot express as generic gates. It is injected at engine
// construction so alternative backends swap in without touching the driver.
type BlackBoxEvaluator interface {
	// RangeCheck fails if v does not fit in nbBits bits.
	RangeCheck(v fr.Element, nbBits uint32) error

	// And returns the bitwise AND of a and b over nbBits bits.
	And(a, b fr.Element, nbBits uint32) (fr.Element, error)

	// Xor returns the bitwise XOR of a and b over nbBits bits.
	Xor(a, b fr.Element, nbBits uint32) (fr.Element, error)

	// MiMCHash hashes the inputs with the field's MiMC permutation.
	MiMCHash(inputs []fr.Element) (fr.Element, error)

	// Blake2s hashes data; each output byte lands in one witness index.
	Blake2s(data []byte) ([32]byte, error)
}

// DefaultEvaluator implements BlackBoxEvaluator with gnark-crypto MiMC and
// x/crypto blake2s.
type DefaultEvaluator struct{}

func (DefaultEvaluator) RangeCheck(v fr.Element, nbBits uint32) error {
	var b big.Int
	v.BigInt(&b)
	if uint32(b.BitLen()) > nbBits {
		return fmt.Errorf("value %s does not fit in %d bits", b.String(), nbBits)
	}
	return nil
}

func (DefaultEvaluator) And(a, b fr.Element, nbBits uint32) (fr.Element, error) {
	return bitwise(a, b, nbBits, new(big.Int).And)
}

func (DefaultEvaluator) Xor(a, b fr.Element, nbBits uint32) (fr.Element, error) {
	return bitwise(a, b, nbBits, new(big.Int).Xor)
}

func (DefaultEvaluator) MiMCHash(inputs []fr.Element) (fr.Element, error) {
	h := mimc.NewMiMC()
	for i := range inputs {
		b := inputs[i].Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return fr.Element{}, err
		}
	}
	var res fr.Element
	res.SetBytes(h.Sum(nil))
	return res, nil
}

func (DefaultEvaluator) Blake2s(data []byte) ([32]byte, error) {
	return blake2s.Sum256(data), nil
}

func bitwise(a, b fr.Element, nbBits uint32, op func(x, y *big.Int) *big.Int) (fr.Element, error) {
	var x, y big.Int
	a.BigInt(&x)
	b.BigInt(&y)
	if uint32(x.BitLen()) > nbBits || uint32(y.BitLen()) > nbBits {
		return fr.Element{}, fmt.Errorf("bitwise operand exceeds %d bits", nbBits)
	}
	var res fr.Element
	res.SetBigInt(op(&x, &y))
	return res, nil
}
