// Package witness implements the witness store: a single-assignment mapping
// from circuit variable indices to field elements.
//
// The store is backed by an index-addressed arena. Compiled circuits declare
// their variable count upfront, so the arena is allocated once; a bitset
// tracks which indices hold a value. Once an index is assigned it is never
// overwritten; absence means "not yet known".
//
// # Binary protocol
//
//	[uint32(nbAssigned) | (uint32(index) | fr.Element)* ]
//
// where each element is encoded as a big-endian byte array of
// len(bytes(modulus)) bytes. Entries are ordered by increasing index.
package witness

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/bits-and-blooms/bitset"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Index identifies one variable of a circuit.
type Index uint32

var (
	// ErrAlreadyAssigned is returned when setting an index that already holds a value.
	ErrAlreadyAssigned = errors.New("witness index already assigned")
)

// Map is a possibly-partial witness assignment.
//
// The zero value is not usable; use New.
type Map struct {
	values []fr.Element
	filled *bitset.BitSet
}

// New returns an empty witness store with capacity for nbVariables indices.
func New(nbVariables uint32) *Map {
	return &Map{
		values: make([]fr.Element, nbVariables),
		filled: bitset.New(uint(nbVariables)),
	}
}

// Set assigns value to index i. It returns ErrAlreadyAssigned if i already
// holds a value; the stored value is left untouched in that case.
func (w *Map) Set(i Index, value fr.Element) error {
	if w.filled.Test(uint(i)) {
		return fmt.Errorf("%w: index %d", ErrAlreadyAssigned, i)
	}
	if int(i) >= len(w.values) {
		values := make([]fr.Element, i+1)
		copy(values, w.values)
		w.values = values
	}
	w.values[i] = value
	w.filled.Set(uint(i))
	return nil
}

// Get returns the value at index i and whether it has been assigned.
func (w *Map) Get(i Index) (fr.Element, bool) {
	if int(i) >= len(w.values) || !w.filled.Test(uint(i)) {
		return fr.Element{}, false
	}
	return w.values[i], true
}

// Has reports whether index i holds a value.
func (w *Map) Has(i Index) bool {
	return int(i) < len(w.values) && w.filled.Test(uint(i))
}

// Len returns the number of assigned indices.
func (w *Map) Len() int {
	return int(w.filled.Count())
}

// Indices returns the assigned indices in increasing order.
func (w *Map) Indices() []Index {
	r := make([]Index, 0, w.Len())
	for i, ok := w.filled.NextSet(0); ok; i, ok = w.filled.NextSet(i + 1) {
		r = append(r, Index(i))
	}
	return r
}

// Clone returns a deep copy of the store.
func (w *Map) Clone() *Map {
	c := &Map{
		values: make([]fr.Element, len(w.values)),
		filled: w.filled.Clone(),
	}
	copy(c.values, w.values)
	return c
}

// WriteTo writes the binary form of the store to wr.
func (w *Map) WriteTo(wr io.Writer) (int64, error) {
	indices := w.Indices()
	var written int64

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(indices)))
	n, err := wr.Write(header[:])
	written += int64(n)
	if err != nil {
		return written, err
	}

	var buf [4 + fr.Bytes]byte
	for _, i := range indices {
		binary.BigEndian.PutUint32(buf[:4], uint32(i))
		b := w.values[i].Bytes()
		copy(buf[4:], b[:])
		n, err = wr.Write(buf[:])
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ReadFrom reads the binary form of a store from r, overwriting w.
func (w *Map) ReadFrom(r io.Reader) (int64, error) {
	var read int64

	var header [4]byte
	n, err := io.ReadFull(r, header[:])
	read += int64(n)
	if err != nil {
		return read, err
	}
	nbAssigned := binary.BigEndian.Uint32(header[:])

	w.values = w.values[:0]
	w.filled = bitset.New(uint(nbAssigned))

	var buf [4 + fr.Bytes]byte
	for j := uint32(0); j < nbAssigned; j++ {
		n, err = io.ReadFull(r, buf[:])
		read += int64(n)
		if err != nil {
			return read, err
		}
		idx := Index(binary.BigEndian.Uint32(buf[:4]))
		var v fr.Element
		v.SetBytes(buf[4:])
		if err := w.Set(idx, v); err != nil {
			return read, err
		}
	}
	return read, nil
}

// MarshalJSON encodes the store as an object mapping decimal indices to
// decimal field element strings.
func (w *Map) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, w.Len())
	for _, i := range w.Indices() {
		m[strconv.FormatUint(uint64(i), 10)] = w.values[i].String()
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the object form produced by MarshalJSON.
func (w *Map) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	keys := make([]uint64, 0, len(m))
	for k := range m {
		i, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid witness index %q: %w", k, err)
		}
		keys = append(keys, i)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	*w = *New(uint32(len(keys)))
	for _, i := range keys {
		var v fr.Element
		if _, err := v.SetString(m[strconv.FormatUint(i, 10)]); err != nil {
			return fmt.Errorf("invalid witness value at index %d: %w", i, err)
		}
		if err := w.Set(Index(i), v); err != nil {
			return err
		}
	}
	return nil
}
