package circuit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"

	"github.com/consensys/acvm/witness"
)

// serialization version of the circuit format; bump on breaking change.
const serializationVersion = 1

const headerLen = 4 + 1 + 8 + 8

var magic = [4]byte{'a', 'c', 'i', 'r'}

type header struct {
	metaLen    uint64
	opcodesLen uint64
}

func (h *header) toBytes() []byte {
	buf := make([]byte, 0, headerLen)
	buf = append(buf, magic[:]...)
	buf = append(buf, serializationVersion)
	buf = binary.LittleEndian.AppendUint64(buf, h.metaLen)
	buf = binary.LittleEndian.AppendUint64(buf, h.opcodesLen)
	return buf
}

func (h *header) fromBytes(data []byte) error {
	if !bytes.Equal(data[:4], magic[:]) {
		return errors.New("invalid circuit magic")
	}
	if data[4] != serializationVersion {
		return fmt.Errorf("unsupported circuit serialization version %d", data[4])
	}
	h.metaLen = binary.LittleEndian.Uint64(data[5:13])
	h.opcodesLen = binary.LittleEndian.Uint64(data[13:21])
	return nil
}

// meta is the circuit minus its opcodes; the two serialize as separate blocks.
type meta struct {
	NbVariables  uint32          `cbor:"1,keyasint"`
	PublicInputs []witness.Index `cbor:"2,keyasint,omitempty"`
	ReturnValues []witness.Index `cbor:"3,keyasint,omitempty"`
}

// ToBytes serializes the circuit to a byte slice.
func (c *Circuit) ToBytes() ([]byte, error) {
	var metaBlock, opcodesBlock []byte
	var g errgroup.Group
	g.Go(func() error {
		var err error
		metaBlock, err = encodeBlock(meta{
			NbVariables:  c.NbVariables,
			PublicInputs: c.PublicInputs,
			ReturnValues: c.ReturnValues,
		})
		return err
	})
	g.Go(func() error {
		var err error
		opcodesBlock, err = encodeBlock(c.Opcodes)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	h := header{
		metaLen:    uint64(len(metaBlock)),
		opcodesLen: uint64(len(opcodesBlock)),
	}
	buf := h.toBytes()
	buf = append(buf, metaBlock...)
	buf = append(buf, opcodesBlock...)
	return buf, nil
}

// FromBytes deserializes a circuit from a byte slice and returns the number
// of bytes read.
func (c *Circuit) FromBytes(data []byte) (int, error) {
	if len(data) < headerLen {
		return 0, errors.New("invalid data length")
	}
	var h header
	if err := h.fromBytes(data); err != nil {
		return 0, err
	}
	if uint64(len(data)) < headerLen+h.metaLen+h.opcodesLen {
		return 0, errors.New("invalid data length")
	}

	var m meta
	var g errgroup.Group
	g.Go(func() error {
		return decodeBlock(data[headerLen:headerLen+h.metaLen], &m)
	})
	g.Go(func() error {
		return decodeBlock(data[headerLen+h.metaLen:headerLen+h.metaLen+h.opcodesLen], &c.Opcodes)
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	c.NbVariables = m.NbVariables
	c.PublicInputs = m.PublicInputs
	c.ReturnValues = m.ReturnValues

	return headerLen + int(h.metaLen) + int(h.opcodesLen), nil
}

func encodeBlock(v interface{}) ([]byte, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := enc.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBlock(data []byte, v interface{}) error {
	dm, err := cbor.DecOptions{
		MaxArrayElements: 2147483647,
		MaxMapPairs:      2147483647,
	}.DecMode()
	if err != nil {
		return err
	}
	return dm.NewDecoder(bytes.NewReader(data)).Decode(v)
}
