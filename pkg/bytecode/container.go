package bytecode

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Container is the in-memory form of the on-disk binary: a deduplicated
// string table plus an opcode stream. All multi-byte scalars are
// little-endian; strings are written with an explicit length, never
// zero-terminated.
type Container struct {
	Strings []string
	Code    []byte
}

// Encode serializes c to its on-disk binary form.
func (c *Container) Encode() []byte {
	var buf bytes.Buffer

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(c.Strings)))
	buf.Write(u32[:])

	for _, s := range c.Strings {
		binary.LittleEndian.PutUint32(u32[:], uint32(len(s)))
		buf.Write(u32[:])
		buf.WriteString(s)
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(c.Code)))
	buf.Write(u32[:])
	buf.Write(c.Code)

	return buf.Bytes()
}

// Decode parses the on-disk binary form produced by Encode.
func Decode(data []byte) (*Container, error) {
	r := bytes.NewReader(data)

	stringCount, err := readU32(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading string_count")
	}

	strs := make([]string, 0, stringCount)
	for i := uint32(0); i < stringCount; i++ {
		length, err := readU32(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading length of string %d", i)
		}
		b := make([]byte, length)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, errors.Wrapf(err, "reading bytes of string %d", i)
		}
		strs = append(strs, string(b))
	}

	codeSize, err := readU32(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading code_size")
	}
	code := make([]byte, codeSize)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, errors.Wrap(err, "reading code segment")
	}

	return &Container{Strings: strs, Code: code}, nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// EmitInt32 appends v to buf as four little-endian bytes.
func EmitInt32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

// EmitFloat32 appends the IEEE-754 bit pattern of v to buf as four
// little-endian bytes.
func EmitFloat32(buf []byte, v float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return append(buf, b[:]...)
}

// ReadInt32 reads four little-endian bytes at code[ip:ip+4].
func ReadInt32(code []byte, ip int) int32 {
	return int32(binary.LittleEndian.Uint32(code[ip : ip+4]))
}

// ReadFloat32 reads four little-endian bytes at code[ip:ip+4] as an IEEE-754 float.
func ReadFloat32(code []byte, ip int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(code[ip : ip+4]))
}
