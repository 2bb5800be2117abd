package bytecode

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := &Container{
		Strings: []string{"hello", "world"},
		Code:    []byte{byte(PUSH), 0, 0, 0, 5, byte(HALT)},
	}
	data := c.Encode()
	decoded, err := Decode(data)
	be.Err(t, err, nil)
	be.Equal(t, decoded.Strings, c.Strings)
	be.Equal(t, decoded.Code, c.Code)
}

func TestEncodeDecodeEmptyContainer(t *testing.T) {
	c := &Container{}
	decoded, err := Decode(c.Encode())
	be.Err(t, err, nil)
	be.Equal(t, len(decoded.Strings), 0)
	be.Equal(t, len(decoded.Code), 0)
}

func TestDecodeTruncatedInput(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	be.Equal(t, err != nil, true)
}

func TestInt32RoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 2147483647, -2147483648, 42}
	for _, v := range values {
		buf := EmitInt32(nil, v)
		got := ReadInt32(buf, 0)
		be.Equal(t, got, v)
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	values := []float32{0, 1.5, -1.5, 3.14159, -2.71828}
	for _, v := range values {
		buf := EmitFloat32(nil, v)
		got := ReadFloat32(buf, 0)
		be.Equal(t, got, v)
	}
}

func TestStringsAreNotZeroTerminated(t *testing.T) {
	c := &Container{Strings: []string{"a\x00b"}}
	decoded, err := Decode(c.Encode())
	be.Err(t, err, nil)
	be.Equal(t, decoded.Strings[0], "a\x00b")
}
