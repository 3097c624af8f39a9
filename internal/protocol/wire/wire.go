package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrShortVarint  = errors.New("wire: short varint")
	ErrVarintTooBig = errors.New("wire: varint overflows 64 bits")
	ErrShortValue   = errors.New("wire: short field value")
	ErrInvalidTag   = errors.New("wire: invalid field tag")
)

// Type is the low three bits of a field tag.
type Type uint8

// Wire types. Only Varint, Bytes and Fixed32 are produced; Fixed64 is
// understood on decode so unknown producers can be skipped.
const (
	TypeVarint     Type = 0
	TypeFixed64    Type = 1
	TypeBytes      Type = 2
	TypeStartGroup Type = 3
	TypeEndGroup   Type = 4
	TypeFixed32    Type = 5
)

// MaxVarintLen is the longest encoding of a 64-bit varint.
const MaxVarintLen = 10

// Field is one decoded tag/value pair. Exactly one value member is
// meaningful, selected by Type.
type Field struct {
	Number  uint32
	Type    Type
	Varint  uint64
	Fixed32 uint32
	Fixed64 uint64
	Bytes   []byte
}

// Float32 reinterprets a fixed32 value as IEEE-754 single precision.
func (f Field) Float32() float32 {
	return math.Float32frombits(f.Fixed32)
}

func AppendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// ConsumeVarint parses a little-endian base-128 varint and returns the value
// and the number of bytes read.
func ConsumeVarint(b []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < len(b); i++ {
		if i == MaxVarintLen {
			return 0, 0, ErrVarintTooBig
		}
		c := b[i]
		if i == MaxVarintLen-1 && c > 1 {
			return 0, 0, ErrVarintTooBig
		}
		v |= uint64(c&0x7f) << (7 * uint(i))
		if c < 0x80 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrShortVarint
}

func AppendTag(b []byte, num uint32, typ Type) []byte {
	return AppendVarint(b, uint64(num)<<3|uint64(typ))
}

func AppendFixed32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func AppendFloat32(b []byte, v float32) []byte {
	return AppendFixed32(b, math.Float32bits(v))
}

func AppendBytes(b []byte, v []byte) []byte {
	b = AppendVarint(b, uint64(len(v)))
	return append(b, v...)
}

// ConsumeField parses one field at the start of b. Value bytes alias b.
func ConsumeField(b []byte) (Field, int, error) {
	tag, n, err := ConsumeVarint(b)
	if err != nil {
		return Field{}, 0, err
	}
	num := tag >> 3
	if num == 0 || num > math.MaxInt32 {
		return Field{}, 0, fmt.Errorf("%w: field number %d", ErrInvalidTag, num)
	}
	f := Field{Number: uint32(num), Type: Type(tag & 7)}
	rest := b[n:]

	switch f.Type {
	case TypeVarint:
		v, m, err := ConsumeVarint(rest)
		if err != nil {
			return Field{}, 0, err
		}
		f.Varint = v
		return f, n + m, nil
	case TypeFixed32:
		if len(rest) < 4 {
			return Field{}, 0, ErrShortValue
		}
		f.Fixed32 = binary.LittleEndian.Uint32(rest)
		return f, n + 4, nil
	case TypeFixed64:
		if len(rest) < 8 {
			return Field{}, 0, ErrShortValue
		}
		f.Fixed64 = binary.LittleEndian.Uint64(rest)
		return f, n + 8, nil
	case TypeBytes:
		l, m, err := ConsumeVarint(rest)
		if err != nil {
			return Field{}, 0, err
		}
		if uint64(len(rest)-m) < l {
			return Field{}, 0, ErrShortValue
		}
		f.Bytes = rest[m : m+int(l)]
		return f, n + m + int(l), nil
	default:
		return Field{}, 0, fmt.Errorf("%w: field %d has wire type %d", ErrInvalidTag, num, f.Type)
	}
}

// DecodeFields splits payload into fields in wire order.
func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0, 8)
	for i := 0; i < len(payload); {
		f, n, err := ConsumeField(payload[i:])
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		i += n
	}
	return fields, nil
}
