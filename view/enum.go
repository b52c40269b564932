package view

import (
	"encoding/binary"

	"github.com/kiln-engine/kiln/schema"
)

// Enum is a view over a value stored as its declared unsigned base
// width (8/16/32 bits); writes are validated against the schema's
// enumerated value set (spec.md §4.2 "Enum").
type Enum struct {
	offset    uint32
	baseWidth uint8
	values    []uint64
	layout    schema.PropertyLayout
}

// NewEnum constructs an Enum view. values holds every value the enum
// may legally take, in schema declaration order.
func NewEnum(offset uint32, baseWidth uint8, values []uint64, layout schema.PropertyLayout) (Enum, error) {
	switch baseWidth {
	case 8, 16, 32:
	default:
		return Enum{}, MisalignedError{Offset: offset, Alignment: 1}
	}
	return Enum{offset: offset, baseWidth: baseWidth, values: values, layout: layout}, nil
}

func (e Enum) Offset() uint32               { return e.offset }
func (e Enum) Layout() schema.PropertyLayout { return e.layout }

// Get returns the stored raw value, widened to uint64.
func (e Enum) Get(buf []byte) uint64 {
	switch e.baseWidth {
	case 8:
		return uint64(buf[e.offset])
	case 16:
		return uint64(binary.LittleEndian.Uint16(buf[e.offset:]))
	default:
		return uint64(binary.LittleEndian.Uint32(buf[e.offset:]))
	}
}

// Set validates v against the schema's declared value set before
// writing, returning InvalidEnumError if v is not a member.
func (e Enum) Set(buf []byte, v uint64) error {
	valid := false
	for _, allowed := range e.values {
		if allowed == v {
			valid = true
			break
		}
	}
	if !valid {
		return InvalidEnumError{Value: v}
	}
	switch e.baseWidth {
	case 8:
		buf[e.offset] = byte(v)
	case 16:
		binary.LittleEndian.PutUint16(buf[e.offset:], uint16(v))
	default:
		binary.LittleEndian.PutUint32(buf[e.offset:], uint32(v))
	}
	return nil
}
