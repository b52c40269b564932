package view

import (
	"testing"

	"github.com/kiln-engine/kiln/schema"
)

func TestEnumSetGetValid(t *testing.T) {
	e, err := NewEnum(0, 8, []uint64{0, 1, 2}, schema.PropertyLayout{Key: "state"})
	if err != nil {
		t.Fatalf("NewEnum: %v", err)
	}
	buf := make([]byte, 1)
	if err := e.Set(buf, 2); err != nil {
		t.Fatalf("Set(2): %v", err)
	}
	if got := e.Get(buf); got != 2 {
		t.Fatalf("Get() = %d, want 2", got)
	}
}

func TestEnumSetRejectsUnknownValue(t *testing.T) {
	e, _ := NewEnum(0, 8, []uint64{0, 1, 2}, schema.PropertyLayout{Key: "state"})
	buf := make([]byte, 1)
	err := e.Set(buf, 99)
	if _, ok := err.(InvalidEnumError); !ok {
		t.Fatalf("Set(99) error = %v, want InvalidEnumError", err)
	}
}

func TestEnumWidths(t *testing.T) {
	for _, width := range []uint8{8, 16, 32} {
		// the largest value each base width can hold
		maxVal := uint64(1)<<width - 1
		e, err := NewEnum(0, width, []uint64{maxVal}, schema.PropertyLayout{Key: "w"})
		if err != nil {
			t.Fatalf("NewEnum(width=%d): %v", width, err)
		}
		buf := make([]byte, 4)
		if err := e.Set(buf, maxVal); err != nil {
			t.Fatalf("Set(width=%d): %v", width, err)
		}
		if got := e.Get(buf); got != maxVal {
			t.Fatalf("Get(width=%d) = %d, want %d", width, got, maxVal)
		}
	}
}

func TestEnumRejectsInvalidWidth(t *testing.T) {
	if _, err := NewEnum(0, 24, nil, schema.PropertyLayout{Key: "w"}); err == nil {
		t.Fatalf("NewEnum(width=24) returned nil error, want error")
	}
}
