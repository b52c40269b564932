package view

import (
	"testing"

	"github.com/kiln-engine/kiln/mem"
	"github.com/kiln-engine/kiln/schema"
)

func TestFixedArrayGetIndexOf(t *testing.T) {
	buf := make([]byte, 16)
	f, err := NewFixedArray(0, 4, 4, schema.PropertyLayout{Key: "slots"})
	if err != nil {
		t.Fatalf("NewFixedArray: %v", err)
	}
	copy(f.Get(buf, 0), []byte{1, 0, 0, 0})
	copy(f.Get(buf, 1), []byte{2, 0, 0, 0})
	copy(f.Get(buf, 2), []byte{3, 0, 0, 0})
	copy(f.Get(buf, 3), []byte{4, 0, 0, 0})

	if idx := f.IndexOf(buf, []byte{3, 0, 0, 0}); idx != 2 {
		t.Fatalf("IndexOf(3) = %d, want 2", idx)
	}
	if idx := f.IndexOf(buf, []byte{9, 9, 9, 9}); idx != -1 {
		t.Fatalf("IndexOf(missing) = %d, want -1", idx)
	}
}

func TestFixedArrayFreeDelegatesPerElement(t *testing.T) {
	buf := make([]byte, 16)
	f, _ := NewFixedArray(0, 4, 4, schema.PropertyLayout{Key: "slots"})
	var freed int
	err := f.Free(buf, nil, func(elem []byte, pool *mem.Pool) error {
		freed++
		return nil
	})
	if err != nil {
		t.Fatalf("Free: %v", err)
	}
	if freed != 4 {
		t.Fatalf("elemFree called %d times, want 4", freed)
	}
}

func TestFixedArrayCopyFrom(t *testing.T) {
	src := make([]byte, 16)
	dst := make([]byte, 16)
	srcView, _ := NewFixedArray(0, 4, 4, schema.PropertyLayout{Key: "slots"})
	dstView, _ := NewFixedArray(0, 4, 4, schema.PropertyLayout{Key: "slots"})
	for i := uint32(0); i < 4; i++ {
		copy(srcView.Get(src, i), []byte{byte(i), 0, 0, 0})
	}
	if err := dstView.CopyFrom(dst, nil, src, srcView, nil); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	for i := uint32(0); i < 4; i++ {
		if got := dstView.Get(dst, i)[0]; got != byte(i) {
			t.Fatalf("Get(%d)[0] = %d, want %d", i, got, i)
		}
	}
}
