package schema

import "testing"

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	layout := SchemaLayout{ClassName: "Position", TotalSize: 8, Alignment: 4, Properties: []PropertyLayout{
		{Key: "x", Offset: 0, Size: 4, Alignment: 4},
		{Key: "y", Offset: 4, Size: 4, Alignment: 4},
	}}
	if err := r.Register(layout); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := r.Lookup("Position")
	if !ok {
		t.Fatalf("Lookup(Position) not found")
	}
	if got.TotalSize != 8 || len(got.Properties) != 2 {
		t.Fatalf("Lookup(Position) = %+v, want matching layout", got)
	}
	if _, ok := r.Lookup("Missing"); ok {
		t.Fatalf("Lookup(Missing) found something")
	}
}

func TestRegistryDuplicateRegistrationReplaces(t *testing.T) {
	r := NewRegistry()
	first := SchemaLayout{ClassName: "Velocity", TotalSize: 8, Alignment: 4}
	second := SchemaLayout{ClassName: "Velocity", TotalSize: 16, Alignment: 8}

	if err := r.Register(first); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(second)
	if _, ok := err.(DuplicateRegistrationError); !ok {
		t.Fatalf("second Register error = %v, want DuplicateRegistrationError", err)
	}
	got, _ := r.Lookup("Velocity")
	if got.TotalSize != 16 {
		t.Fatalf("Lookup(Velocity).TotalSize = %d, want 16 (second registration should replace)", got.TotalSize)
	}
}

func TestSchemaLayoutValidate(t *testing.T) {
	cases := []struct {
		name    string
		layout  SchemaLayout
		wantErr bool
	}{
		{
			name:   "valid",
			layout: SchemaLayout{ClassName: "ok", TotalSize: 8, Alignment: 4, Properties: []PropertyLayout{{Key: "a", Offset: 0, Alignment: 4}}},
		},
		{
			name:    "alignment not power of two",
			layout:  SchemaLayout{ClassName: "bad", TotalSize: 9, Alignment: 3},
			wantErr: true,
		},
		{
			name:    "total size not multiple of alignment",
			layout:  SchemaLayout{ClassName: "bad", TotalSize: 9, Alignment: 4},
			wantErr: true,
		},
		{
			name:    "misaligned property offset",
			layout:  SchemaLayout{ClassName: "bad", TotalSize: 8, Alignment: 4, Properties: []PropertyLayout{{Key: "a", Offset: 2, Alignment: 4}}},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.layout.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("Validate() = nil, want error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestSchemaLayoutValidateBitField(t *testing.T) {
	width := uint8(4)
	offsetOK := uint8(0)
	offsetBad := uint8(6)
	base := SchemaLayout{ClassName: "flags", TotalSize: 4, Alignment: 4}

	ok := base
	ok.Properties = []PropertyLayout{{Key: "f", Offset: 0, Size: 1, Alignment: 0, BitOffset: &offsetOK, BitWidth: &width}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() bit field within bounds = %v, want nil", err)
	}

	bad := base
	bad.Properties = []PropertyLayout{{Key: "f", Offset: 0, Size: 1, Alignment: 0, BitOffset: &offsetBad, BitWidth: &width}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate() bit field spanning past container = nil, want error")
	}

	missingOffset := base
	missingOffset.Properties = []PropertyLayout{{Key: "f", Offset: 0, Size: 1, BitWidth: &width}}
	if err := missingOffset.Validate(); err == nil {
		t.Fatalf("Validate() bit width without bit offset = nil, want error")
	}
}
