package schema

import "testing"

func TestParseTypePrimitives(t *testing.T) {
	tests := []string{"u8", "u16", "u32", "u64", "i8", "i16", "i32", "i64", "f32", "f64", "bool", "str", "sparseset"}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			expr, err := ParseType(in)
			if err != nil {
				t.Fatalf("ParseType(%q) failed: %v", in, err)
			}
			if expr.Name != in {
				t.Errorf("got name %q, want %q", expr.Name, in)
			}
		})
	}
}

func TestParseTypeCollections(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
	}{
		{"arr<u32>", KindArray},
		{"u32[]", KindArray},
		{"map<str,u32>", KindMap},
		{"set<u32>", KindSet},
		{"fixed_arr<u32,4>", KindFixedArray},
		{"[u32,4]", KindFixedArray},
		{"[u32,str]", KindTuple},
		{"u32|str", KindUnion},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			expr, err := ParseType(tt.in)
			if err != nil {
				t.Fatalf("ParseType(%q) failed: %v", tt.in, err)
			}
			if expr.Kind != tt.kind {
				t.Errorf("ParseType(%q) kind = %v, want %v", tt.in, expr.Kind, tt.kind)
			}
		})
	}
}

func TestParseTypeRejectsSingleElementBracketArray(t *testing.T) {
	if _, err := ParseType("[u32]"); err == nil {
		t.Fatal("expected error for single-element bracket array")
	}
}

func TestParseTypeRejectsTrailingComma(t *testing.T) {
	if _, err := ParseType("[u32,str,]"); err == nil {
		t.Fatal("expected error for trailing comma")
	}
}

func TestParseTypeNestedGenerics(t *testing.T) {
	expr, err := ParseType("map<str,arr<u32>>")
	if err != nil {
		t.Fatalf("ParseType failed: %v", err)
	}
	if expr.Kind != KindMap {
		t.Fatalf("kind = %v, want KindMap", expr.Kind)
	}
	if expr.Value.Kind != KindArray {
		t.Fatalf("value kind = %v, want KindArray", expr.Value.Kind)
	}
}

func TestParseTypeWhitespaceInsignificant(t *testing.T) {
	a, err := ParseType("map<str, u32>")
	if err != nil {
		t.Fatalf("ParseType failed: %v", err)
	}
	b, err := ParseType("map<str,u32>")
	if err != nil {
		t.Fatalf("ParseType failed: %v", err)
	}
	if a.Kind != b.Kind || a.Key.Name != b.Key.Name || a.Value.Name != b.Value.Name {
		t.Errorf("whitespace should not change parse result")
	}
}

func TestParseErrorReportsPosition(t *testing.T) {
	_, err := ParseType("map<str,>")
	if err == nil {
		t.Fatal("expected parse error")
	}
	var pe ParseError
	if perr, ok := err.(ParseError); ok {
		pe = perr
	} else {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if pe.Position == 0 {
		t.Errorf("expected non-zero position in %+v", pe)
	}
}
