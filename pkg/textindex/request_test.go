package textindex

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDocuments_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		docs Documents
		want string
	}{
		{"empty", Documents{}, `{"document":[]}`},
		{"maps", NewDocuments(map[string]string{"title": "a"}), `{"document":[{"title":"a"}]}`},
		{"raw", NewDocuments(json.RawMessage(`{"reference":"r1"}`)), `{"document":[{"reference":"r1"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.docs)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEncodeParams_OrderedAndFlattened(t *testing.T) {
	fields, err := encodeParams(Params{
		"zeta":     "last",
		"alpha":    []any{"a1", 2},
		"count":    3,
		"metadata": map[string]any{"k": "v"},
		"ignored":  nil,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][2]string{
		{"alpha", "a1"},
		{"alpha", "2"},
		{"count", "3"},
		{"metadata", `{"k":"v"}`},
		{"zeta", "last"},
	}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d: %v", len(want), len(fields), fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d: expected %v, got %v", i, want[i], fields[i])
		}
	}
}

func TestEncodeParams_RejectsReservedNames(t *testing.T) {
	for name := range reservedParts {
		_, err := encodeParams(Params{name: "x"})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}
	if _, err := encodeParams(Params{"": "x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty name: expected ErrInvalidRequest, got %v", err)
	}
}

func TestFormatParam_Numbers(t *testing.T) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(`{"max":1000000,"id":12345678,"ratio":0.25}`), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"decoded integer", decoded["max"], "1000000"},
		{"decoded id", decoded["id"], "12345678"},
		{"decoded fraction", decoded["ratio"], "0.25"},
		{"large float", float64(1e21), "1000000000000000000000"},
		{"float32", float32(1.5), "1.5"},
		{"int64", int64(9007199254740993), "9007199254740993"},
		{"int32", int32(-7), "-7"},
		{"uint64", uint64(42), "42"},
		{"json number", json.Number("12345678901234567890"), "12345678901234567890"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatParam(tt.in)
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("expected [%s], got %v", tt.want, got)
			}
		})
	}
}
