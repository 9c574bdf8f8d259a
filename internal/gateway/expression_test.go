package gateway

import (
	"reflect"
	"testing"
)

func TestAliasFields(t *testing.T) {
	fragments, names, values := aliasFields(map[string]any{
		"status": "active",
		"count":  2,
	})

	if want := []string{"#f0 = :v0", "#f1 = :v1"}; !reflect.DeepEqual(fragments, want) {
		t.Fatalf("unexpected fragments: %v", fragments)
	}
	// Keys are aliased in sorted order so the expression is deterministic.
	if names["#f0"] != "count" || names["#f1"] != "status" {
		t.Fatalf("unexpected names: %v", names)
	}
	if values[":v0"] != 2 || values[":v1"] != "active" {
		t.Fatalf("unexpected values: %v", values)
	}
}

func TestAliasFieldsNeverEmitsFieldNames(t *testing.T) {
	// A field named like an expression keyword must only ever appear inside
	// the alias maps, never in a fragment.
	fragments, _, _ := aliasFields(map[string]any{"SET": 1, "AND": 2, "status": 3})
	for _, frag := range fragments {
		for _, reserved := range []string{"SET", "AND", "status"} {
			if containsWord(frag, reserved) {
				t.Fatalf("fragment %q leaks field name %q", frag, reserved)
			}
		}
	}
}

func containsWord(s, word string) bool {
	for i := 0; i+len(word) <= len(s); i++ {
		if s[i:i+len(word)] == word {
			return true
		}
	}
	return false
}

func TestCursorRoundTrip(t *testing.T) {
	key := map[string]any{"nationalId": "902531234V"}
	cursor, err := encodeCursor(key)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if cursor == "" {
		t.Fatal("expected non-empty cursor")
	}

	got, err := decodeCursor(cursor)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, key) {
		t.Fatalf("round trip mismatch: %v", got)
	}

	if _, err := decodeCursor("%%not-base64%%"); err == nil {
		t.Fatal("expected error for malformed cursor")
	}
}
