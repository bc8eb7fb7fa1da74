package types

import (
	"encoding/json"
	"testing"
)

// TestPropertiesOrder verifies that keys come back in insertion order after
// a marshal/unmarshal round trip.
func TestPropertiesOrder(t *testing.T) {
	var p Properties
	p.Set("name", "fix the build")
	p.Set("description", "")
	p.Set("status", "OPEN")
	p.Set("zeta", "1")
	p.Set("alpha", "2")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"name":"fix the build","description":"","status":"OPEN","zeta":"1","alpha":"2"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back Properties
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	wantKeys := []string{"name", "description", "status", "zeta", "alpha"}
	gotKeys := back.Keys()
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("Keys() = %v, want %v", gotKeys, wantKeys)
	}
	for i, k := range wantKeys {
		if gotKeys[i] != k {
			t.Errorf("Keys()[%d] = %q, want %q", i, gotKeys[i], k)
		}
	}
}

// TestPropertiesSetKeepsPosition verifies that updating an existing key does
// not move it to the end.
func TestPropertiesSetKeepsPosition(t *testing.T) {
	var p Properties
	p.Set("a", "1")
	p.Set("b", "2")
	p.Set("a", "3")

	if got := p.Keys(); got[0] != "a" || got[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
	if v, _ := p.Get("a"); v != "3" {
		t.Errorf("Get(a) = %q, want 3", v)
	}
}

func TestPropertiesDelete(t *testing.T) {
	var p Properties
	p.Set("a", "1")
	p.Set("b", "2")
	p.Set("c", "3")

	if !p.Delete("b") {
		t.Fatal("Delete(b) = false, want true")
	}
	if p.Delete("b") {
		t.Error("second Delete(b) = true, want false")
	}
	if got := p.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("Keys() = %v, want [a c]", got)
	}
}

// TestPropertiesRejectsNonString verifies that non-string values are refused
// rather than silently coerced.
func TestPropertiesRejectsNonString(t *testing.T) {
	cases := []string{
		`{"created": 1719243021}`,
		`{"nested": {"x": "y"}}`,
		`{"list": ["a"]}`,
		`[1,2]`,
	}
	for _, in := range cases {
		var p Properties
		if err := json.Unmarshal([]byte(in), &p); err == nil {
			t.Errorf("Unmarshal(%s) = nil error, want error", in)
		}
	}
}

func TestPropertiesNullAndEmpty(t *testing.T) {
	var p Properties
	if err := json.Unmarshal([]byte("null"), &p); err != nil {
		t.Fatalf("Unmarshal(null) error = %v", err)
	}
	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}

	data, err := json.Marshal(Properties{})
	if err != nil {
		t.Fatalf("Marshal(empty) error = %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("Marshal(empty) = %s, want {}", data)
	}
}

// TestPropertiesUnknownKeysSurvive verifies lossless round-tripping of keys
// the tool knows nothing about.
func TestPropertiesUnknownKeysSurvive(t *testing.T) {
	in := `{"name":"n","status":"OPEN","x-custom":"kept","priority":"HIGH"}`
	var p Properties
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != in {
		t.Errorf("round trip = %s, want %s", out, in)
	}
}
