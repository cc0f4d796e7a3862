package crypto

import (
	"testing"
)

func TestCanonicalizeJSONSortsKeysAndStripsWhitespace(t *testing.T) {
	input := []byte(`{
		"z": 1,
		"a": {"c": true, "b": null},
		"m": [3, 2, 1]
	}`)
	out, err := CanonicalizeJSON(input)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":{"b":null,"c":true},"m":[3,2,1],"z":1}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestCanonicalizeJSONIsIdempotent(t *testing.T) {
	input := []byte(`{"b":2,"a":[1.50, "x"]}`)
	once, err := CanonicalizeJSON(input)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	twice, err := CanonicalizeJSON(once)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if string(once) != string(twice) {
		t.Fatalf("not idempotent: %s vs %s", once, twice)
	}
}

func TestCanonicalizeJSONNumbers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`1`, `1`},
		{`1.0`, `1`},
		{`-0`, `0`},
		{`1.5`, `1.5`},
		{`10.0`, `10`},
		{`1e2`, `100`},
		{`0.0001`, `0.0001`},
		{`1e-7`, `1e-7`},
		{`1e21`, `1e21`},
		{`1.5e21`, `1.5e21`},
		{`123456789012345678901`, `123456789012345680000`},
	}
	for _, tc := range cases {
		out, err := CanonicalizeJSON([]byte(tc.in))
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if string(out) != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.in, out, tc.want)
		}
	}
}

func TestCanonicalizeJSONStringEscapes(t *testing.T) {
	out, err := CanonicalizeJSON([]byte(`{"k":"a\nb\t\"c\""}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"k":"a\nb\t\"c\""}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestCanonicalizeJSONRejectsTrailingData(t *testing.T) {
	if _, err := CanonicalizeJSON([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Fatal("expected trailing data to be rejected")
	}
}

func TestCanonicalizeJSONRejectsInvalidInput(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":}`, `nope`} {
		if _, err := CanonicalizeJSON([]byte(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestCanonicalizeStruct(t *testing.T) {
	type payload struct {
		B string `json:"b"`
		A int    `json:"a"`
	}
	out, err := Canonicalize(payload{B: "x", A: 7})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":7,"b":"x"}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestCanonicalizeEqualObjectsProduceEqualBytes(t *testing.T) {
	a, err := Canonicalize(map[string]any{"x": 1, "y": []any{"a", "b"}})
	if err != nil {
		t.Fatalf("a: %v", err)
	}
	b, err := CanonicalizeJSON([]byte(`{"y":["a","b"],"x":1.0}`))
	if err != nil {
		t.Fatalf("b: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("representations differ: %s vs %s", a, b)
	}
}
