package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"50000", 5000000, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{1234, "12.34"},
		{100, "1.00"},
		{5, "0.05"},
		{-250, "-2.50"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("%d cents: expected %q, got %q", tc.cents, tc.want, got)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 1234})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "1234" {
		t.Fatalf("expected bare cents, got %s", b)
	}

	var m Money
	if err := json.Unmarshal([]byte("5600"), &m); err != nil || m.Cents != 5600 {
		t.Fatalf("expected 5600 cents, got %d (err=%v)", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`"12.34"`), &m); err != nil || m.Cents != 1234 {
		t.Fatalf("expected 1234 cents from decimal string, got %d (err=%v)", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`"oops"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}
