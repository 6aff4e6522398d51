package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"12", 12, true},
		{"0", 0, true},
		{"-4", -4, true},
		{"+7", 7, true},
		{" 42 ", 42, true},
		{"abc", 0, false},
		{"12.5", 0, false},
		{"12,5", 0, false},
		{"$12", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
		{"-", 0, false},
		{"99999999999999999999", 0, false}, // overflows int64
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
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
