package core

import "testing"

func TestNaturalSortReflexive(t *testing.T) {
	for _, s := range []string{"a", "a10", "a2b3", ""} {
		if !naturalSortLE(s, s) {
			t.Errorf("naturalSortLE(%q, %q) = false, want true", s, s)
		}
	}
}

func TestNaturalSortTransitive(t *testing.T) {
	x, y, z := "a2", "a10", "a20"
	if !(naturalSortLE(x, y) && naturalSortLE(y, z) && naturalSortLE(x, z)) {
		t.Fatalf("naturalSortLE not transitive over %q, %q, %q", x, y, z)
	}
}

func TestNaturalSortNumericOrder(t *testing.T) {
	cases := []struct {
		n, m int
		want bool
	}{
		{2, 10, true},
		{10, 2, false},
		{9, 9, true},
		{1, 100, true},
	}
	for _, c := range cases {
		x := "a" + itoaPad(c.n)
		y := "a" + itoaPad(c.m)
		got := naturalSortLE(x, y)
		if got != c.want {
			t.Errorf("naturalSortLE(%q, %q) = %v, want %v", x, y, got, c.want)
		}
	}
}

func itoaPad(n int) string {
	if n < 0 {
		panic("negative")
	}
	digits := []byte{}
	if n == 0 {
		return "0"
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestNaturalSortLexicalFallback(t *testing.T) {
	if !naturalSortLE("abc", "abd") {
		t.Errorf("expected lexical fallback to order abc before abd")
	}
	if naturalSortLE("abd", "abc") {
		t.Errorf("expected abd to not sort before abc")
	}
}
