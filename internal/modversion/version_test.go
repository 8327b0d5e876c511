package modversion

import "testing"

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.10", "1.2.9", 1},
		{"1.2.9", "1.2.10", -1},
		{"1.0.0", "1.0.0", 0},
		{"1.0", "1.0.0", 0},
		{"0.0.0", "1.0.0", -1},
		{"1.2.0-rc1", "1.2.0", 0},
		{"1.2.x", "1.2.0", 0},
		{"2", "1.9.9", 1},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); got != c.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestInRange(t *testing.T) {
	if !InRange("1.5.0", "1.0.0", "2.0.0") {
		t.Error("expected 1.5.0 in range (1.0.0, 2.0.0]")
	}
	if InRange("1.0.0", "1.0.0", "2.0.0") {
		t.Error("range is exclusive of from")
	}
	if !InRange("2.0.0", "1.0.0", "2.0.0") {
		t.Error("range is inclusive of to")
	}
}

func TestInVerifySet(t *testing.T) {
	if !InVerifySet("0.0.0", "5.0.0") {
		t.Error("expected 0.0.0 in verify set for any target")
	}
	if InVerifySet("5.0.1", "5.0.0") {
		t.Error("did not expect entry newer than target in verify set")
	}
}

func TestRangeSubsetOfVerifySet(t *testing.T) {
	// applyRange(E, a, b) results must all satisfy verifySet(E, b).
	for _, since := range []string{"0.0.0", "1.0.0", "1.5.0", "2.0.0", "3.0.0"} {
		if InRange(since, "1.0.0", "2.0.0") && !InVerifySet(since, "2.0.0") {
			t.Errorf("since=%s: in apply range but not in verify set", since)
		}
	}
}

func TestRangesDisjoint(t *testing.T) {
	for _, since := range []string{"0.5.0", "1.0.0", "1.5.0", "2.0.0", "2.5.0", "3.0.0"} {
		inAB := InRange(since, "1.0.0", "2.0.0")
		inBC := InRange(since, "2.0.0", "3.0.0")
		if inAB && inBC {
			t.Errorf("since=%s: in both (1.0.0,2.0.0] and (2.0.0,3.0.0]", since)
		}
	}
}
