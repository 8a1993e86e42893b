package annotate

import "testing"

func testRules() *Rules {
	return &Rules{NormalizeMap: map[string]string{
		"box trucks":          "Box Truck",
		"box truck":           "Box Truck",
		"dump trucks":         "Dump Truck",
		"cab and chassis":     "Cab-Chassis",
		"sleeper semi trucks": "Sleeper Truck",
	}}
}

func TestNormalizeExactMatch(t *testing.T) {
	n := NewNormalizer(testRules())

	cases := map[string]string{
		"box trucks":  "Box Truck",
		"Box Trucks":  "Box Truck",
		"DUMP TRUCKS": "Dump Truck",
	}
	for in, want := range cases {
		if got := n.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeFuzzyLongestWins(t *testing.T) {
	n := NewNormalizer(testRules())

	// "sleeper semi trucks" is longer than "box trucks" and both could
	// match by substring in a compound label; the longest variant wins.
	if got := n.Normalize("Used Sleeper Semi Trucks 2021"); got != "Sleeper Truck" {
		t.Errorf("got %q, want Sleeper Truck", got)
	}
}

func TestNormalizeHardcodedCleanups(t *testing.T) {
	n := NewNormalizer(&Rules{NormalizeMap: map[string]string{}})

	if got := n.Normalize("Ford F-550 Cab Chassis"); got != "Cab-Chassis" {
		t.Errorf("cab chassis: got %q", got)
	}
	if got := n.Normalize("Chassis Cab Trucks"); got != "Cab-Chassis" {
		t.Errorf("chassis cab: got %q", got)
	}
	if got := n.Normalize("Ram 3500 Dually"); got != "Dually" {
		t.Errorf("dually: got %q", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(testRules())

	inputs := []string{"box trucks", "Cab Chassis", "ram dually", "Flatbed Truck"}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize(%q): first pass %q, second pass %q", in, once, twice)
		}
	}
}

func TestNormalizeUnknownPassesThrough(t *testing.T) {
	n := NewNormalizer(testRules())

	if got := n.Normalize("  Flatbed Truck  "); got != "Flatbed Truck" {
		t.Errorf("got %q, want trimmed original", got)
	}
	if got := n.Normalize("   "); got != "" {
		t.Errorf("blank input: got %q, want empty", got)
	}
}

func TestNormalizeSetDedupes(t *testing.T) {
	n := NewNormalizer(testRules())

	set := n.NormalizeSet([]string{"Box Trucks", "box truck", "", "Dump Trucks"})
	if len(set) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(set), set)
	}
	if _, ok := set["box truck"]; !ok {
		t.Error("missing box truck")
	}
	if _, ok := set["dump truck"]; !ok {
		t.Error("missing dump truck")
	}
}

func TestSetsEqual(t *testing.T) {
	n := NewNormalizer(testRules())

	a := n.NormalizeSet([]string{"Box Trucks", "Dump Trucks"})
	b := n.NormalizeSet([]string{"dump truck", "box truck"})
	if !SetsEqual(a, b) {
		t.Error("sets with same normalized members should be equal")
	}

	c := n.NormalizeSet([]string{"Box Trucks"})
	if SetsEqual(a, c) {
		t.Error("sets of different size should not be equal")
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	r, err := LoadRules("does-not-exist.json")
	if err != nil {
		t.Fatalf("missing rules file should not error: %v", err)
	}
	if r.NormalizeMap == nil || len(r.NormalizeMap) != 0 {
		t.Errorf("want empty map, got %v", r.NormalizeMap)
	}
}
