package keyword

import "testing"

func TestEditDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		{"identical empty", "", "", 0},
		{"identical word", "wallet", "wallet", 0},
		{"empty a", "", "keys", 4},
		{"empty b", "keys", "", 4},
		{"one substitution", "cat", "bat", 1},
		{"one insertion", "walet", "wallet", 1},
		{"one deletion", "umbrella", "umbrela", 1},
		{"kitten to sitting", "kitten", "sitting", 3},
		{"adjacent transposition", "ab", "ba", 1},
		{"typo transposition", "lpatop", "laptop", 1},
		{"unicode substitution", "café", "cafe", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EditDistance(tt.a, tt.b)
			if got != tt.expected {
				t.Errorf("EditDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
			if rev := EditDistance(tt.b, tt.a); rev != got {
				t.Errorf("EditDistance not symmetric: %d vs %d", got, rev)
			}
		})
	}
}

func TestEquivalent(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"bag", "bag", true},
		{"bag", "bat", false}, // too short for fuzzy
		{"wallet", "walet", true},
		{"laptop", "lpatop", true},
		{"wallet", "pallets", false},
		{"black", "blue", false},
	}
	for _, tt := range tests {
		if got := Equivalent(tt.a, tt.b); got != tt.want {
			t.Errorf("Equivalent(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOverlap(t *testing.T) {
	a := Keywords{"black": {}, "backpack": {}}
	b := Keywords{"black": {}, "bag": {}, "library": {}}
	matched, union := Overlap(a, b)
	if len(matched) != 1 || matched[0] != "black" {
		t.Errorf("matched = %v, want [black]", matched)
	}
	if union != 4 {
		t.Errorf("union = %d, want 4", union)
	}

	fuzzy := Keywords{"walet": {}, "brown": {}}
	target := Keywords{"wallet": {}, "brown": {}, "leather": {}}
	matched, union = Overlap(fuzzy, target)
	if len(matched) != 2 {
		t.Errorf("fuzzy matched = %v, want 2 terms", matched)
	}
	if union != 3 {
		t.Errorf("fuzzy union = %d, want 3", union)
	}

	matched, union = Overlap(Keywords{}, target)
	if len(matched) != 0 || union != 3 {
		t.Errorf("empty overlap = %v, %d", matched, union)
	}
}
