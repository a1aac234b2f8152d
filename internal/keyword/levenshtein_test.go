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
		{"identical word", "préavis", "préavis", 0},
		{"empty a", "", "congé", 5},
		{"empty b", "congé", "", 5},
		{"missing accent", "préavis", "preavis", 1},
		{"one insertion", "conge", "congee", 1},
		{"one deletion", "licenciement", "licenciment", 1},
		{"transposition", "salaire", "saliare", 1},
		{"adjacent swap ab-ba", "ab", "ba", 1},
		{"kitten to sitting", "kitten", "sitting", 3},
		{"unrelated", "nuit", "grève", 5},
		{"case sensitive", "Loi", "loi", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := editDistance(tt.a, tt.b); got != tt.expected {
				t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
			if rev := editDistance(tt.b, tt.a); rev != tt.expected {
				t.Errorf("editDistance(%q, %q) = %d, not symmetric", tt.b, tt.a, rev)
			}
		})
	}
}
