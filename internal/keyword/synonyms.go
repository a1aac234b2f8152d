package keyword

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SynonymTable maps every known term to the group of terms it belongs to.
// A group is a canonical term followed by its synonyms.
type SynonymTable struct {
	groups [][]string
	lookup map[string]int
	terms  []string // every known term, sorted
}

// NewSynonymTable builds a table from canonical -> synonyms entries.
// Terms are lower-cased; a term listed in two groups belongs to the first one by canonical order.
func NewSynonymTable(entries map[string][]string) *SynonymTable {
	canon := make([]string, 0, len(entries))
	for c := range entries {
		canon = append(canon, c)
	}
	sort.Strings(canon)

	t := &SynonymTable{lookup: make(map[string]int)}
	for _, c := range canon {
		group := []string{strings.ToLower(strings.TrimSpace(c))}
		for _, s := range entries[c] {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" && s != group[0] {
				group = append(group, s)
			}
		}
		idx := len(t.groups)
		t.groups = append(t.groups, group)
		for _, term := range group {
			if _, taken := t.lookup[term]; !taken {
				t.lookup[term] = idx
				t.terms = append(t.terms, term)
			}
		}
	}
	sort.Strings(t.terms)
	return t
}

// LoadSynonymTable reads a YAML file of the form `canonical: [synonym, ...]`.
func LoadSynonymTable(path string) (*SynonymTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms: %w", err)
	}
	var entries map[string][]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse synonyms: %w", err)
	}
	return NewSynonymTable(entries), nil
}

// Group returns the full group for term (canonical first), or nil if term is unknown.
func (t *SynonymTable) Group(term string) []string {
	if t == nil {
		return nil
	}
	idx, ok := t.lookup[term]
	if !ok {
		return nil
	}
	return t.groups[idx]
}

// Nearest returns the group of the known term closest to term within
// maxDist edits, or nil. An exact match always wins; among equally close
// terms the alphabetically first one is used.
func (t *SynonymTable) Nearest(term string, maxDist int) []string {
	if t == nil {
		return nil
	}
	if g := t.Group(term); g != nil || maxDist <= 0 {
		return g
	}
	best, bestDist := "", maxDist+1
	for _, known := range t.terms {
		if d := editDistance(term, known); d < bestDist {
			best, bestDist = known, d
		}
	}
	if best == "" {
		return nil
	}
	return t.groups[t.lookup[best]]
}

// Len returns the number of groups.
func (t *SynonymTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.groups)
}

// DefaultSynonyms is the built-in labor-law vocabulary used when no synonyms file is configured.
func DefaultSynonyms() *SynonymTable {
	return NewSynonymTable(map[string][]string{
		"premium":      {"allowance", "bonus"},
		"prime":        {"indemnité", "allocation", "supplément"},
		"congé":        {"congés", "vacances", "absence"},
		"leave":        {"holiday", "vacation", "absence"},
		"salaire":      {"rémunération", "barème", "traitement"},
		"salary":       {"wage", "pay", "remuneration"},
		"horaire":      {"horaires", "planning", "prestations"},
		"nuit":         {"nocturne", "prestations de nuit"},
		"licenciement": {"préavis", "rupture", "démission"},
		"dismissal":    {"notice", "termination"},
		"maladie":      {"incapacité", "certificat médical"},
		"formation":    {"training", "cours"},
		"grève":        {"préavis de grève", "action syndicale"},
		"délégué":      {"délégation syndicale", "représentant"},
	})
}
