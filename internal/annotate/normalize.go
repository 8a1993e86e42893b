package annotate

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
)

// Rules is the injectable normalization configuration (rules.json).
type Rules struct {
	NormalizeMap map[string]string `json:"normalize_map"`
}

// LoadRules reads a rules file. A missing file yields empty rules, not
// an error, so the service can run with defaults.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Rules{NormalizeMap: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var r Rules
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.NormalizeMap == nil {
		r.NormalizeMap = map[string]string{}
	}
	return &r, nil
}

// Normalizer collapses category variants to canonical labels. It is
// idempotent: a canonical label normalizes to itself.
type Normalizer struct {
	exact     map[string]string // lowered variant -> canonical
	fuzzyKeys []string          // lowered variants, longest first
	canonical map[string]string // lowered canonical -> canonical
}

func NewNormalizer(rules *Rules) *Normalizer {
	n := &Normalizer{
		exact:     make(map[string]string),
		canonical: make(map[string]string),
	}
	for variant, canon := range rules.NormalizeMap {
		lower := strings.ToLower(variant)
		n.exact[lower] = canon
		n.fuzzyKeys = append(n.fuzzyKeys, lower)
		n.canonical[strings.ToLower(canon)] = canon
	}
	for _, canon := range []string{"Cab-Chassis", "Dually"} {
		n.canonical[strings.ToLower(canon)] = canon
	}
	// Longest variant wins on substring matches.
	sort.Slice(n.fuzzyKeys, func(i, j int) bool {
		return len(n.fuzzyKeys[i]) > len(n.fuzzyKeys[j])
	})
	return n
}

// Normalize cleans and standardizes one category label.
func (n *Normalizer) Normalize(text string) string {
	txt := strings.TrimSpace(text)
	if txt == "" {
		return ""
	}
	lower := strings.ToLower(txt)

	// Already canonical: return unchanged so normalization is idempotent.
	if canon, ok := n.canonical[lower]; ok {
		return canon
	}

	// Exact variant match.
	if canon, ok := n.exact[lower]; ok {
		return canon
	}

	// Fuzzy match: the longest variant contained in the label wins.
	for _, k := range n.fuzzyKeys {
		if strings.Contains(lower, k) {
			return n.exact[k]
		}
	}

	// Hardcoded cleanups carried over from the rules the map predates.
	if strings.Contains(lower, "cab chassis") || strings.Contains(lower, "chassis cab") {
		return "Cab-Chassis"
	}
	if strings.Contains(lower, "dually") {
		return "Dually"
	}

	return txt
}

// NormalizeSet normalizes, lowercases and dedupes a list of labels,
// dropping empties. Used wherever two category sets get compared.
func (n *Normalizer) NormalizeSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if norm := n.Normalize(v); norm != "" {
			set[strings.ToLower(norm)] = struct{}{}
		}
	}
	return set
}

// SetsEqual compares two normalized sets.
func SetsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
