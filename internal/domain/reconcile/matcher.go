package reconcile

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/normalizer"
)

// Action is the outcome of reconciling one extracted entity.
type Action string

const (
	ActionMap    Action = "map"    // reuse an existing catalog entity
	ActionCreate Action = "create" // materialize a new catalog entity on commit
	ActionIgnore Action = "ignore" // user opted out; nothing is imported
)

// ActionFromString parses a client-supplied action name.
func ActionFromString(s string) (Action, bool) {
	switch Action(s) {
	case ActionMap, ActionCreate, ActionIgnore:
		return Action(s), true
	}
	return "", false
}

// Acceptance thresholds are exclusive lower bounds: a best confidence of
// exactly the threshold still yields a create. Tags are shorter and more
// collision-prone than categories, hence the stricter bar.
const (
	CategoryThreshold = 0.70
	TagThreshold      = 0.80
)

// CatalogEntry is one existing category or tag, as fetched from the catalog
// snapshot at the start of the import run.
type CatalogEntry struct {
	ID   uuid.UUID
	Name string
	Type normalizer.TransactionType // categories only; empty for tags
}

// Decision is the reconciliation outcome for one distinct extracted entity.
// Decisions are computed once per run and not persisted until the user
// confirms the import.
type Decision struct {
	Name       string // raw name as it appeared in the file
	Key        string // normalized comparison key
	Action     Action
	SystemID   *uuid.UUID // set when Action == ActionMap
	Confidence float64    // [0,1]
	Type       normalizer.TransactionType // inferred polarity, categories only
	Count      int                        // occurrences across parsed rows
}

// MatchCategories scores every extracted category against the catalog and
// emits one decision each, using the category acceptance threshold.
func MatchCategories(categories []ExtractedCategory, catalog []CatalogEntry) []Decision {
	decisions := make([]Decision, 0, len(categories))
	keys := catalogKeys(catalog)
	for _, cat := range categories {
		d := decide(cat.Key, catalog, keys, CategoryThreshold)
		d.Name = cat.Name
		d.Type = cat.Type
		d.Count = cat.Count
		decisions = append(decisions, d)
	}
	return decisions
}

// MatchTags is MatchCategories with the tag threshold and no polarity.
func MatchTags(tags []ExtractedTag, catalog []CatalogEntry) []Decision {
	decisions := make([]Decision, 0, len(tags))
	keys := catalogKeys(catalog)
	for _, tag := range tags {
		d := decide(tag.Key, catalog, keys, TagThreshold)
		d.Name = tag.Name
		d.Count = tag.Count
		decisions = append(decisions, d)
	}
	return decisions
}

// decide picks the catalog entry with the highest confidence above the
// threshold. Ties keep the first entry encountered at the maximum, relying on
// the catalog's stable iteration order.
func decide(key string, catalog []CatalogEntry, keys []string, threshold float64) Decision {
	best := 0.0
	var bestID *uuid.UUID

	if key != "" {
		for i := range catalog {
			c := Confidence(key, keys[i])
			if c > best {
				best = c
				id := catalog[i].ID
				bestID = &id
			}
		}
	}

	if best > threshold {
		return Decision{Key: key, Action: ActionMap, SystemID: bestID, Confidence: best}
	}
	return Decision{Key: key, Action: ActionCreate, Confidence: best}
}

// Confidence scores the similarity of two normalized keys in [0,1]. Exact
// match scores 1.0, substring containment either direction 0.9, anything else
// one minus the Levenshtein distance over the longer length.
func Confidence(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.9
	}

	distance := levenshtein(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// Suggest returns up to limit catalog names ranked by subsequence similarity
// to the given name. This feeds the manual-override UI only; it never changes
// a decision.
func Suggest(name string, catalog []CatalogEntry, limit int) []string {
	names := make([]string, len(catalog))
	for i, entry := range catalog {
		names[i] = entry.Name
	}

	ranks := fuzzy.RankFindNormalizedFold(name, names)
	if len(ranks) == 0 {
		return nil
	}
	sort.Sort(ranks)

	suggestions := make([]string, 0, len(ranks))
	for _, r := range ranks {
		suggestions = append(suggestions, r.Target)
		if limit > 0 && len(suggestions) >= limit {
			break
		}
	}
	return suggestions
}

func catalogKeys(catalog []CatalogEntry) []string {
	keys := make([]string, len(catalog))
	for i, entry := range catalog {
		keys[i] = normalizer.NormalizeKey(entry.Name)
	}
	return keys
}

// levenshtein computes the classic single-cost edit distance using two rolling
// rows instead of the full matrix.
func levenshtein(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = minOf(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

func minOf(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
