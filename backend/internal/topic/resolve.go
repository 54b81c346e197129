package topic

import (
	"sort"
	"strings"
)

// Catalog is a read view over known topics
type Catalog interface {
	// Lookup returns the topic stored under id
	Lookup(id string) (*Topic, bool)
	// IDs returns every known identifier in ascending order
	IDs() []string
}

// Resolve decides whether a candidate refers to an already known topic.
//
// An exact identifier match wins. Otherwise the first identifier, in ascending
// order, is chosen where the identifiers contain one another and the
// candidate's human-readable form and the existing display name also contain
// one another. The human-readable form is the lower-cased title, or the
// identifier with separators turned into spaces when no title is given.
//
// This is a lexical heuristic: "react" will absorb "react_router", and
// "promises" will never meet "async_await".
func Resolve(candidateID, candidateTitle string, catalog Catalog) (string, bool) {
	if candidateID == "" || catalog == nil {
		return "", false
	}
	if _, ok := catalog.Lookup(candidateID); ok {
		return candidateID, true
	}

	human := humanForm(candidateTitle)
	if human == "" {
		human = humanForm(strings.ReplaceAll(candidateID, string(Separator), " "))
	}

	for _, id := range catalog.IDs() {
		if !overlaps(candidateID, id) {
			continue
		}
		existing, ok := catalog.Lookup(id)
		if !ok {
			continue
		}
		display := humanForm(existing.Title)
		if display == "" {
			display = humanForm(strings.ReplaceAll(id, string(Separator), " "))
		}
		if overlaps(human, display) {
			return id, true
		}
	}
	return "", false
}

func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// MapCatalog adapts a plain map to Catalog
type MapCatalog map[string]*Topic

func (m MapCatalog) Lookup(id string) (*Topic, bool) {
	t, ok := m[id]
	return t, ok
}

func (m MapCatalog) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Excluding hides one identifier from catalog
func Excluding(catalog Catalog, id string) Catalog {
	return excluding{Catalog: catalog, skip: id}
}

type excluding struct {
	Catalog
	skip string
}

func (c excluding) Lookup(id string) (*Topic, bool) {
	if id == c.skip {
		return nil, false
	}
	return c.Catalog.Lookup(id)
}

func (c excluding) IDs() []string {
	all := c.Catalog.IDs()
	ids := make([]string, 0, len(all))
	for _, id := range all {
		if id != c.skip {
			ids = append(ids, id)
		}
	}
	return ids
}
