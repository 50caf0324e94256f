package report

import (
	"strings"

	"ledgerdash/internal/core"
)

// CategoryGroup is one category with the subcategories seen under it.
type CategoryGroup struct {
	Name          string
	Subcategories []string
}

// KindCategories lists the categories used by one kind.
type KindCategories struct {
	Kind       core.Kind
	Categories []CategoryGroup
}

// Categories builds the kind, category and subcategory hierarchy used by
// entries. Kinds follow the default report order; categories and
// subcategories keep first-seen order. Entries with an unrecognised kind or
// a blank category are left out, as are blank subcategories.
func Categories(entries []core.LedgerEntry) []KindCategories {
	type group struct {
		cats  []CategoryGroup
		pos   map[string]int
		subs  []map[string]bool
	}
	groups := make(map[core.Kind]*group)
	for _, e := range entries {
		if !e.Kind.IsValid() {
			continue
		}
		cat := strings.TrimSpace(e.Category)
		if cat == "" {
			continue
		}
		g, ok := groups[e.Kind]
		if !ok {
			g = &group{pos: make(map[string]int)}
			groups[e.Kind] = g
		}
		i, seen := g.pos[cat]
		if !seen {
			i = len(g.cats)
			g.pos[cat] = i
			g.cats = append(g.cats, CategoryGroup{Name: cat, Subcategories: []string{}})
			g.subs = append(g.subs, make(map[string]bool))
		}
		sub := strings.TrimSpace(e.Subcategory)
		if sub == "" || g.subs[i][sub] {
			continue
		}
		g.subs[i][sub] = true
		g.cats[i].Subcategories = append(g.cats[i].Subcategories, sub)
	}

	out := make([]KindCategories, 0, len(groups))
	for _, k := range core.Kinds() {
		if g, ok := groups[k]; ok {
			out = append(out, KindCategories{Kind: k, Categories: g.cats})
		}
	}
	return out
}
