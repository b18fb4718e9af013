// Package craft holds the domain types shared by the explorer, the replay
// runner and the ledger: on-screen items, snapshots of them, and the
// discoveries persisted across runs.
//
// Item ids are transient correlation tokens valid inside one page lifetime.
// Everything that is persisted or deduplicated keys off names, never ids.
package craft

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Item is a value copy of one on-screen item card.
type Item struct {
	ID   string
	Name string
	Icon string
	// Text is the raw card text the name and icon were parsed from.
	Text string
}

// Element returns the persisted form of the item (no id).
func (it Item) Element() Element {
	return Element{Name: it.Name, Emoji: it.Icon}
}

// Snapshot is the ordered set of items captured at one instant.
// Callers must not modify a snapshot after capture.
type Snapshot []Item

// IDs returns the set of non-empty ids in the snapshot.
func (s Snapshot) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s))
	for _, it := range s {
		if it.ID != "" {
			ids[it.ID] = struct{}{}
		}
	}
	return ids
}

// NewItems returns the items of post whose id is absent from pre, in post
// order. Items without an id cannot be correlated and are ignored.
func NewItems(pre, post Snapshot) []Item {
	known := pre.IDs()
	var added []Item
	for _, it := range post {
		if it.ID == "" {
			continue
		}
		if _, ok := known[it.ID]; ok {
			continue
		}
		added = append(added, it)
	}
	return added
}

// ParseItemText splits item card text into its icon and name.
//
// The text is trimmed, then its first grapheme cluster is taken as the icon
// when it is a symbol (emoji, pictograph). The remainder, trimmed, is the
// name. Text starting with a letter or digit has no icon and is returned
// whole as the name.
func ParseItemText(text string) (icon, name string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}

	cluster, rest, _, _ := uniseg.FirstGraphemeClusterInString(text, -1)
	r, _ := utf8.DecodeRuneInString(cluster)
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return "", collapseSpace(text)
	}
	return cluster, collapseSpace(rest)
}

// collapseSpace trims s and folds internal whitespace runs (newlines from
// nested card markup) into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
