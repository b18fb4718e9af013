package explore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hazyhaar/infcraft/craft"
)

// fakePage emulates the game: clicking two items in a row combines them and
// appends the result to the item list when the recipe is known and the
// result is not already on screen.
type fakePage struct {
	items   []craft.Item
	recipes map[[2]string]craft.Item
	hidden  map[string]bool
	stale   map[string]bool

	// placeholder renders an empty item before each new result.
	placeholder bool

	selected string
	clicks   []string
	nextID   int
}

func newFakePage(names ...string) *fakePage {
	p := &fakePage{
		recipes: make(map[[2]string]craft.Item),
		hidden:  make(map[string]bool),
		stale:   make(map[string]bool),
	}
	for _, n := range names {
		p.add(n, "")
	}
	return p
}

func (p *fakePage) add(name, icon string) craft.Item {
	p.nextID++
	it := craft.Item{ID: fmt.Sprintf("item-%d", p.nextID), Name: name, Icon: icon}
	p.items = append(p.items, it)
	return it
}

func (p *fakePage) recipe(a, b, result, icon string) {
	p.recipes[pairOf(a, b)] = craft.Item{Name: result, Icon: icon}
}

func (p *fakePage) id(name string) string {
	for _, it := range p.items {
		if it.Name == name {
			return it.ID
		}
	}
	return ""
}

func (p *fakePage) has(name string) bool { return p.id(name) != "" }

func (p *fakePage) lookup(id string) (craft.Item, bool) {
	if p.stale[id] {
		return craft.Item{}, false
	}
	for _, it := range p.items {
		if it.ID == id {
			return it, true
		}
	}
	return craft.Item{}, false
}

func (p *fakePage) CaptureItems(context.Context) (craft.Snapshot, error) {
	snap := make(craft.Snapshot, 0, len(p.items))
	for _, it := range p.items {
		it.Text = it.Icon + " " + it.Name
		snap = append(snap, it)
	}
	return snap, nil
}

func (p *fakePage) IsClickable(_ context.Context, id string) (bool, error) {
	if _, ok := p.lookup(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrStaleItem, id)
	}
	return !p.hidden[id], nil
}

func (p *fakePage) Click(_ context.Context, id string) error {
	it, ok := p.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStaleItem, id)
	}
	p.clicks = append(p.clicks, id)
	if p.selected == "" {
		p.selected = id
		return nil
	}
	first, _ := p.lookup(p.selected)
	p.selected = ""
	res, ok := p.recipes[pairOf(first.Name, it.Name)]
	if ok && !p.has(res.Name) {
		if p.placeholder {
			p.add("", "")
		}
		p.add(res.Name, res.Icon)
	}
	return nil
}

// clickedPairs groups clicks two by two into unordered keys.
func (p *fakePage) clickedPairs() []craft.CombinationKey {
	var keys []craft.CombinationKey
	for i := 0; i+1 < len(p.clicks); i += 2 {
		keys = append(keys, craft.NewKey(p.clicks[i], p.clicks[i+1]))
	}
	return keys
}

func pairOf(a, b string) [2]string {
	s := []string{a, b}
	sort.Strings(s)
	return [2]string{s[0], s[1]}
}

type memStore struct {
	ledger craft.Ledger
	merges [][]craft.Discovery
	err    error
}

func (m *memStore) Merge(ds []craft.Discovery) (craft.Ledger, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	m.merges = append(m.merges, append([]craft.Discovery(nil), ds...))
	added := 0
	for _, d := range ds {
		if !m.ledger.Contains(d) {
			m.ledger = append(m.ledger, d)
			added++
		}
	}
	return m.ledger, added, nil
}

type recorderFunc func(ctx context.Context, a Attempt)

func (f recorderFunc) RecordAttempt(ctx context.Context, a Attempt) { f(ctx, a) }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
