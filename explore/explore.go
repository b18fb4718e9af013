// Package explore drives the combination search against a page: it pairs
// on-screen items, infers the result of each pairing from a before/after
// snapshot delta, and hands discoveries to a store. It also replays a
// ledger to rebuild the item set after a page reload.
//
// Everything here talks to the page through the narrow Page interface and
// issues actions strictly one at a time: a click can replace the very items
// a concurrent action would reference.
package explore

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/infcraft/craft"
)

// ErrStaleItem is returned by a Page when an item id no longer resolves to
// an element (removed or replaced since the snapshot was taken).
var ErrStaleItem = errors.New("explore: stale item")

// SnapshotReader captures the current set of on-screen items.
type SnapshotReader interface {
	CaptureItems(ctx context.Context) (craft.Snapshot, error)
}

// Oracle decides whether an item is interactable right now. Results go stale
// after every click, so callers query it immediately before acting.
type Oracle interface {
	IsClickable(ctx context.Context, id string) (bool, error)
}

// Clicker issues a click on the item with the given id.
type Clicker interface {
	Click(ctx context.Context, id string) error
}

// Page is the page automation surface the explorer and replayer need.
type Page interface {
	SnapshotReader
	Oracle
	Clicker
}

// Store persists discoveries. Merge returns the saved ledger and how many of
// ds were new.
type Store interface {
	Merge(ds []craft.Discovery) (craft.Ledger, int, error)
}

// Outcome classifies one attempt.
type Outcome string

const (
	OutcomeDiscovered Outcome = "discovered"
	OutcomeNone       Outcome = "none"    // clicked, no new item appeared
	OutcomeSkipped    Outcome = "skipped" // not clickable or stale
)

// Attempt describes one pair attempt for a Recorder.
type Attempt struct {
	A, B    craft.Item
	Result  *craft.Item
	Outcome Outcome
	At      time.Time
}

// Recorder receives every attempt. Implementations must not block the
// explorer on failure; errors are theirs to log.
type Recorder interface {
	RecordAttempt(ctx context.Context, a Attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
