package explore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/infcraft/craft"
)

// ReplayOptions configures a Replayer.
type ReplayOptions struct {
	Page        Page
	ClickDelay  time.Duration
	SettleDelay time.Duration

	// SkipPresent skips a discovery whose result is already on screen.
	SkipPresent bool

	Logger *slog.Logger
}

// ReplayStats summarises one replay.
type ReplayStats struct {
	Replayed int
	Present  int // result already on screen, nothing clicked
	Skipped  int // an input could not be matched or clicked
}

// Replayer re-issues the clicks of a ledger in order so that items created
// by earlier discoveries exist again after a page reload.
type Replayer struct {
	opts   ReplayOptions
	logger *slog.Logger
}

// NewReplayer creates a Replayer.
func NewReplayer(opts ReplayOptions) *Replayer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Replayer{opts: opts, logger: opts.Logger}
}

// Replay walks ledger in order. Entries whose inputs are not on screen are
// logged and skipped. The ledger itself is never modified. Only snapshot
// failures and ctx cancellation stop the replay.
func (r *Replayer) Replay(ctx context.Context, ledger craft.Ledger) (ReplayStats, error) {
	var stats ReplayStats
	for i, d := range ledger {
		snap, err := r.opts.Page.CaptureItems(ctx)
		if err != nil {
			return stats, fmt.Errorf("explore: replay entry %d: capture items: %w", i, err)
		}

		id := d.Identity()
		if r.opts.SkipPresent && hasName(snap, id.Result) {
			stats.Present++
			continue
		}

		a, okA := r.find(ctx, snap, id.A, "")
		b, okB := r.find(ctx, snap, id.B, a.ID)
		if okA && id.B == id.A && (!okB || b.Name != id.B) {
			// Self-pair without a second exact copy on screen: click A twice.
			b, okB = a, true
		}
		if !okA || !okB {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Skipped++
			r.logger.Warn("explore: replay target not visible, skipping",
				"index", i, "a", id.A, "b", id.B, "result", id.Result,
				"found_a", okA, "found_b", okB)
			continue
		}

		if err := r.clickPair(ctx, a.ID, b.ID); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Skipped++
			r.logger.Warn("explore: replay click failed, skipping",
				"index", i, "a", id.A, "b", id.B, "error", err)
			continue
		}
		stats.Replayed++
		r.logger.Debug("explore: replayed", "index", i, "a", id.A, "b", id.B, "result", id.Result)
	}

	r.logger.Info("explore: replay finished", "entries", len(ledger),
		"replayed", stats.Replayed, "present", stats.Present, "skipped", stats.Skipped)
	return stats, nil
}

// find locates a clickable item for name, preferring an exact name match over
// an item whose text merely contains name. exclude is an id not to
// return.
func (r *Replayer) find(ctx context.Context, snap craft.Snapshot, name, exclude string) (craft.Item, bool) {
	if name == "" {
		return craft.Item{}, false
	}
	var exact, partial []craft.Item
	for _, it := range snap {
		if it.ID == "" || it.ID == exclude {
			continue
		}
		switch {
		case it.Name == name:
			exact = append(exact, it)
		case strings.Contains(it.Text, name):
			partial = append(partial, it)
		}
	}
	for _, it := range append(exact, partial...) {
		ok, err := r.opts.Page.IsClickable(ctx, it.ID)
		if err != nil {
			if ctx.Err() != nil {
				return craft.Item{}, false
			}
			continue
		}
		if ok {
			return it, true
		}
	}
	return craft.Item{}, false
}

func (r *Replayer) clickPair(ctx context.Context, a, b string) error {
	if err := sleepCtx(ctx, r.opts.ClickDelay); err != nil {
		return err
	}
	if err := r.opts.Page.Click(ctx, a); err != nil {
		return err
	}
	if err := sleepCtx(ctx, r.opts.ClickDelay); err != nil {
		return err
	}
	if err := r.opts.Page.Click(ctx, b); err != nil {
		return err
	}
	return sleepCtx(ctx, r.opts.SettleDelay)
}

func hasName(snap craft.Snapshot, name string) bool {
	for _, it := range snap {
		if it.Name == name {
			return true
		}
	}
	return false
}
