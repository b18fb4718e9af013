package explore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/infcraft/craft"
)

// Explorer runs exploration passes against a Page.
type Explorer struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Explorer. Options are defaulted then validated.
func New(opts Options) (*Explorer, error) {
	opts.defaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Explorer{opts: opts, logger: opts.Logger}, nil
}

// Run repeats passes until the termination policy is met, the page has no
// eligible pair left, or ctx is done. Pending discoveries are always flushed
// to the store before Run returns.
func (e *Explorer) Run(ctx context.Context) (st *State, err error) {
	st = NewState()
	start := time.Now()
	defer func() {
		if ferr := e.flush(st); ferr != nil {
			err = errors.Join(err, ferr)
		}
		e.logger.Info("explore: run finished",
			"passes", st.Passes, "attempts", st.Attempts, "skipped", st.Skipped,
			"discoveries", st.Discoveries, "saved", st.Saved,
			"reloads", st.Reloads, "elapsed", time.Since(start))
	}()

	for {
		before := st.Attempts
		found, err := e.RunPass(ctx, st)
		if err != nil {
			return st, err
		}

		switch {
		case e.ceilingReached(st):
			e.logger.Info("explore: attempt ceiling reached", "max_attempts", e.opts.MaxAttempts)
			return st, nil
		case !found && e.opts.Termination == UntilFixedPoint:
			e.logger.Info("explore: fixed point reached", "pass", st.Passes)
			return st, nil
		case st.Attempts == before:
			e.logger.Info("explore: no eligible pair left", "pass", st.Passes)
			return st, nil
		}

		if e.opts.AfterPass != nil {
			reloaded, err := e.opts.AfterPass(ctx, st.Passes)
			if err != nil {
				return st, fmt.Errorf("explore: after pass %d: %w", st.Passes, err)
			}
			if reloaded {
				st.forgetIDs()
				e.logger.Info("explore: page reloaded, attempted set cleared", "pass", st.Passes)
			}
		}

		if err := sleepCtx(ctx, e.opts.PassInterval); err != nil {
			return st, err
		}
	}
}

// RunPass performs one exploration pass over a fresh snapshot and reports
// whether any discovery was made. Per-pair page failures are skipped; only
// snapshot failure, store failure and ctx cancellation end the pass early.
func (e *Explorer) RunPass(ctx context.Context, st *State) (bool, error) {
	items, err := e.opts.Page.CaptureItems(ctx)
	if err != nil {
		return false, fmt.Errorf("explore: capture items: %w", err)
	}
	st.Passes++
	e.logger.Debug("explore: pass started", "pass", st.Passes, "items", len(items))

	var found bool
	switch e.opts.Selection {
	case SelectRandom:
		found, err = e.randomPass(ctx, st, items)
	default:
		found, err = e.exhaustivePass(ctx, st, items, 0)
	}
	if err != nil {
		return found, err
	}

	if e.opts.Persistence == PersistBatch {
		if err := e.flush(st); err != nil {
			return found, err
		}
	}
	return found, nil
}

// exhaustivePass tries every ordered pair. limit > 0 caps the clicks issued.
func (e *Explorer) exhaustivePass(ctx context.Context, st *State, items craft.Snapshot, limit int) (bool, error) {
	found := false
	before := st.Attempts
	for i := range items {
		for j := range items {
			if i == j {
				continue
			}
			if e.ceilingReached(st) || (limit > 0 && st.Attempts-before >= limit) {
				return found, nil
			}
			ok, err := e.tryPair(ctx, st, items[i], items[j])
			if err != nil {
				return found, err
			}
			found = found || ok
		}
	}
	return found, nil
}

// randomPass draws random distinct pairs until SampleSize clicks were
// issued. If no draw lands on an eligible pair, it falls back to an ordered
// scan so a pass only issues zero clicks when nothing is left to try.
func (e *Explorer) randomPass(ctx context.Context, st *State, items craft.Snapshot) (bool, error) {
	n := len(items)
	if n < 2 {
		return false, nil
	}

	found := false
	before := st.Attempts
	maxDraws := e.opts.SampleSize * 20
	for draw := 0; draw < maxDraws && st.Attempts-before < e.opts.SampleSize; draw++ {
		if e.ceilingReached(st) {
			return found, nil
		}
		i := e.opts.Rand.IntN(n)
		j := e.opts.Rand.IntN(n - 1)
		if j >= i {
			j++
		}
		ok, err := e.tryPair(ctx, st, items[i], items[j])
		if err != nil {
			return found, err
		}
		found = found || ok
	}

	if st.Attempts == before && !e.ceilingReached(st) {
		e.logger.Debug("explore: random draws exhausted, scanning in order", "pass", st.Passes)
		return e.exhaustivePass(ctx, st, items, e.opts.SampleSize)
	}
	return found, nil
}

// tryPair attempts one combination. It returns true when a discovery was
// made. Errors are returned only when the run must stop.
func (e *Explorer) tryPair(ctx context.Context, st *State, a, b craft.Item) (bool, error) {
	key := craft.NewKey(a.ID, b.ID)
	if !key.Valid() || st.Attempted(key) {
		return false, nil
	}

	ok, err := e.bothClickable(ctx, a.ID, b.ID)
	if err != nil || !ok {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		st.Skipped++
		e.logger.Debug("explore: pair skipped", "a", a.Name, "b", b.Name, "error", err)
		e.record(ctx, Attempt{A: a, B: b, Outcome: OutcomeSkipped})
		return false, nil
	}

	pre, err := e.opts.Page.CaptureItems(ctx)
	if err != nil {
		return false, e.pairFailed(ctx, a, b, "pre-snapshot", err)
	}
	a, b = refresh(pre, a), refresh(pre, b)

	st.markAttempted(key)
	if err := e.clickPair(ctx, a.ID, b.ID); err != nil {
		return false, e.pairFailed(ctx, a, b, "click", err)
	}

	post, err := e.opts.Page.CaptureItems(ctx)
	if err != nil {
		return false, e.pairFailed(ctx, a, b, "post-snapshot", err)
	}

	result, ok := firstNamed(craft.NewItems(pre, post))
	if !ok {
		e.logger.Debug("explore: no new item", "a", a.Name, "b", b.Name)
		e.record(ctx, Attempt{A: a, B: b, Outcome: OutcomeNone})
		return false, nil
	}

	d := craft.NewDiscovery(a, b, result)
	st.pending = append(st.pending, d)
	st.Discoveries++
	e.logger.Info("explore: discovery",
		"a", d.CombinationA.Name, "b", d.CombinationB.Name,
		"result", d.Result.Name, "icon", d.Result.Emoji)
	e.record(ctx, Attempt{A: a, B: b, Result: &result, Outcome: OutcomeDiscovered})

	if e.opts.Persistence == PersistIncremental {
		if err := e.flush(st); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (e *Explorer) bothClickable(ctx context.Context, a, b string) (bool, error) {
	ok, err := e.opts.Page.IsClickable(ctx, a)
	if err != nil || !ok {
		return false, err
	}
	return e.opts.Page.IsClickable(ctx, b)
}

func (e *Explorer) clickPair(ctx context.Context, a, b string) error {
	if err := sleepCtx(ctx, e.opts.ClickDelay); err != nil {
		return err
	}
	if err := e.opts.Page.Click(ctx, a); err != nil {
		return err
	}
	if err := sleepCtx(ctx, e.opts.ClickDelay); err != nil {
		return err
	}
	if err := e.opts.Page.Click(ctx, b); err != nil {
		return err
	}
	return sleepCtx(ctx, e.opts.SettleDelay)
}

// pairFailed logs a per-pair failure and converts it to nil unless ctx is
// done.
func (e *Explorer) pairFailed(ctx context.Context, a, b craft.Item, step string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	e.logger.Debug("explore: pair aborted", "step", step, "a", a.Name, "b", b.Name, "error", err)
	return nil
}

func (e *Explorer) flush(st *State) error {
	if len(st.pending) == 0 {
		return nil
	}
	ledger, added, err := e.opts.Store.Merge(st.pending)
	if err != nil {
		return fmt.Errorf("explore: save %d discoveries: %w", len(st.pending), err)
	}
	e.logger.Info("explore: discoveries saved",
		"pending", len(st.pending), "new", added, "ledger", len(ledger))
	st.pending = nil
	st.Saved += added
	st.Ledger = ledger
	return nil
}

func (e *Explorer) record(ctx context.Context, a Attempt) {
	if e.opts.Recorder == nil {
		return
	}
	a.At = time.Now()
	e.opts.Recorder.RecordAttempt(ctx, a)
}

func (e *Explorer) ceilingReached(st *State) bool {
	return e.opts.MaxAttempts > 0 && st.Attempts >= e.opts.MaxAttempts
}

// firstNamed returns the first item with a non-empty name. Placeholder
// elements rendered without text are not results.
func firstNamed(items []craft.Item) (craft.Item, bool) {
	for _, it := range items {
		if it.Name != "" {
			return it, true
		}
	}
	return craft.Item{}, false
}

// refresh returns the pre-click version of it when present in snap.
func refresh(snap craft.Snapshot, it craft.Item) craft.Item {
	for _, s := range snap {
		if s.ID == it.ID {
			return s
		}
	}
	return it
}
