package explore

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/hazyhaar/infcraft/craft"
)

func newTestExplorer(t *testing.T, page Page, store Store, mutate func(*Options)) *Explorer {
	t.Helper()
	opts := Options{
		Page:   page,
		Store:  store,
		Rand:   rand.New(rand.NewPCG(1, 2)),
		Logger: discardLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestRun_WaterFireMakesSteam(t *testing.T) {
	page := newFakePage("Water", "Fire")
	page.recipe("Water", "Fire", "Steam", "💨")
	store := &memStore{}

	e := newTestExplorer(t, page, store, nil)
	st, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := craft.Discovery{
		CombinationA: craft.Element{Name: "Water"},
		CombinationB: craft.Element{Name: "Fire"},
		Result:       craft.Element{Name: "Steam", Emoji: "💨"},
	}
	if len(store.ledger) != 1 || store.ledger[0] != want {
		t.Fatalf("ledger: got %+v, want [%+v]", store.ledger, want)
	}
	if st.Discoveries != 1 || st.Saved != 1 {
		t.Errorf("counters: discoveries=%d saved=%d, want 1 and 1", st.Discoveries, st.Saved)
	}
	// Pass 1 discovers Steam, pass 2 tries the two Steam pairs and finds nothing.
	if st.Passes != 2 {
		t.Errorf("Passes: got %d, want 2", st.Passes)
	}
	if st.Attempts != 3 {
		t.Errorf("Attempts: got %d, want 3", st.Attempts)
	}
}

func TestRun_NeverReclicksAttemptedPair(t *testing.T) {
	page := newFakePage("Water", "Fire", "Earth", "Wind")
	store := &memStore{}

	e := newTestExplorer(t, page, store, nil)
	st, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := make(map[craft.CombinationKey]bool)
	for _, k := range page.clickedPairs() {
		if seen[k] {
			t.Fatalf("pair %s clicked twice", k)
		}
		seen[k] = true
	}
	if st.Attempts != 6 {
		t.Errorf("Attempts: got %d, want 6 (4 items, unordered pairs)", st.Attempts)
	}
	if len(page.clicks) != 12 {
		t.Errorf("clicks: got %d, want 12", len(page.clicks))
	}
}

func TestRun_FixedPointFollowsChains(t *testing.T) {
	page := newFakePage("Water", "Fire", "Earth")
	page.recipe("Water", "Fire", "Steam", "💨")
	page.recipe("Steam", "Earth", "Geyser", "⛲")
	page.recipe("Geyser", "Fire", "Volcano", "🌋")
	store := &memStore{}

	e := newTestExplorer(t, page, store, nil)
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, name := range []string{"Steam", "Geyser", "Volcano"} {
		if !page.has(name) {
			t.Errorf("page: %s never created", name)
		}
	}
	if len(store.ledger) != 3 {
		t.Fatalf("ledger: got %d entries, want 3: %+v", len(store.ledger), store.ledger)
	}
}

func TestRunPass_FoundNothingWhenAllTried(t *testing.T) {
	page := newFakePage("Water", "Fire")
	e := newTestExplorer(t, page, &memStore{}, nil)
	st := NewState()

	found, err := e.RunPass(context.Background(), st)
	if err != nil || found {
		t.Fatalf("pass 1: found=%v err=%v, want false, nil", found, err)
	}
	clicks := len(page.clicks)

	found, err = e.RunPass(context.Background(), st)
	if err != nil || found {
		t.Fatalf("pass 2: found=%v err=%v, want false, nil", found, err)
	}
	if len(page.clicks) != clicks {
		t.Fatalf("pass 2 clicked %d times, want 0", len(page.clicks)-clicks)
	}
}

func TestRunPass_SkipsUnclickable(t *testing.T) {
	page := newFakePage("Water", "Fire", "Earth")
	page.hidden[page.id("Earth")] = true
	e := newTestExplorer(t, page, &memStore{}, nil)
	st := NewState()

	if _, err := e.RunPass(context.Background(), st); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	for _, id := range page.clicks {
		if id == page.id("Earth") {
			t.Fatal("hidden item was clicked")
		}
	}
	if st.Attempts != 1 {
		t.Errorf("Attempts: got %d, want 1", st.Attempts)
	}
	if st.Skipped == 0 {
		t.Error("Skipped: got 0, want > 0")
	}
	if st.Attempted(craft.NewKey(page.id("Water"), page.id("Earth"))) {
		t.Error("unclickable pair recorded as attempted")
	}
}

func TestRunPass_StaleItemDoesNotAbortPass(t *testing.T) {
	page := newFakePage("Water", "Fire", "Earth")
	page.recipe("Fire", "Earth", "Lava", "🌋")
	page.stale[page.id("Water")] = true
	store := &memStore{}
	e := newTestExplorer(t, page, store, nil)

	found, err := e.RunPass(context.Background(), NewState())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if !found {
		t.Fatal("RunPass: want Fire+Earth discovery despite stale Water")
	}
	if len(store.ledger) != 1 || store.ledger[0].Result.Name != "Lava" {
		t.Fatalf("ledger: got %+v, want Lava", store.ledger)
	}
}

func TestRun_BatchPersistenceMergesPerPass(t *testing.T) {
	page := newFakePage("Water", "Fire", "Earth")
	page.recipe("Water", "Fire", "Steam", "")
	page.recipe("Water", "Earth", "Mud", "")
	store := &memStore{}

	e := newTestExplorer(t, page, store, func(o *Options) { o.Persistence = PersistBatch })
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.merges) != 1 || len(store.merges[0]) != 2 {
		t.Fatalf("merges: got %v, want one merge of 2", store.merges)
	}
}

func TestRun_IncrementalPersistenceMergesEachDiscovery(t *testing.T) {
	page := newFakePage("Water", "Fire", "Earth")
	page.recipe("Water", "Fire", "Steam", "")
	page.recipe("Water", "Earth", "Mud", "")
	store := &memStore{}

	e := newTestExplorer(t, page, store, func(o *Options) { o.Persistence = PersistIncremental })
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.merges) != 2 {
		t.Fatalf("merges: got %d, want 2", len(store.merges))
	}
	for i, m := range store.merges {
		if len(m) != 1 {
			t.Errorf("merge %d: got %d discoveries, want 1", i, len(m))
		}
	}
}

func TestRun_RandomStopsAtCeiling(t *testing.T) {
	page := newFakePage("A", "B", "C", "D", "E", "F")
	e := newTestExplorer(t, page, &memStore{}, func(o *Options) {
		o.Selection = SelectRandom
		o.MaxAttempts = 5
		o.SampleSize = 2
	})

	st, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Attempts != 5 {
		t.Fatalf("Attempts: got %d, want 5", st.Attempts)
	}
}

func TestRun_RandomStopsWhenExhausted(t *testing.T) {
	page := newFakePage("A", "B", "C")
	e := newTestExplorer(t, page, &memStore{}, func(o *Options) {
		o.Selection = SelectRandom
		o.MaxAttempts = 100
	})

	st, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Attempts != 3 {
		t.Fatalf("Attempts: got %d, want 3", st.Attempts)
	}
}

func TestRun_ReloadClearsAttempted(t *testing.T) {
	page := newFakePage("Water", "Fire")
	var hooks int
	e := newTestExplorer(t, page, &memStore{}, func(o *Options) {
		o.Termination = UntilCeiling
		o.MaxAttempts = 3
		o.AfterPass = func(context.Context, int) (bool, error) {
			hooks++
			return true, nil
		}
	})

	st, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Attempts != 3 {
		t.Errorf("Attempts: got %d, want 3", st.Attempts)
	}
	if hooks != 2 || st.Reloads != 2 {
		t.Errorf("hooks=%d reloads=%d, want 2 and 2", hooks, st.Reloads)
	}
}

func TestRun_CancelFlushesPending(t *testing.T) {
	page := newFakePage("Water", "Fire", "Earth")
	page.recipe("Water", "Fire", "Steam", "")
	store := &memStore{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newTestExplorer(t, page, store, func(o *Options) {
		o.Recorder = recorderFunc(func(_ context.Context, a Attempt) {
			if a.Outcome == OutcomeDiscovered {
				cancel()
			}
		})
	})

	_, err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got %v, want context.Canceled", err)
	}
	if len(store.ledger) != 1 {
		t.Fatalf("ledger: got %d entries, want 1 flushed on cancel", len(store.ledger))
	}
}

func TestRun_StoreFailureSurfaces(t *testing.T) {
	page := newFakePage("Water", "Fire")
	page.recipe("Water", "Fire", "Steam", "")
	store := &memStore{err: errors.New("disk full")}

	e := newTestExplorer(t, page, store, nil)
	st, err := e.Run(context.Background())
	if err == nil {
		t.Fatal("Run: want error from store")
	}
	if len(st.Pending()) != 1 {
		t.Fatalf("Pending: got %d, want 1 kept after failed merge", len(st.Pending()))
	}
}

func TestRun_CancelWithFailingStoreKeepsPending(t *testing.T) {
	page := newFakePage("Water", "Fire", "Earth")
	page.recipe("Water", "Fire", "Steam", "")
	diskFull := errors.New("disk full")
	store := &memStore{err: diskFull}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newTestExplorer(t, page, store, func(o *Options) {
		o.Recorder = recorderFunc(func(_ context.Context, a Attempt) {
			if a.Outcome == OutcomeDiscovered {
				cancel()
			}
		})
	})

	st, err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got %v, want context.Canceled", err)
	}
	if !errors.Is(err, diskFull) {
		t.Fatalf("Run: got %v, want the flush failure joined", err)
	}
	if len(st.Pending()) != 1 {
		t.Fatalf("Pending: got %d, want 1", len(st.Pending()))
	}
}

func TestRunPass_FirstNamedNewItemIsResult(t *testing.T) {
	page := newFakePage("Water", "Fire")
	page.recipe("Water", "Fire", "Steam", "💨")
	page.placeholder = true
	store := &memStore{}

	e := newTestExplorer(t, page, store, nil)
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.ledger) != 1 || store.ledger[0].Result.Name != "Steam" {
		t.Fatalf("ledger: got %+v, want Water+Fire=Steam", store.ledger)
	}
}

func TestOptions_ZeroDelaysStayZero(t *testing.T) {
	o := Options{ClickDelay: -time.Second, PassInterval: -time.Second}
	o.defaults()
	if o.ClickDelay != 0 || o.SettleDelay != 0 || o.PassInterval != 0 {
		t.Fatalf("delays: got %v/%v/%v, want all zero", o.ClickDelay, o.SettleDelay, o.PassInterval)
	}
	if o.SampleSize != 50 {
		t.Errorf("SampleSize: got %d, want 50", o.SampleSize)
	}
}

func TestRun_RecorderSeesOutcomes(t *testing.T) {
	page := newFakePage("Water", "Fire", "Earth")
	page.recipe("Water", "Fire", "Steam", "")
	page.hidden[page.id("Earth")] = true

	counts := make(map[Outcome]int)
	e := newTestExplorer(t, page, &memStore{}, func(o *Options) {
		o.Recorder = recorderFunc(func(_ context.Context, a Attempt) {
			counts[a.Outcome]++
			if a.At.IsZero() {
				t.Error("Attempt.At not set")
			}
		})
	})
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if counts[OutcomeDiscovered] != 1 {
		t.Errorf("discovered: got %d, want 1", counts[OutcomeDiscovered])
	}
	if counts[OutcomeNone] != 2 {
		t.Errorf("none: got %d, want 2 (Steam with Water and Fire)", counts[OutcomeNone])
	}
	if counts[OutcomeSkipped] == 0 {
		t.Error("skipped: got 0, want > 0 for hidden Earth")
	}
}

func TestOptions_Validate(t *testing.T) {
	page := newFakePage()
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"defaults", Options{}, true},
		{"random needs ceiling", Options{Selection: SelectRandom, Termination: UntilFixedPoint, MaxAttempts: 10}, false},
		{"ceiling needs max", Options{Termination: UntilCeiling}, false},
		{"random with ceiling", Options{Selection: SelectRandom, MaxAttempts: 10}, true},
		{"unknown selection", Options{Selection: "spiral"}, false},
		{"unknown persistence", Options{Persistence: "lazy"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Page = page
			tt.opts.Store = &memStore{}
			tt.opts.Logger = discardLogger()
			_, err := New(tt.opts)
			if (err == nil) != tt.ok {
				t.Fatalf("New: err=%v, want ok=%v", err, tt.ok)
			}
		})
	}
}
