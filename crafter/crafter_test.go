package crafter

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/infcraft/craft"
	"github.com/hazyhaar/infcraft/crafter/internal/browser"
	"github.com/hazyhaar/infcraft/explore"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"", ModeExplore, false},
		{"explore", ModeExplore, false},
		{"replay", ModeReplay, false},
		{"crawl", "", true},
	}
	for _, c := range cases {
		got, err := ParseMode(c.in)
		if (err != nil) != c.err {
			t.Errorf("ParseMode(%q) error = %v, want error %v", c.in, err, c.err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseMode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExplorerOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "results.json")
	cfg.Ledger.Mode = "incremental"
	cfg.Explore.Selection = "random"
	cfg.Explore.Termination = "ceiling"
	cfg.Explore.MaxAttempts = 200
	cfg.Explore.Seed = 42
	cfg.Explore.SettleDelay = 300 * time.Millisecond

	r := New(cfg, ModeExplore, nil)
	r.page = browser.NewItemPage(nil, cfg.Target.ItemSelector, 0)
	opts := r.explorerOptions()

	if opts.Selection != explore.SelectRandom {
		t.Errorf("Selection = %q", opts.Selection)
	}
	if opts.Termination != explore.UntilCeiling {
		t.Errorf("Termination = %q", opts.Termination)
	}
	if opts.Persistence != explore.PersistIncremental {
		t.Errorf("Persistence = %q", opts.Persistence)
	}
	if opts.MaxAttempts != 200 || opts.SettleDelay != 300*time.Millisecond {
		t.Errorf("MaxAttempts = %d, SettleDelay = %v", opts.MaxAttempts, opts.SettleDelay)
	}
	if opts.AfterPass == nil {
		t.Error("AfterPass not wired")
	}
	if _, err := explore.New(opts); err != nil {
		t.Fatalf("explore.New: %v", err)
	}

	// Same seed, same draw sequence.
	again := r.explorerOptions()
	for i := 0; i < 5; i++ {
		if a, b := opts.Rand.Uint64(), again.Rand.Uint64(); a != b {
			t.Fatalf("draw %d: %d != %d", i, a, b)
		}
	}
}

func TestAfterPassNotDue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "results.json")
	r := New(cfg, ModeExplore, nil)

	reloaded, err := r.afterPass(context.Background(), 1)
	if err != nil || reloaded {
		t.Fatalf("afterPass = %v, %v; want false, nil", reloaded, err)
	}
}

func TestRunJournalOpenFailureIsStartup(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.Ledger.Path = filepath.Join(dir, "results.json")
	// A directory where the journal file should be.
	cfg.Journal.Path = dir

	err := New(cfg, ModeExplore, nil).Run(context.Background())
	if !errors.Is(err, ErrStartup) {
		t.Fatalf("Run error = %v, want ErrStartup", err)
	}
}

// stubPage adds Steam on the second click and nothing afterwards.
type stubPage struct {
	items  craft.Snapshot
	clicks int
}

func (p *stubPage) CaptureItems(context.Context) (craft.Snapshot, error) {
	return append(craft.Snapshot(nil), p.items...), nil
}

func (p *stubPage) IsClickable(context.Context, string) (bool, error) { return true, nil }

func (p *stubPage) Click(context.Context, string) error {
	p.clicks++
	if p.clicks == 2 {
		p.items = append(p.items, craft.Item{ID: "9", Name: "Steam"})
	}
	return nil
}

type failingStore struct{ err error }

func (s failingStore) Merge([]craft.Discovery) (craft.Ledger, int, error) {
	return nil, 0, s.err
}

func TestExploreResult_CancelWithUnsavedDiscoveries(t *testing.T) {
	diskFull := errors.New("disk full")
	page := &stubPage{items: craft.Snapshot{
		{ID: "1", Name: "Water"}, {ID: "2", Name: "Fire"}, {ID: "3", Name: "Earth"},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex, err := explore.New(explore.Options{
		Page:  page,
		Store: failingStore{err: diskFull},
		Recorder: recorderFunc(func(_ context.Context, a explore.Attempt) {
			if a.Outcome == explore.OutcomeDiscovered {
				cancel()
			}
		}),
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("explore.New: %v", err)
	}

	st, runErr := ex.Run(ctx)
	if !errors.Is(runErr, context.Canceled) {
		t.Fatalf("Run: got %v, want context.Canceled", runErr)
	}

	err = exploreResult(st, runErr)
	if err == nil {
		t.Fatal("exploreResult: got nil, want unsaved discoveries error")
	}
	if !errors.Is(err, diskFull) {
		t.Errorf("exploreResult: got %v, want it to wrap the store error", err)
	}
}

func TestExploreResult_CleanCancel(t *testing.T) {
	if err := exploreResult(explore.NewState(), context.Canceled); err != nil {
		t.Fatalf("exploreResult: got %v, want nil", err)
	}
	if err := exploreResult(explore.NewState(), nil); err != nil {
		t.Fatalf("exploreResult: got %v, want nil", err)
	}
	boom := errors.New("boom")
	if err := exploreResult(explore.NewState(), boom); !errors.Is(err, boom) {
		t.Fatalf("exploreResult: got %v, want boom", err)
	}
}

type recorderFunc func(ctx context.Context, a explore.Attempt)

func (f recorderFunc) RecordAttempt(ctx context.Context, a explore.Attempt) { f(ctx, a) }
