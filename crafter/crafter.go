// Package crafter runs the combination explorer against the live game: it
// starts Chrome, opens the game tab, rebuilds the known items from the
// ledger, then explores until the configured termination is met.
package crafter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/hazyhaar/infcraft/crafter/internal/browser"
	"github.com/hazyhaar/infcraft/crafter/internal/journal"
	"github.com/hazyhaar/infcraft/crafter/internal/ledger"
	"github.com/hazyhaar/infcraft/explore"
)

// ErrStartup marks failures before exploration began: browser launch,
// navigation, journal open. Callers tell them apart with errors.Is.
var ErrStartup = errors.New("crafter: startup failed")

// Mode selects what Run does once the page is up.
type Mode string

const (
	ModeExplore Mode = "explore" // replay the ledger, then explore
	ModeReplay  Mode = "replay"  // replay the ledger, then exit
)

// ParseMode validates a mode name. Empty is ModeExplore.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeExplore:
		return ModeExplore, nil
	case ModeReplay:
		return ModeReplay, nil
	}
	return "", fmt.Errorf("crafter: unknown mode %q (want explore or replay)", s)
}

// Runner is the top-level orchestrator. Create one per run.
type Runner struct {
	cfg    *Config
	mode   Mode
	mgr    *browser.Manager
	store  *ledger.Store
	logger *slog.Logger

	tab  *browser.Tab
	page *browser.ItemPage
}

// New creates a Runner from configuration.
func New(cfg *Config, mode Mode, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Stealth:          browser.ParseStealth(cfg.Browser.Stealth),
		Xvfb:             cfg.Browser.Xvfb,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})

	return &Runner{
		cfg:    cfg,
		mode:   mode,
		mgr:    mgr,
		store:  ledger.Open(cfg.Ledger.Path, ledger.WithLogger(logger)),
		logger: logger,
	}
}

// Run executes the configured mode and closes the browser on return.
func (r *Runner) Run(ctx context.Context) (err error) {
	var jr *journal.Journal
	if r.cfg.Journal.Path != "" {
		jr, err = journal.Open(r.cfg.Journal.Path, journal.WithLogger(r.logger))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStartup, err)
		}
		defer jr.Close()
	}

	if _, err := r.mgr.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	defer r.mgr.Close()

	if err := r.openTab(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	r.page = browser.NewItemPage(r.tab, r.cfg.Target.ItemSelector, 0)

	if r.mode == ModeReplay || r.cfg.ReplayEnabled() {
		if err := r.replay(ctx); err != nil {
			return err
		}
	}
	if r.mode == ModeReplay {
		return nil
	}

	opts := r.explorerOptions()
	if jr != nil {
		runID, err := jr.BeginRun(ctx, journal.RunInfo{
			TargetURL: r.cfg.Target.URL,
			Selection: r.cfg.Explore.Selection,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStartup, err)
		}
		r.logger.Info("crafter: run started", "run_id", runID)
		opts.Recorder = jr
		defer r.finishJournal(jr)
	}

	ex, err := explore.New(opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	st, err := ex.Run(ctx)
	if err := exploreResult(st, err); err != nil {
		return err
	}
	r.logger.Info("crafter: done",
		"discoveries", st.Discoveries, "saved", st.Saved, "ledger", r.store.Path())
	return nil
}

// exploreResult maps the outcome of an exploration to the run error.
// Cancellation is a clean stop only when every discovery reached the ledger.
func exploreResult(st *explore.State, err error) error {
	if st != nil {
		if n := len(st.Pending()); n > 0 {
			if err == nil {
				err = errors.New("store not flushed")
			}
			return fmt.Errorf("crafter: %d discoveries not saved: %w", n, err)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crafter: explore: %w", err)
	}
	return nil
}

func (r *Runner) explorerOptions() explore.Options {
	ec := r.cfg.Explore
	seed := ec.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return explore.Options{
		Page:         r.page,
		Store:        r.store,
		Selection:    explore.Selection(ec.Selection),
		Termination:  explore.Termination(ec.Termination),
		Persistence:  explore.Persistence(r.cfg.Ledger.Mode),
		MaxAttempts:  ec.MaxAttempts,
		SampleSize:   ec.SampleSize,
		ClickDelay:   ec.ClickDelay,
		SettleDelay:  ec.SettleDelay,
		PassInterval: ec.PassInterval,
		Rand:         rand.New(rand.NewPCG(seed, seed>>1|1)),
		AfterPass:    r.afterPass,
		Logger:       r.logger,
	}
}

// afterPass recycles Chrome when it is due and rebuilds the item set on the
// fresh page.
func (r *Runner) afterPass(ctx context.Context, pass int) (bool, error) {
	due, reason := r.mgr.Due(ctx)
	if !due {
		return false, nil
	}
	r.logger.Info("crafter: recycling browser", "pass", pass, "reason", reason)

	if r.tab != nil {
		r.tab.Close()
		r.tab = nil
	}
	if _, err := r.mgr.Recycle(ctx); err != nil {
		return false, err
	}
	if err := r.openTab(ctx); err != nil {
		return false, err
	}
	r.page.Attach(r.tab)

	if err := r.replay(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func (r *Runner) openTab(ctx context.Context) error {
	tab, err := browser.OpenTab(ctx, r.mgr, browser.TabOptions{
		URL:         r.cfg.Target.URL,
		LoadTimeout: r.cfg.Target.LoadTimeout,
	})
	if err != nil {
		return err
	}
	r.tab = tab
	tab.DismissConsent(ctx, r.cfg.Target.ConsentSelector, r.cfg.Target.ConsentTimeout)
	return nil
}

func (r *Runner) replay(ctx context.Context) error {
	l, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("crafter: load ledger: %w", err)
	}
	if len(l) == 0 {
		return nil
	}

	rp := explore.NewReplayer(explore.ReplayOptions{
		Page:        r.page,
		ClickDelay:  r.cfg.Explore.ClickDelay,
		SettleDelay: r.cfg.Explore.SettleDelay,
		SkipPresent: r.cfg.Explore.SkipPresent,
		Logger:      r.logger,
	})
	stats, err := rp.Replay(ctx, l)
	if err != nil {
		return fmt.Errorf("crafter: replay: %w", err)
	}
	r.logger.Info("crafter: ledger replayed", "entries", len(l),
		"replayed", stats.Replayed, "present", stats.Present, "skipped", stats.Skipped)
	return nil
}

func (r *Runner) finishJournal(jr *journal.Journal) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runID, err := jr.FinishRun(ctx)
	if err != nil {
		r.logger.Warn("crafter: finish journal run", "error", err)
		return
	}
	sum, err := jr.Summary(ctx, runID)
	if err != nil {
		r.logger.Warn("crafter: journal summary", "run_id", runID, "error", err)
		return
	}
	r.logger.Info("crafter: run summary", "run_id", runID,
		"attempts", sum.Total(), "discovered", sum.Discovered,
		"none", sum.None, "skipped", sum.Skipped)
}
