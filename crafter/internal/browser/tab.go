package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// TabOptions configures OpenTab.
type TabOptions struct {
	URL         string
	LoadTimeout time.Duration // Default: 30s.
}

// Tab wraps a Rod page opened with stealth and resource blocking applied.
type Tab struct {
	Page    *rod.Page
	PageURL string
	Stealth StealthLevel
	router  *rod.HijackRouter
	manager *Manager
}

// OpenTab creates a new stealth tab on the manager's current browser and
// navigates it to opts.URL.
func OpenTab(ctx context.Context, mgr *Manager, opts TabOptions) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	log := mgr.cfg.Logger

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{
		Page:    page,
		PageURL: opts.URL,
		Stealth: mgr.cfg.Stealth,
		manager: mgr,
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		router, err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking)
		if err != nil {
			log.Warn("browser: resource blocking failed", "error", err)
		}
		t.router = router
	}

	navCtx, cancel := context.WithTimeout(ctx, opts.LoadTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(opts.URL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", opts.URL, err)
	}

	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "url", opts.URL, "error", err)
	}

	log.Info("browser: tab opened", "url", opts.URL, "stealth", t.Stealth)
	return t, nil
}

// DismissConsent clicks the consent button matching selector if it shows up
// within timeout. A missing button is not an error: the banner is regional.
func (t *Tab) DismissConsent(ctx context.Context, selector string, timeout time.Duration) bool {
	if selector == "" {
		return false
	}
	log := t.manager.cfg.Logger

	el, err := t.Page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		log.Debug("browser: no consent prompt", "selector", selector)
		return false
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		log.Warn("browser: consent click failed", "selector", selector, "error", err)
		return false
	}
	log.Info("browser: consent dismissed", "selector", selector)
	return true
}

// Close stops request interception and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
		t.router = nil
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
