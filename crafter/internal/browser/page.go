package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/infcraft/craft"
	"github.com/hazyhaar/infcraft/explore"
)

// captureJS tags each matched element with a handle and returns the
// concatenated outer HTML.
const captureJS = `(sel, attr) => {
	window.__infcraftSeq = window.__infcraftSeq || 0;
	return Array.from(document.querySelectorAll(sel)).map(el => {
		if (!el.hasAttribute(attr)) {
			el.setAttribute(attr, el.id || ('auto-' + (++window.__infcraftSeq)));
		}
		return el.outerHTML;
	}).join('');
}`

const findJS = `(attr, id) => document.querySelector('[' + attr + '="' + CSS.escape(id) + '"]')`

// clickableJS returns null when the handle no longer resolves.
const clickableJS = `(attr, id) => {
	const el = document.querySelector('[' + attr + '="' + CSS.escape(id) + '"]');
	if (!el) return null;
	const r = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 &&
		style.visibility !== 'hidden' && style.display !== 'none' &&
		!el.disabled;
}`

// ItemPage exposes the item elements of a game tab as an explore.Page.
type ItemPage struct {
	mu            sync.Mutex
	tab           *Tab
	selector      string
	actionTimeout time.Duration
}

// NewItemPage binds selector to tab. actionTimeout bounds each click.
func NewItemPage(tab *Tab, selector string, actionTimeout time.Duration) *ItemPage {
	if actionTimeout <= 0 {
		actionTimeout = 5 * time.Second
	}
	return &ItemPage{tab: tab, selector: selector, actionTimeout: actionTimeout}
}

// Attach points the page at a new tab, after a reload or browser recycle.
func (p *ItemPage) Attach(tab *Tab) {
	p.mu.Lock()
	p.tab = tab
	p.mu.Unlock()
}

func (p *ItemPage) page() (*rod.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tab == nil || p.tab.Page == nil {
		return nil, fmt.Errorf("browser: no tab attached")
	}
	return p.tab.Page, nil
}

// CaptureItems returns the items currently on screen, in document order.
func (p *ItemPage) CaptureItems(ctx context.Context) (craft.Snapshot, error) {
	page, err := p.page()
	if err != nil {
		return nil, err
	}
	res, err := page.Context(ctx).Eval(captureJS, p.selector, idAttr)
	if err != nil {
		return nil, fmt.Errorf("browser: capture items: %w", err)
	}
	items, err := ParseItemsHTML(res.Value.Str())
	if err != nil {
		return nil, err
	}
	return craft.Snapshot(items), nil
}

// IsClickable reports whether the element is rendered, visible and enabled.
// It returns explore.ErrStaleItem when the handle no longer resolves.
func (p *ItemPage) IsClickable(ctx context.Context, id string) (bool, error) {
	page, err := p.page()
	if err != nil {
		return false, err
	}
	res, err := page.Context(ctx).Eval(clickableJS, idAttr, id)
	if err != nil {
		return false, fmt.Errorf("browser: check %s: %w", id, err)
	}
	if res.Value.Nil() {
		return false, explore.ErrStaleItem
	}
	return res.Value.Bool(), nil
}

// Click resolves the handle and issues a left click on it.
func (p *ItemPage) Click(ctx context.Context, id string) error {
	page, err := p.page()
	if err != nil {
		return err
	}
	pg := page.Context(ctx).Timeout(p.actionTimeout)
	defer pg.CancelTimeout()

	el, err := pg.Sleeper(rod.NotFoundSleeper).ElementByJS(rod.Eval(findJS, idAttr, id))
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return explore.ErrStaleItem
		}
		return fmt.Errorf("browser: find %s: %w", id, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", id, err)
	}
	return nil
}
