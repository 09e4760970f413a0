package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/axecheck/axe"
)

// ErrElementNotFound is returned by FindElement when nothing matches.
var ErrElementNotFound = errors.New("browser: element not found")

// Tab is one Rod page. It implements axe.Session; its CDP calls are
// serialized.
type Tab struct {
	page    *rod.Page
	router  *rod.HijackRouter
	stealth StealthLevel
	cfg     Config
	logger  *slog.Logger

	mu sync.Mutex
}

var _ axe.Session = (*Tab)(nil)

// OpenTab creates a blank tab with the requested stealth level and the
// manager's resource blocking applied.
func OpenTab(ctx context.Context, mgr *Manager, level StealthLevel) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	b = b.Context(ctx)

	var page *rod.Page
	var err error

	if level >= LevelHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	// Drop the creation context so later calls are bound only to their own.
	page = page.Context(context.Background())

	// The engine is evaluated in the page; a script-src without
	// 'unsafe-eval' would reject it.
	if err := (proto.PageSetBypassCSP{Enabled: true}).Call(page); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: bypass csp: %w", err)
	}

	cfg := mgr.Config()
	t := &Tab{page: page, stealth: level, cfg: cfg, logger: cfg.Logger}

	if len(cfg.ResourceBlocking) > 0 {
		router, err := applyResourceBlocking(page, cfg.ResourceBlocking)
		if err != nil {
			cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
		t.router = router
	}
	return t, nil
}

// Page returns the underlying Rod page.
func (t *Tab) Page() *rod.Page { return t.page }

// Stealth returns the level the tab was opened with.
func (t *Tab) Stealth() StealthLevel { return t.stealth }

// Navigate loads url and waits for the load event, bounded by
// Config.NavigationTimeout.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	navCtx, cancel := context.WithTimeout(ctx, t.cfg.NavigationTimeout)
	defer cancel()

	p := t.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	t.logger.Debug("browser: navigated", "url", url)
	return nil
}

// FindElement returns the first element matching the CSS selector, or
// ErrElementNotFound. It does not wait for the element to appear.
func (t *Tab) FindElement(ctx context.Context, selector string) (axe.Element, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	has, el, err := t.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: find %q: %w", selector, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: %q", ErrElementNotFound, selector)
	}
	return &Element{el: el, selector: selector}, nil
}

// ExecuteAsyncScript calls fn with args in the page and awaits the
// Promise it returns. json.RawMessage args are decoded first; *Element
// args are passed as node references.
func (t *Tab) ExecuteAsyncScript(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	jsArgs, err := convertArgs(args)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.page.Context(ctx).Evaluate(rod.Eval(fn, jsArgs...).ByPromise())
	if err != nil {
		var evalErr *rod.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("browser: script threw: %w", err)
		}
		return nil, fmt.Errorf("browser: evaluate: %w", err)
	}
	return json.RawMessage(res.Value.JSON("", "")), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
	}
	if t.page != nil {
		return t.page.Close()
	}
	return nil
}

// Element is a node of a Tab's current document.
type Element struct {
	el       *rod.Element
	selector string
}

// Selector is the selector the element was found with.
func (e *Element) Selector() string { return e.selector }

// Rod returns the underlying Rod element.
func (e *Element) Rod() *rod.Element { return e.el }

func convertArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil:
			out[i] = nil
		case json.RawMessage:
			if len(v) == 0 {
				out[i] = nil
				continue
			}
			var decoded any
			if err := json.Unmarshal(v, &decoded); err != nil {
				return nil, fmt.Errorf("browser: arg %d: %w", i, err)
			}
			out[i] = decoded
		case *Element:
			if v == nil || v.el == nil {
				out[i] = nil
				continue
			}
			out[i] = v.el.Object
		case axe.Element:
			return nil, fmt.Errorf("browser: arg %d: element %q belongs to another session", i, v.Selector())
		default:
			out[i] = v
		}
	}
	return out, nil
}
