package runner

import (
	"context"
	"fmt"

	"github.com/hazyhaar/axecheck/axe"
	"github.com/hazyhaar/axecheck/browser"
)

// Session is a page the runner audits in.
type Session interface {
	axe.Session
	Close() error
}

// Sessions opens pages. The default implementation drives Chrome through
// a browser.Manager.
type Sessions interface {
	Start(ctx context.Context) error
	Open(ctx context.Context) (Session, error)
	// Recycle restarts the browser after a crash. Open sessions are lost.
	Recycle(ctx context.Context) error
	Close() error
}

type browserSessions struct {
	mgr   *browser.Manager
	level browser.StealthLevel
}

func newBrowserSessions(cfg BrowserConfig, level browser.StealthLevel, mgrCfg browser.Config) *browserSessions {
	mgrCfg.RemoteURL = cfg.Remote
	mgrCfg.Bin = cfg.Bin
	mgrCfg.NoSandbox = cfg.NoSandbox
	mgrCfg.ResourceBlocking = cfg.ResourceBlocking
	mgrCfg.Stealth = level
	mgrCfg.NavigationTimeout = cfg.NavigationTimeout
	mgrCfg.XvfbDisplay = cfg.XvfbDisplay
	return &browserSessions{mgr: browser.NewManager(mgrCfg), level: level}
}

func (b *browserSessions) Start(ctx context.Context) error {
	if _, err := b.mgr.Start(ctx); err != nil {
		return fmt.Errorf("runner: start browser: %w", err)
	}
	return nil
}

func (b *browserSessions) Open(ctx context.Context) (Session, error) {
	tab, err := browser.OpenTab(ctx, b.mgr, b.level)
	if err != nil {
		return nil, err
	}
	return tab, nil
}

func (b *browserSessions) Recycle(ctx context.Context) error { return b.mgr.Recycle(ctx) }

func (b *browserSessions) Close() error { return b.mgr.Close() }
