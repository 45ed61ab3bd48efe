// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/internal/browser/stealth"
	"github.com/xkilldash9x/uxpilot/internal/config"
)

// ErrBrowserBusy is returned by Acquire when another run holds the page and
// the manager is configured to reject instead of queue.
var ErrBrowserBusy = errors.New("browser is busy with another run")

// ErrNotConnected is reported by Healthy before the first connection.
var ErrNotConnected = errors.New("browser is not connected")

type dialFunc func(ctx context.Context) (*Page, context.CancelFunc, error)
type probeFunc func(ctx context.Context, p *Page) error

// Manager owns the single shared browser page. One run at a time may hold
// it; a dead connection is replaced on the next Acquire.
type Manager struct {
	cfg              config.BrowserConfig
	rejectConcurrent bool
	logger           *zap.Logger

	// slot has capacity one; holding a value in it is holding the page.
	slot chan struct{}

	dial  dialFunc
	probe probeFunc

	mu     sync.Mutex
	page   *Page
	cancel context.CancelFunc
}

// NewManager creates a manager. The browser is not contacted until Start or
// the first Acquire.
func NewManager(cfg config.BrowserConfig, rejectConcurrent bool, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:              cfg,
		rejectConcurrent: rejectConcurrent,
		logger:           logger.Named("browser_manager"),
		slot:             make(chan struct{}, 1),
	}
	m.dial = m.connect
	m.probe = m.evaluateOne
	return m
}

// Start connects eagerly so that the first run does not pay for the launch.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.ensureLocked(ctx)
	return err
}

// Acquire hands out the page exclusively. The returned release func must be
// called once the run is over; calling it more than once is harmless.
func (m *Manager) Acquire(ctx context.Context) (*Page, func(), error) {
	if m.rejectConcurrent {
		select {
		case m.slot <- struct{}{}:
		default:
			return nil, nil, ErrBrowserBusy
		}
	} else {
		select {
		case m.slot <- struct{}{}:
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("waiting for the browser: %w", ctx.Err())
		}
	}

	m.mu.Lock()
	page, err := m.ensureLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		<-m.slot
		return nil, nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() { <-m.slot })
	}
	return page, release, nil
}

// Navigate points the shared page at url, waiting for any active run.
func (m *Manager) Navigate(ctx context.Context, url string) error {
	page, release, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	m.logger.Info("Shared page navigated", zap.String("url", url))
	return nil
}

// Healthy checks the current connection without reconnecting. While a run
// holds the page the tab is left alone and the connection counts as healthy.
func (m *Manager) Healthy(ctx context.Context) error {
	m.mu.Lock()
	page := m.page
	m.mu.Unlock()
	if page == nil {
		return ErrNotConnected
	}
	if m.Busy() {
		return nil
	}
	return m.probe(ctx, page)
}

// Busy reports whether a run currently holds the page.
func (m *Manager) Busy() bool {
	return len(m.slot) == cap(m.slot)
}

// Shutdown closes the browser connection. A locally launched Chrome exits
// with it.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.logger.Info("Closing browser connection")
		m.cancel()
	}
	m.page, m.cancel = nil, nil
	return ctx.Err()
}

// ensureLocked returns a healthy page, reconnecting when the probe fails.
// The caller holds m.mu.
func (m *Manager) ensureLocked(ctx context.Context) (*Page, error) {
	if m.page != nil {
		err := m.probe(ctx, m.page)
		if err == nil {
			return m.page, nil
		}
		m.logger.Warn("Browser health check failed, reconnecting", zap.Error(err))
		m.cancel()
		m.page, m.cancel = nil, nil
	}

	page, cancel, err := m.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	m.page, m.cancel = page, cancel
	return page, nil
}

func (m *Manager) evaluateOne(ctx context.Context, p *Page) error {
	if m.cfg.HealthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.HealthTimeout)
		defer cancel()
	}
	var n int
	if err := p.Evaluate(ctx, "1", &n); err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("unexpected health check result %d", n)
	}
	return nil
}

// connect attaches to the remote browser, or launches one, and prepares a
// tab with the stealth profile and the fixed viewport.
func (m *Manager) connect(ctx context.Context) (*Page, context.CancelFunc, error) {
	// The browser outlives the request that first needed it.
	base := detach(ctx)

	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if m.cfg.RemoteURL != "" {
		m.logger.Info("Connecting to remote browser", zap.String("url", m.cfg.RemoteURL))
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(base, m.cfg.RemoteURL)
	} else {
		m.logger.Info("Launching local browser", zap.Bool("headless", m.cfg.Headless))
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(base, allocatorOptions(m.cfg)...)
	}

	sugar := m.logger.Sugar()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	// The first Run allocates the browser and must get the tab context
	// itself; a derived context would tear the browser down with it.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, nil, err
	}

	page := newPage(tabCtx, m.cfg.ActionTimeout, m.cfg.NavigationTimeout)
	profile := stealth.DefaultProfile.WithUserAgent(m.cfg.UserAgent)
	setup := append(stealth.Apply(profile, m.logger),
		chromedp.EmulateViewport(int64(m.cfg.Viewport.Width), int64(m.cfg.Viewport.Height)))
	if err := page.run(ctx, m.cfg.NavigationTimeout, setup...); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to prepare tab: %w", err)
	}

	if m.cfg.StartURL != "" {
		if err := page.Navigate(ctx, m.cfg.StartURL); err != nil {
			m.logger.Warn("Failed to open start page", zap.String("url", m.cfg.StartURL), zap.Error(err))
		}
	}

	m.logger.Info("Browser ready",
		zap.Int("width", m.cfg.Viewport.Width),
		zap.Int("height", m.cfg.Viewport.Height))
	return page, cancel, nil
}
