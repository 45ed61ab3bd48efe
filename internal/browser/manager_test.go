// internal/browser/manager_test.go
package browser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/internal/config"
)

// fakeBrowser stands in for the CDP connection.
type fakeBrowser struct {
	dials   atomic.Int32
	closes  atomic.Int32
	healthy atomic.Bool
	checks  atomic.Int32
	dialErr error
}

func newTestManager(t *testing.T, reject bool) (*Manager, *fakeBrowser) {
	t.Helper()
	fb := &fakeBrowser{}
	fb.healthy.Store(true)

	m := NewManager(config.NewDefaultConfig().Browser(), reject, zap.NewNop())
	m.dial = func(ctx context.Context) (*Page, context.CancelFunc, error) {
		if fb.dialErr != nil {
			return nil, nil, fb.dialErr
		}
		fb.dials.Add(1)
		return newPage(nil, time.Second, time.Second), func() { fb.closes.Add(1) }, nil
	}
	m.probe = func(ctx context.Context, p *Page) error {
		fb.checks.Add(1)
		if !fb.healthy.Load() {
			return errors.New("target closed")
		}
		return nil
	}
	return m, fb
}

func TestManager_AcquireConnectsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, fb := newTestManager(t, false)
	ctx := context.Background()

	p1, release, err := m.Acquire(ctx)
	require.NoError(t, err)
	release()
	release()

	p2, release, err := m.Acquire(ctx)
	require.NoError(t, err)
	defer release()

	assert.Same(t, p1, p2)
	assert.Equal(t, int32(1), fb.dials.Load())
}

func TestManager_SecondRunWaits(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t, false)

	_, release, err := m.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		_, release2, err := m.Acquire(context.Background())
		if err == nil {
			release2()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned while the page was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire never got the page")
	}
}

func TestManager_WaitBoundedByContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t, false)

	_, release, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = m.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_RejectConcurrent(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newTestManager(t, true)

	_, release, err := m.Acquire(context.Background())
	require.NoError(t, err)

	_, _, err = m.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrBrowserBusy)

	release()
	_, release, err = m.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestManager_ReconnectsWhenUnhealthy(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, fb := newTestManager(t, false)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	fb.healthy.Store(false)
	assert.Error(t, m.Healthy(ctx))

	// the fresh connection answers again
	m.probe = func(context.Context, *Page) error {
		if fb.dials.Load() < 2 {
			return errors.New("target closed")
		}
		return nil
	}

	_, release, err := m.Acquire(ctx)
	require.NoError(t, err)
	release()

	assert.Equal(t, int32(2), fb.dials.Load())
	assert.Equal(t, int32(1), fb.closes.Load())
	assert.NoError(t, m.Healthy(ctx))
}

func TestManager_DialFailureFreesThePage(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, fb := newTestManager(t, true)
	fb.dialErr = errors.New("connection refused")

	_, _, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to browser")

	// a failed connect must not leave the slot taken
	fb.dialErr = nil
	_, release, err := m.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestManager_HealthyBeforeStart(t *testing.T) {
	m, _ := newTestManager(t, false)
	assert.ErrorIs(t, m.Healthy(context.Background()), ErrNotConnected)
}

func TestManager_HealthyLeavesAHeldTabAlone(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, fb := newTestManager(t, false)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	_, release, err := m.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, m.Busy())

	before := fb.checks.Load()
	fb.healthy.Store(false)
	assert.NoError(t, m.Healthy(ctx), "a held page reports connected")
	assert.Equal(t, before, fb.checks.Load(), "the tab is not evaluated during a run")

	release()
	assert.False(t, m.Busy())
	assert.Error(t, m.Healthy(ctx))
	assert.Equal(t, before+1, fb.checks.Load())
}

func TestManager_Shutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, fb := newTestManager(t, false)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Shutdown(ctx))
	assert.Equal(t, int32(1), fb.closes.Load())
	assert.ErrorIs(t, m.Healthy(ctx), ErrNotConnected)

	// shutting down twice is a no-op
	require.NoError(t, m.Shutdown(ctx))
	assert.Equal(t, int32(1), fb.closes.Load())
}

func TestPage_NotConnected(t *testing.T) {
	p := newPage(nil, time.Second, time.Second)
	assert.Error(t, p.ClickAt(context.Background(), 1, 1))

	_, err := p.URL(context.Background())
	assert.Error(t, err)
	assert.Error(t, p.HoverSelector(context.Background(), "#settings"))
	assert.Error(t, p.ClickSelector(context.Background(), "#settings"))
}

func TestSelectorTimeout(t *testing.T) {
	tests := []struct {
		action time.Duration
		want   time.Duration
	}{
		{10 * time.Second, 2500 * time.Millisecond},
		{2 * time.Second, time.Second},
		{500 * time.Millisecond, 500 * time.Millisecond},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, selectorTimeout(tt.action), "action timeout %s", tt.action)
	}
}

func TestPage_SleepHonoursContext(t *testing.T) {
	p := newPage(nil, time.Second, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, p.Sleep(context.Background(), time.Millisecond))
}

func TestQuadCenter(t *testing.T) {
	_, _, err := quadCenter(nil)
	assert.Error(t, err)

	x, y, err := quadCenter(&dom.BoxModel{Content: dom.Quad{0, 0, 10, 0, 10, 20, 0, 20}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 10.0, y)
}
