package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"

	"github.com/matheuskafuri/pinfeed/internal/config"
	"github.com/matheuskafuri/pinfeed/internal/controller"
	"github.com/matheuskafuri/pinfeed/internal/size"
	"github.com/matheuskafuri/pinfeed/internal/source"
)

func testConfig(mode string) *config.Config {
	return &config.Config{
		Mode:      mode,
		PageSize:  8,
		Threshold: 2,
		Layout:    config.Layout{Gap: 20, MinWidth: 236, FooterHeight: 40},
		Placeholder: config.Placeholder{
			SkeletonCount: 12,
			Ratios:        []float64{1.5, 1.0},
		},
		Measure: config.Measure{Timeout: "5s"},
	}
}

// heldProber blocks every probe until release, then reports 236x300.
type heldProber struct {
	mu      sync.Mutex
	started chan string
	gate    chan struct{}
}

func newHeldProber() *heldProber {
	return &heldProber{started: make(chan string, 64), gate: make(chan struct{})}
}

func (p *heldProber) Probe(ctx context.Context, ref string) (size.LayoutSize, error) {
	p.started <- ref
	select {
	case <-p.gate:
		return size.LayoutSize{Width: 236, Height: 300}, nil
	case <-ctx.Done():
		return size.LayoutSize{}, ctx.Err()
	}
}

func (p *heldProber) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.gate:
	default:
		close(p.gate)
	}
}

var instant = size.ProberFunc(func(ctx context.Context, ref string) (size.LayoutSize, error) {
	return size.LayoutSize{Width: 236, Height: 300}, nil
})

func wait(t *testing.T, res size.Resolution) size.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := res.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestStartLoadsFirstPage(t *testing.T) {
	s, err := New(testConfig(config.ModeSimple), source.NewMemory(source.Demo(18)), instant, log.DefaultLogger)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 8, s.Controller().Len())
	require.Equal(t, controller.Idle, s.Controller().State())
	require.Equal(t, config.ModeSimple, s.Mode())
}

func TestModesPickStrategyAndFooter(t *testing.T) {
	ctx := context.Background()
	pin := source.Demo(1)[0] // declared 236x300

	tests := []struct {
		mode     string
		strategy size.Strategy
		want     size.LayoutSize
	}{
		{config.ModeSimple, size.Measured, size.LayoutSize{Width: 236, Height: 300}},
		{config.ModeCustom, size.Measured, size.LayoutSize{Width: 236, Height: 340}},
		{config.ModeDirect, size.Direct, size.LayoutSize{Width: 236, Height: 340}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			s, err := New(testConfig(tt.mode), source.NewMemory(source.Demo(4)), instant, nil)
			require.NoError(t, err)
			require.Equal(t, tt.strategy, s.Resolver().Strategy())
			out := wait(t, s.Resolve(ctx, pin, 0))
			require.False(t, out.Fallback)
			require.Equal(t, tt.want, out.Size)
		})
	}
}

func TestSetModeResetsFeed(t *testing.T) {
	ctx := context.Background()
	s, err := New(testConfig(config.ModeSimple), source.NewMemory(source.Demo(18)), instant, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))
	_, err = s.Controller().LoadMore(ctx)
	require.NoError(t, err)
	require.Equal(t, 16, s.Controller().Len())

	before := s.ID()
	resolver := s.Resolver()
	require.NoError(t, s.SetMode(ctx, config.ModeCustom))
	require.Equal(t, config.ModeCustom, s.Mode())
	require.NotEqual(t, before, s.ID())
	require.NotSame(t, resolver, s.Resolver())

	snap := s.Controller().Snapshot()
	require.Len(t, snap.Items, 8)
	require.Equal(t, 1, snap.NextPage)
	require.Equal(t, controller.Idle, snap.State)
}

func TestSetModeSameModeIsNoop(t *testing.T) {
	ctx := context.Background()
	s, err := New(testConfig(config.ModeCustom), source.NewMemory(source.Demo(18)), instant, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))
	_, err = s.Controller().LoadMore(ctx)
	require.NoError(t, err)

	id := s.ID()
	require.NoError(t, s.SetMode(ctx, config.ModeCustom))
	require.Equal(t, id, s.ID())
	require.Equal(t, 16, s.Controller().Len())
}

func TestSetModeRejectsUnknown(t *testing.T) {
	s, err := New(testConfig(config.ModeSimple), source.NewMemory(nil), instant, nil)
	require.NoError(t, err)
	require.Error(t, s.SetMode(context.Background(), "mosaic"))
	require.Equal(t, config.ModeSimple, s.Mode())
}

func TestPendingMeasurementAcrossModeSwitch(t *testing.T) {
	ctx := context.Background()
	prober := newHeldProber()
	t.Cleanup(prober.release)

	var mu sync.Mutex
	var resolved []size.Outcome
	s, err := New(testConfig(config.ModeSimple), source.NewMemory(source.Demo(18)), prober, nil,
		WithOnResolved(func(o size.Outcome) {
			mu.Lock()
			resolved = append(resolved, o)
			mu.Unlock()
		}))
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))

	x := s.Controller().Snapshot().Items[0]
	res := s.Resolve(ctx, x, 0)
	require.True(t, res.Pending)
	<-prober.started

	require.NoError(t, s.SetMode(ctx, config.ModeCustom))
	before := s.Controller().Snapshot()

	prober.release()
	out := wait(t, res)
	require.True(t, out.Abandoned)

	require.Equal(t, before, s.Controller().Snapshot())
	_, tracked := s.Resolver().Latest(x.Key)
	require.False(t, tracked, "old measurement must not leak into the new resolver")
	mu.Lock()
	require.Empty(t, resolved)
	mu.Unlock()

	fresh := wait(t, s.Resolve(ctx, x, 0))
	require.Equal(t, size.LayoutSize{Width: 236, Height: 340}, fresh.Size)
}

func TestNewRejectsBadPlaceholders(t *testing.T) {
	cfg := testConfig(config.ModeSimple)
	cfg.Placeholder.Ratios = []float64{-1}
	_, err := New(cfg, source.NewMemory(nil), instant, nil)
	require.Error(t, err)
}

func TestNextMode(t *testing.T) {
	require.Equal(t, config.ModeCustom, NextMode(config.ModeSimple))
	require.Equal(t, config.ModeDirect, NextMode(config.ModeCustom))
	require.Equal(t, config.ModeSimple, NextMode(config.ModeDirect))
	require.Equal(t, config.ModeSimple, NextMode(""))
}

func TestDirectModeWithoutDeclaredSizeFallsBack(t *testing.T) {
	s, err := New(testConfig(config.ModeDirect), source.NewMemory(nil), nil, nil)
	require.NoError(t, err)
	pin := source.Demo(1)[0]
	pin.Width, pin.Height = 0, 0
	out := wait(t, s.Resolve(context.Background(), pin, 1))
	require.True(t, out.Fallback)
	require.True(t, errors.Is(out.Err, size.ErrNoDeclaredSize))
	require.Equal(t, size.LayoutSize{Width: 236, Height: 236}, out.Size)
}
