// Package session ties one feed controller and one size resolver to the
// active rendering mode. Switching modes throws both away and starts over
// from the first page.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/matheuskafuri/pinfeed/internal/cache"
	"github.com/matheuskafuri/pinfeed/internal/config"
	"github.com/matheuskafuri/pinfeed/internal/controller"
	"github.com/matheuskafuri/pinfeed/internal/placeholder"
	"github.com/matheuskafuri/pinfeed/internal/size"
	"github.com/matheuskafuri/pinfeed/internal/source"
)

type Option func(*Session)

// WithOnResolved forwards completed measurements of the current generation.
func WithOnResolved(fn func(size.Outcome)) Option {
	return func(s *Session) { s.onResolved = fn }
}

type Session struct {
	cfg          *config.Config
	prober       size.Prober
	logger       log.Logger
	log          *log.Helper
	placeholders *placeholder.Provider
	ctrl         *controller.Controller
	onResolved   func(size.Outcome)

	mu       sync.Mutex
	mode     string
	id       uuid.UUID
	resolver *size.Resolver
}

func New(cfg *config.Config, src source.PageSource, prober size.Prober, logger log.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = log.DefaultLogger
	}
	ph, err := placeholder.New(cfg.ReferenceWidth(), cfg.Placeholder.Ratios)
	if err != nil {
		return nil, fmt.Errorf("placeholders: %w", err)
	}
	mode := cfg.Mode
	if mode == "" {
		mode = config.ModeSimple
	}
	s := &Session{
		cfg:          cfg,
		prober:       prober,
		logger:       logger,
		log:          log.NewHelper(log.With(logger, "component", "session")),
		placeholders: ph,
		ctrl: controller.New(src,
			controller.WithLogger(logger),
			controller.WithThreshold(cfg.ThresholdOrDefault())),
		mode: mode,
		id:   uuid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = s.newResolver(mode, s.id)
	return s, nil
}

func (s *Session) newResolver(mode string, id uuid.UUID) *size.Resolver {
	opts := []size.Option{
		size.WithLogger(log.With(s.logger, "component", "resolver", "session", id.String())),
		size.WithTimeout(s.cfg.MeasureTimeoutDuration()),
	}
	if mode != config.ModeDirect && s.prober != nil {
		opts = append(opts, size.WithProber(s.prober))
	}
	if mode != config.ModeSimple {
		opts = append(opts, size.WithAdjuster(size.FooterAdjuster{
			Footer:    s.cfg.Layout.FooterHeight,
			Reference: s.cfg.ReferenceWidth(),
		}))
	}
	if s.onResolved != nil {
		opts = append(opts, size.WithOnResolved(s.onResolved))
	}
	strategy := size.Measured
	if mode == config.ModeDirect {
		strategy = size.Direct
	}
	return size.NewResolver(strategy, s.placeholders, opts...)
}

// Start loads the first page for the current mode.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	mode, id := s.mode, s.id
	s.mu.Unlock()
	s.log.Infow("msg", "session started", "session", id.String(), "mode", mode)
	return s.ctrl.Initialize(ctx, s.cfg.PageSizeOrDefault())
}

// SetMode switches the rendering mode. Measurements still in flight for the
// old mode are abandoned and the feed restarts at page 0. Selecting the
// current mode does nothing.
func (s *Session) SetMode(ctx context.Context, mode string) error {
	switch mode {
	case config.ModeSimple, config.ModeCustom, config.ModeDirect:
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	s.mu.Lock()
	if mode == s.mode {
		s.mu.Unlock()
		return nil
	}
	prev := s.mode
	s.resolver.Reset()
	s.id = uuid.New()
	s.mode = mode
	s.resolver = s.newResolver(mode, s.id)
	id := s.id
	s.mu.Unlock()

	s.log.Infow("msg", "mode changed", "session", id.String(), "from", prev, "to", mode)
	return s.ctrl.Reset(ctx, s.cfg.PageSizeOrDefault())
}

// Resolve resolves pin against the resolver of the current mode.
func (s *Session) Resolve(ctx context.Context, pin cache.Pin, slot int) size.Resolution {
	return s.Resolver().Resolve(ctx, pin, slot)
}

func (s *Session) Controller() *controller.Controller { return s.ctrl }

func (s *Session) Placeholders() *placeholder.Provider { return s.placeholders }

func (s *Session) Resolver() *size.Resolver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver
}

func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ID identifies the current generation; it changes with every mode switch.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// NextMode cycles simple -> custom -> direct -> simple.
func NextMode(mode string) string {
	switch mode {
	case config.ModeSimple:
		return config.ModeCustom
	case config.ModeCustom:
		return config.ModeDirect
	default:
		return config.ModeSimple
	}
}
