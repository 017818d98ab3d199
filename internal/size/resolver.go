package size

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/matheuskafuri/pinfeed/internal/cache"
)

// Strategy selects how a resolver learns an item's size.
type Strategy int

const (
	// Direct reads declared width/height from item metadata.
	Direct Strategy = iota
	// Measured probes the referenced image asynchronously.
	Measured
)

func (s Strategy) String() string {
	switch s {
	case Direct:
		return "direct"
	case Measured:
		return "measured"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

var (
	ErrNoDeclaredSize = errors.New("size: item declares no width/height")
	ErrNoProber       = errors.New("size: measured strategy without a prober")
	ErrInvalidSize    = errors.New("size: measured size is not positive")
)

// MeasureError reports an item whose size could not be determined. The item
// is still laid out, with fallback geometry.
type MeasureError struct {
	Key string
	Ref string
	Err error
}

func (e *MeasureError) Error() string {
	return fmt.Sprintf("measuring %s (%s): %v", e.Key, e.Ref, e.Err)
}

func (e *MeasureError) Unwrap() error { return e.Err }

// Placeholders supplies provisional geometry by slot.
type Placeholders interface {
	Size(slot int) LayoutSize
}

// Outcome is the final result of one item's resolution.
type Outcome struct {
	Key      string
	Size     LayoutSize
	Err      error // *MeasureError when Fallback is set
	Fallback bool
	// Abandoned is set when the item was forgotten or the resolver reset
	// before the measurement finished; Size is meaningless then.
	Abandoned bool
}

type entry struct {
	done    chan struct{}
	outcome Outcome
	cancel  context.CancelFunc
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Resolution is what Resolve hands the layout engine: a final size, or a
// placeholder plus a handle that completes with the corrected size.
type Resolution struct {
	Key      string
	Size     LayoutSize
	Pending  bool
	Fallback bool
	e        *entry
}

// Done is closed once the final outcome is available. It is already closed
// for resolutions that were not pending.
func (r Resolution) Done() <-chan struct{} {
	if r.e == nil {
		return closedDone
	}
	return r.e.done
}

// Outcome returns the final outcome; it must only be called after Done is closed.
func (r Resolution) Outcome() Outcome {
	if r.e == nil {
		return Outcome{Key: r.Key, Size: r.Size, Fallback: r.Fallback}
	}
	return r.e.outcome
}

// Wait blocks until the resolution completes or ctx ends.
func (r Resolution) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.Done():
		return r.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

type Option func(*Resolver)

func WithProber(p Prober) Option { return func(r *Resolver) { r.prober = p } }

func WithAdjuster(a Adjuster) Option { return func(r *Resolver) { r.adjuster = a } }

// WithTimeout bounds each measurement; a timeout falls back like any failure.
func WithTimeout(d time.Duration) Option { return func(r *Resolver) { r.timeout = d } }

func WithLogger(l log.Logger) Option { return func(r *Resolver) { r.log = log.NewHelper(l) } }

// WithOnResolved registers a callback invoked (outside the lock) for every
// measurement that completes while its item is still tracked.
func WithOnResolved(fn func(Outcome)) Option { return func(r *Resolver) { r.onResolved = fn } }

// Resolver owns per-item resolution state keyed by item key.
type Resolver struct {
	strategy     Strategy
	placeholders Placeholders
	prober       Prober
	adjuster     Adjuster
	timeout      time.Duration
	onResolved   func(Outcome)
	log          *log.Helper

	mu      sync.Mutex
	gen     uint64
	entries map[string]*entry
	latest  map[string]LayoutSize
}

func NewResolver(strategy Strategy, placeholders Placeholders, opts ...Option) *Resolver {
	r := &Resolver{
		strategy:     strategy,
		placeholders: placeholders,
		log:          log.NewHelper(log.DefaultLogger),
		entries:      make(map[string]*entry),
		latest:       make(map[string]LayoutSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Strategy() Strategy { return r.strategy }

// Resolve returns the size for pin. slot is the pin's position in the feed and
// picks the placeholder used while pending or after a failure. A pending pin
// resolved again shares the first resolution instead of probing twice.
func (r *Resolver) Resolve(ctx context.Context, pin cache.Pin, slot int) Resolution {
	r.mu.Lock()
	if e, ok := r.entries[pin.Key]; ok {
		res := Resolution{Key: pin.Key, Size: r.latest[pin.Key], e: e}
		select {
		case <-e.done:
			res.Fallback = e.outcome.Fallback
		default:
			res.Pending = true
		}
		r.mu.Unlock()
		return res
	}

	if r.strategy == Direct || r.prober == nil {
		out := r.immediate(pin, slot)
		e := &entry{done: closedDone, outcome: out}
		r.entries[pin.Key] = e
		r.latest[pin.Key] = out.Size
		r.mu.Unlock()
		if out.Err != nil {
			r.log.Warnw("msg", "size fallback", "key", pin.Key, "err", out.Err)
		}
		return Resolution{Key: pin.Key, Size: out.Size, Fallback: out.Fallback, e: e}
	}

	placeholder := r.placeholders.Size(slot)
	var (
		pctx   context.Context
		cancel context.CancelFunc
	)
	if r.timeout > 0 {
		pctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		pctx, cancel = context.WithCancel(ctx)
	}
	e := &entry{done: make(chan struct{}), cancel: cancel}
	r.entries[pin.Key] = e
	r.latest[pin.Key] = placeholder
	gen := r.gen
	r.mu.Unlock()

	go r.measure(pctx, gen, pin, slot, e)

	return Resolution{Key: pin.Key, Size: placeholder, Pending: true, e: e}
}

// immediate resolves without suspending: declared sizes, or a fallback when
// there is nothing to go on.
func (r *Resolver) immediate(pin cache.Pin, slot int) Outcome {
	if r.strategy == Measured {
		return r.fallback(pin, slot, ErrNoProber)
	}
	if !pin.HasDeclaredSize() {
		return r.fallback(pin, slot, ErrNoDeclaredSize)
	}
	natural := LayoutSize{Width: float64(pin.Width), Height: float64(pin.Height)}
	return Outcome{Key: pin.Key, Size: r.adjust(natural)}
}

func (r *Resolver) fallback(pin cache.Pin, slot int, err error) Outcome {
	return Outcome{
		Key:      pin.Key,
		Size:     r.placeholders.Size(slot),
		Err:      &MeasureError{Key: pin.Key, Ref: pin.Image, Err: err},
		Fallback: true,
	}
}

func (r *Resolver) adjust(natural LayoutSize) LayoutSize {
	if r.adjuster == nil {
		return natural
	}
	return r.adjuster.Adjust(natural)
}

func (r *Resolver) measure(ctx context.Context, gen uint64, pin cache.Pin, slot int, e *entry) {
	natural, err := r.prober.Probe(ctx, pin.Image)
	e.cancel()
	if err == nil && !natural.Valid() {
		err = fmt.Errorf("%w: %v", ErrInvalidSize, natural)
	}

	r.mu.Lock()
	if r.gen != gen || r.entries[pin.Key] != e {
		// Late arrival for an item nobody tracks anymore.
		e.outcome = Outcome{Key: pin.Key, Abandoned: true}
		close(e.done)
		r.mu.Unlock()
		r.log.Debugw("msg", "dropped late measurement", "key", pin.Key)
		return
	}

	var out Outcome
	if err != nil {
		out = r.fallback(pin, slot, err)
	} else {
		out = Outcome{Key: pin.Key, Size: r.adjust(natural)}
	}
	e.outcome = out
	r.latest[pin.Key] = out.Size
	close(e.done)
	cb := r.onResolved
	r.mu.Unlock()

	if out.Err != nil {
		r.log.Warnw("msg", "measurement failed, using fallback size", "key", pin.Key, "size", out.Size.String(), "err", out.Err)
	} else {
		r.log.Debugw("msg", "measured", "key", pin.Key, "natural", natural.String(), "size", out.Size.String())
	}
	if cb != nil {
		cb(out)
	}
}

// Latest returns the most recent size known for key: final if resolved,
// otherwise the placeholder it was given.
func (r *Resolver) Latest(key string) (LayoutSize, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.latest[key]
	return s, ok
}

// Forget stops tracking key. A measurement still in flight for it completes
// as abandoned and changes nothing.
func (r *Resolver) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok && e.cancel != nil {
		e.cancel()
	}
	delete(r.entries, key)
	delete(r.latest, key)
}

// Reset abandons every tracked item.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.cancel != nil {
			e.cancel()
		}
	}
	r.gen++
	r.entries = make(map[string]*entry)
	r.latest = make(map[string]LayoutSize)
}

// Pending returns how many measurements are in flight.
func (r *Resolver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		select {
		case <-e.done:
		default:
			n++
		}
	}
	return n
}
