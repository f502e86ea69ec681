// Package backoff provides the reconnect scheduler: a backoff/jitter engine
// that decides when the next connection attempt happens.
package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Strategy selects how successive delays grow.
type Strategy string

const (
	// StrategyFibonacci grows each delay by the sum of the previous two.
	StrategyFibonacci Strategy = "fibonacci"
	// StrategyExponential multiplies each delay by a fixed factor.
	StrategyExponential Strategy = "exponential"
)

// Config provides reconnect scheduling configuration
type Config struct {
	Strategy       Strategy      // Delay growth strategy (default fibonacci)
	InitialDelay   time.Duration // First non-zero delay (default 50ms)
	MaxDelay       time.Duration // Clamp applied before jitter (default 10s)
	Factor         float64       // Growth factor, exponential only (default 1.5)
	RandomizeDelay bool          // Multiply each delay by uniform(1.0, 1.2)
}

// DefaultConfig returns sensible defaults for reconnect scheduling
func DefaultConfig() Config {
	return Config{
		Strategy:     StrategyFibonacci,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Factor:       1.5,
	}
}

// withDefaults fills zero fields with defaults
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = def.Strategy
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Factor <= 0 {
		c.Factor = def.Factor
	}
	return c
}

// Option configures optional scheduler hooks
type Option func(*Scheduler)

// WithDelayHook registers a hook invoked when a delay is armed, with the
// retry number the pending attempt will carry and the effective delay.
func WithDelayHook(fn func(retry uint, delay time.Duration)) Option {
	return func(s *Scheduler) { s.onDelay = fn }
}

// WithConnectingHook registers a hook invoked when the timer fires, before
// the connect callback, with the retry number and the time the connection
// was last up.
func WithConnectingHook(fn func(retry uint, lastConnectedAt time.Time)) Option {
	return func(s *Scheduler) { s.onConnecting = fn }
}

// Scheduler owns the reconnect backoff sequence and the single pending
// attempt timer. At most one timer is outstanding at any time; a timer armed
// before Stop or Reset is superseded and never fires its callbacks.
type Scheduler struct {
	mu  sync.Mutex
	cfg Config

	retries         uint
	prev, cur, next time.Duration
	stopped         bool
	lastConnectedAt time.Time
	timer           *time.Timer
	gen             uint64

	connect      func()
	onDelay      func(retry uint, delay time.Duration)
	onConnecting func(retry uint, lastConnectedAt time.Time)
}

// New creates a scheduler that invokes connect each time an armed timer
// fires. Zero config fields take defaults.
func New(cfg Config, connect func(), opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:     cfg.withDefaults(),
		connect: connect,
	}
	s.next = s.cfg.InitialDelay
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ScheduleNext arms the timer for the next connection attempt. It records
// the current time as the moment the connection was last up, advances the
// delay window, clamps at MaxDelay, applies jitter when configured, and
// invokes the delay hook. A stopped scheduler ignores the call until Reset.
func (s *Scheduler) ScheduleNext() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	s.lastConnectedAt = time.Now()
	s.prev = s.cur
	s.cur = s.next

	effective := s.cur
	if effective > s.cfg.MaxDelay {
		effective = s.cfg.MaxDelay
	}
	if s.cfg.RandomizeDelay {
		randMu.Lock()
		factor := 1.0 + 0.2*randSource.Float64()
		randMu.Unlock()
		effective = time.Duration(math.Round(float64(effective) * factor))
	}

	switch s.cfg.Strategy {
	case StrategyExponential:
		s.next = time.Duration(float64(s.cur) * s.cfg.Factor)
	default:
		s.next = s.cur + s.prev
	}
	// Clamp the window itself, not just the armed delay: an unbounded
	// window overflows int64 after enough consecutive failures and a
	// negative duration would fire immediately.
	if s.next > s.cfg.MaxDelay || s.next < 0 {
		s.next = s.cfg.MaxDelay
	}

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	gen := s.gen
	retry := s.retries + 1
	onDelay := s.onDelay
	s.mu.Unlock()

	// The hook runs before the timer is armed so a delay notification can
	// never trail the attempt it announces.
	if onDelay != nil {
		onDelay(retry, effective)
	}

	s.mu.Lock()
	if gen == s.gen && !s.stopped {
		s.timer = time.AfterFunc(effective, func() { s.fire(gen) })
	}
	s.mu.Unlock()
}

// fire runs when the armed timer elapses. A fire whose generation has been
// superseded by Stop, Reset or a newer ScheduleNext does nothing.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.retries++
	retry := s.retries
	last := s.lastConnectedAt
	onConnecting := s.onConnecting
	connect := s.connect
	s.mu.Unlock()

	if onConnecting != nil {
		onConnecting(retry, last)
	}
	if connect != nil {
		connect()
	}
}

// Reset cancels any pending timer and returns the scheduler to its initial
// state: zero retries, delay window reseeded at InitialDelay, not stopped.
// Called exactly once per successful open.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.retries = 0
	s.prev = 0
	s.cur = 0
	s.next = s.cfg.InitialDelay
	s.lastConnectedAt = time.Time{}
	s.stopped = false
}

// Stop cancels any pending timer and suppresses all scheduling until the
// next Reset. The retry count stays inspectable. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.stopped = true
}

// Update merges non-zero fields of cfg into the configuration and then
// resets. This abandons any in-flight backoff sequence, so callers must use
// it deliberately, not incidentally.
func (s *Scheduler) Update(cfg Config) {
	s.mu.Lock()
	if cfg.Strategy != "" {
		s.cfg.Strategy = cfg.Strategy
	}
	if cfg.InitialDelay > 0 {
		s.cfg.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		s.cfg.MaxDelay = cfg.MaxDelay
	}
	if cfg.Factor > 0 {
		s.cfg.Factor = cfg.Factor
	}
	s.cfg.RandomizeDelay = cfg.RandomizeDelay
	s.mu.Unlock()
	s.Reset()
}

// Retries returns the number of attempts fired since the last Reset.
func (s *Scheduler) Retries() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// LastConnectedAt returns the time recorded by the most recent ScheduleNext,
// or the zero time when none has run since Reset.
func (s *Scheduler) LastConnectedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastConnectedAt
}

// Stopped reports whether scheduling is currently suppressed.
func (s *Scheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Pending reports whether an attempt timer is currently armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
