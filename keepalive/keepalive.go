// Package keepalive provides a fixed-period scheduler that emits traffic to
// keep an open connection from being considered idle by intermediaries.
package keepalive

import (
	"sync"
	"time"
)

// Config holds keepalive configuration
type Config struct {
	// Interval between keepalive transmissions.
	Interval time.Duration
	// Data carried by each keepalive.
	Data []byte
	// Mask requests payload masking where the transport allows a choice.
	// Client-side WebSocket transports always mask.
	Mask bool
	// Frame sends the keepalive as a protocol ping frame instead of an
	// ordinary message, when the transport supports it.
	Frame bool
}

// Scheduler transmits a keepalive at a fixed interval. It carries no backoff
// and no jitter; whether a given tick actually transmits is up to the send
// function, which is expected to gate on the connection being open.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	quit    chan struct{}
	running bool

	send func(cfg Config)
}

// New creates a keepalive scheduler. send is invoked once per tick with the
// current configuration.
func New(cfg Config, send func(cfg Config)) *Scheduler {
	return &Scheduler{cfg: cfg, send: send}
}

// Start begins the repeating timer. A running scheduler is left untouched.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.cfg.Interval <= 0 {
		return
	}
	s.running = true
	s.quit = make(chan struct{})
	go s.loop(s.quit)
}

// Stop cancels the repeating timer. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.quit)
	s.quit = nil
}

// Running reports whether the scheduler is currently ticking.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(quit chan struct{}) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			s.mu.Lock()
			cfg := s.cfg
			send := s.send
			s.mu.Unlock()
			if send != nil {
				send(cfg)
			}
		}
	}
}
