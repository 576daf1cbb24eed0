package breaker

import (
	"sync"
	"time"

	"main/internal/obs"
	"main/pkg/exception"

	"github.com/yanun0323/logs"
)

const (
	defaultFailureThreshold  = 5
	defaultTimeout           = 60 * time.Second
	defaultHalfOpenSuccesses = 2
)

// State is the circuit position.
type State uint8

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config tunes one breaker instance. Distinct dependencies use distinct
// instances with independent tuning.
type Config struct {
	// Name identifies the protected dependency in logs and snapshots.
	Name string
	// FailureThreshold is the consecutive failure count that opens the
	// circuit. Defaults to 5.
	FailureThreshold int
	// Timeout is the cool-down before an open circuit admits a probe.
	// Defaults to 60s.
	Timeout time.Duration
	// HalfOpenSuccesses is the consecutive success count that closes a
	// half-open circuit. Defaults to 2.
	HalfOpenSuccesses int
	// IsFailure classifies errors. Defaults to any non-nil error.
	IsFailure func(error) bool
}

// Snapshot is an observability view of one breaker.
type Snapshot struct {
	Name             string
	State            State
	FailureCount     int
	FailureThreshold int
	Timeout          time.Duration
	LastFailure      time.Time
}

// Breaker wraps one fallible dependency and fails fast while it is
// known to be unhealthy. Safe for concurrent use; the protected
// operation runs outside the lock.
type Breaker struct {
	cfg     Config
	metrics *obs.Metrics
	now     func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
}

// New creates a breaker. Metrics may be nil.
func New(cfg Config, metrics *obs.Metrics) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = defaultHalfOpenSuccesses
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	if cfg.Name == "" {
		cfg.Name = "breaker"
	}
	return &Breaker{cfg: cfg, metrics: metrics, now: time.Now}
}

// Do runs op through the breaker. While the circuit is open and the
// cool-down has not elapsed it returns exception.ErrBreakerOpen without
// invoking op; otherwise op's own error is recorded and returned as-is.
func (b *Breaker) Do(op func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op()
	b.record(err)
	return err
}

// Call runs an op with a result through the breaker.
func Call[T any](b *Breaker, op func() (T, error)) (T, error) {
	var out T
	err := b.Do(func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Snapshot returns the current breaker state without mutating it.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:             b.cfg.Name,
		State:            b.state,
		FailureCount:     b.failures,
		FailureThreshold: b.cfg.FailureThreshold,
		Timeout:          b.cfg.Timeout,
		LastFailure:      b.lastFailure,
	}
}

// admit decides whether the call may proceed, transitioning an expired
// open circuit to half-open. Evaluated lazily at call time; there is no
// background timer.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.now().Sub(b.lastFailure) < b.cfg.Timeout {
		b.metrics.ObserveBreakerShortCircuit()
		return exception.ErrBreakerOpen
	}

	b.state = StateHalfOpen
	b.successes = 0
	b.metrics.ObserveBreakerHalfOpened()
	logs.Infof("breaker %s: HALF_OPEN, probing recovery", b.cfg.Name)
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.IsFailure(err) {
		b.onFailure(err)
		return
	}
	b.onSuccess()
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
			b.metrics.ObserveBreakerClosed()
			logs.Infof("breaker %s: CLOSED", b.cfg.Name)
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) onFailure(err error) {
	b.failures++
	b.lastFailure = b.now()
	logs.Warnf("breaker %s: failure #%d, err: %+v", b.cfg.Name, b.failures, err)

	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.successes = 0
	b.metrics.ObserveBreakerOpened()
	logs.Errorf("breaker %s: OPEN after %d failures", b.cfg.Name, b.failures)
}
