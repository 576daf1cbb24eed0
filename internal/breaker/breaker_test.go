package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/pkg/exception"
)

var errUpstream = errors.New("upstream unavailable")

// fakeClock drives the breaker's lazy cool-down evaluation in tests.
type fakeClock struct {
	mu sync.Mutex
	at time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{at: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.at = c.at.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	b := New(cfg, nil)
	clock := newFakeClock()
	b.now = clock.Now
	return b, clock
}

func fail(b *Breaker) error {
	return b.Do(func() error { return errUpstream })
}

func succeed(b *Breaker) error {
	return b.Do(func() error { return nil })
}

func TestOpensAfterThresholdFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{Name: "exchange", FailureThreshold: 3, Timeout: 30 * time.Second})

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, fail(b), errUpstream)
	}
	require.Equal(t, StateOpen, b.Snapshot().State)

	invoked := false
	err := b.Do(func() error {
		invoked = true
		return nil
	})
	require.ErrorIs(t, err, exception.ErrBreakerOpen)
	assert.False(t, invoked, "open circuit must not invoke the operation")
}

func TestCoolDownAdmitsProbe(t *testing.T) {
	b, clock := newTestBreaker(Config{Name: "exchange", FailureThreshold: 1, Timeout: 30 * time.Second})

	require.ErrorIs(t, fail(b), errUpstream)
	require.Equal(t, StateOpen, b.Snapshot().State)
	require.ErrorIs(t, succeed(b), exception.ErrBreakerOpen)

	clock.Advance(30 * time.Second)

	invoked := false
	err := b.Do(func() error {
		invoked = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, invoked, "elapsed cool-down must admit the probe")
	assert.Equal(t, StateHalfOpen, b.Snapshot().State)
}

func TestHalfOpenClosesAfterTwoSuccesses(t *testing.T) {
	b, clock := newTestBreaker(Config{Name: "exchange", FailureThreshold: 1, Timeout: time.Second})

	require.ErrorIs(t, fail(b), errUpstream)
	clock.Advance(time.Second)

	require.NoError(t, succeed(b))
	require.Equal(t, StateHalfOpen, b.Snapshot().State, "one success must not close the circuit")

	require.NoError(t, succeed(b))
	snap := b.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 0, snap.FailureCount)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Config{Name: "exchange", FailureThreshold: 1, Timeout: time.Second})

	require.ErrorIs(t, fail(b), errUpstream)
	opened := b.Snapshot().LastFailure

	clock.Advance(time.Second)
	require.ErrorIs(t, fail(b), errUpstream)

	snap := b.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	assert.True(t, snap.LastFailure.After(opened), "half-open failure must refresh last_failure_time")
}

func TestClosedSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{Name: "exchange", FailureThreshold: 3, Timeout: time.Second})

	require.ErrorIs(t, fail(b), errUpstream)
	require.ErrorIs(t, fail(b), errUpstream)
	require.Equal(t, 2, b.Snapshot().FailureCount)

	require.NoError(t, succeed(b))
	require.Equal(t, 0, b.Snapshot().FailureCount)

	// the reset means two more failures still do not open the circuit
	require.ErrorIs(t, fail(b), errUpstream)
	require.ErrorIs(t, fail(b), errUpstream)
	assert.Equal(t, StateClosed, b.Snapshot().State)
}

func TestFailureClassification(t *testing.T) {
	benign := errors.New("no rows")
	b, _ := newTestBreaker(Config{
		Name:             "database",
		FailureThreshold: 1,
		Timeout:          time.Second,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, benign)
		},
	})

	require.ErrorIs(t, b.Do(func() error { return benign }), benign)
	assert.Equal(t, StateClosed, b.Snapshot().State, "classified-benign errors must not trip the breaker")

	require.ErrorIs(t, fail(b), errUpstream)
	assert.Equal(t, StateOpen, b.Snapshot().State)
}

func TestCallReturnsResult(t *testing.T) {
	b, _ := newTestBreaker(Config{Name: "exchange"})

	got, err := Call(b, func() (string, error) { return "42000.5", nil })
	require.NoError(t, err)
	assert.Equal(t, "42000.5", got)

	_, err = Call(b, func() (string, error) { return "", errUpstream })
	require.ErrorIs(t, err, errUpstream)
}

func TestRecoveryScenario(t *testing.T) {
	// threshold=2, timeout=5s: calls 1-2 fail, call 3 is short-circuited,
	// after the cool-down call 4 probes and one further success closes.
	b, clock := newTestBreaker(Config{Name: "exchange", FailureThreshold: 2, Timeout: 5 * time.Second})

	require.ErrorIs(t, fail(b), errUpstream)
	require.ErrorIs(t, fail(b), errUpstream)
	require.ErrorIs(t, succeed(b), exception.ErrBreakerOpen)

	clock.Advance(5 * time.Second)
	require.NoError(t, succeed(b))
	require.Equal(t, StateHalfOpen, b.Snapshot().State)

	require.NoError(t, succeed(b))
	assert.Equal(t, StateClosed, b.Snapshot().State)
}

func TestSnapshotReportsTuning(t *testing.T) {
	b, _ := newTestBreaker(Config{Name: "database", FailureThreshold: 5, Timeout: time.Minute})
	snap := b.Snapshot()
	assert.Equal(t, "database", snap.Name)
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 5, snap.FailureThreshold)
	assert.Equal(t, time.Minute, snap.Timeout)
	assert.True(t, snap.LastFailure.IsZero())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
}

func TestConcurrentFailureAccounting(t *testing.T) {
	// threshold above the total failure count keeps the circuit closed,
	// so every concurrent failure must be recorded exactly once.
	const workers, perWorker = 10, 100
	b, _ := newTestBreaker(Config{Name: "exchange", FailureThreshold: workers*perWorker + 1, Timeout: time.Second})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = fail(b)
			}
		}()
	}
	wg.Wait()

	snap := b.Snapshot()
	assert.Equal(t, workers*perWorker, snap.FailureCount)
	assert.Equal(t, StateClosed, snap.State)
}
