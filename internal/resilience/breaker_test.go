package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func testBreaker(cfg Config) (*Breaker, *time.Time) {
	clock := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	b := New("test", cfg, zerolog.Nop())
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := testBreaker(Config{FailureThreshold: 3, Cooldown: time.Minute})
	calls := 0
	fail := func() error { calls++; return errUpstream }

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(fail), errUpstream)
	}
	assert.Equal(t, StateOpen, b.State())

	assert.ErrorIs(t, b.Execute(fail), ErrOpen)
	assert.Equal(t, 3, calls, "open breaker does not call through")

	s := b.Stats()
	assert.Equal(t, int64(4), s.Calls)
	assert.Equal(t, int64(3), s.Failures)
	assert.Equal(t, int64(1), s.Rejected)
	assert.Equal(t, StateOpen, s.State)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker(Config{FailureThreshold: 2})
	ok := func() error { return nil }
	fail := func() error { return errUpstream }

	b.Execute(fail)
	b.Execute(ok)
	b.Execute(fail)
	assert.Equal(t, StateClosed, b.State())
	b.Execute(fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b, clock := testBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Minute})
	b.Execute(func() error { return errUpstream })
	require.Equal(t, StateOpen, b.State())

	*clock = clock.Add(30 * time.Second)
	assert.ErrorIs(t, b.Execute(func() error { return nil }), ErrOpen)

	// failed trial reopens and restarts the cooldown
	*clock = clock.Add(31 * time.Second)
	assert.ErrorIs(t, b.Execute(func() error { return errUpstream }), errUpstream)
	assert.Equal(t, StateOpen, b.State())

	*clock = clock.Add(61 * time.Second)
	got, err := Call(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIgnoresClassifiedErrors(t *testing.T) {
	errNotFound := errors.New("not found")
	b, _ := testBreaker(Config{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, errNotFound) },
	})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(func() error { return errNotFound }), errNotFound)
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, int64(0), b.Stats().Failures)
}

func TestNewAppliesDefaults(t *testing.T) {
	b := New("defaults", Config{}, zerolog.Nop())
	assert.Equal(t, DefaultConfig().FailureThreshold, b.config.FailureThreshold)
	assert.Equal(t, DefaultConfig().Cooldown, b.config.Cooldown)
	assert.Equal(t, "defaults", b.Name())
}
