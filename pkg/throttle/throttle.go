package throttle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ytscribe/ytscribe/pkg/logging"
)

// ErrRateLimitExceeded is returned once every retry against a throttling
// provider has been spent.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Config is the immutable pacing and retry policy for one Gate.
type Config struct {
	// MinDelay is the minimum spacing between successive outbound calls.
	MinDelay time.Duration
	// MaxRetries bounds the additional attempts made after a rate-limited
	// failure.
	MaxRetries int
	// BackoffMultiplier is the per-retry growth factor for the backoff delay.
	BackoffMultiplier float64
	// JitterFraction randomizes each backoff delay by a uniform factor in
	// [1-JitterFraction, 1+JitterFraction]. Must be in [0, 1).
	JitterFraction float64
}

func DefaultConfig() Config {
	return Config{
		MinDelay:          2 * time.Second,
		MaxRetries:        3,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.2,
	}
}

// State holds the timestamp of the most recently issued call. One State is
// exclusively owned by one Gate; nothing else reads or writes it.
type State struct {
	lastCall time.Time
}

func NewState() *State {
	return &State{}
}

// Gate serializes outbound calls to a rate-limited provider. A single
// logical caller owns a Gate at a time; spacing is enforced between call
// issuance times, not completion times.
type Gate struct {
	cfg   Config
	state *State

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	random func() float64
}

func NewGate(cfg Config, state *State) *Gate {
	if state == nil {
		state = NewState()
	}
	return &Gate{
		cfg:    cfg,
		state:  state,
		now:    time.Now,
		sleep:  sleepContext,
		random: rand.Float64,
	}
}

// Execute runs call through the gate: it suspends until MinDelay has
// elapsed since the previous issuance, then invokes call, retrying
// rate-limited failures with exponential backoff and jitter up to
// MaxRetries. Non-rate-limit failures propagate immediately.
func Execute[T any](ctx context.Context, g *Gate, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	log := logging.NewLogger(ctx)

	for attempt := 0; ; attempt++ {
		if attempt == 0 {
			wait := g.cfg.MinDelay - g.now().Sub(g.state.lastCall)
			if wait > 0 {
				log.Debugf("throttle: waiting %s before next call", wait)
				if err := g.sleep(ctx, wait); err != nil {
					return zero, err
				}
			}
		}

		// Stamp issuance time before the call so overlapping completions
		// never shrink the observed spacing.
		g.state.lastCall = g.now()

		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRateLimited(err) {
			return zero, err
		}
		if attempt >= g.cfg.MaxRetries {
			return zero, fmt.Errorf("%w: %d retries exhausted: %w", ErrRateLimitExceeded, g.cfg.MaxRetries, err)
		}

		delay := g.backoffDelay(attempt)
		log.Warnf("throttle: rate limited (attempt %d/%d), backing off %s: %v",
			attempt+1, g.cfg.MaxRetries, delay, err)
		if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
}

// backoffDelay computes MinDelay * BackoffMultiplier^attempt, jittered.
func (g *Gate) backoffDelay(attempt int) time.Duration {
	base := float64(g.cfg.MinDelay) * math.Pow(g.cfg.BackoffMultiplier, float64(attempt))
	factor := 1.0
	if g.cfg.JitterFraction > 0 {
		factor = 1 - g.cfg.JitterFraction + 2*g.cfg.JitterFraction*g.random()
	}
	return time.Duration(base * factor)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
