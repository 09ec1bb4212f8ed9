// Package retry classifies executor failures as transient or terminal and
// computes backoff delays between attempts. The policy is a pure component:
// given a fixed random source its output is deterministic.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"sync"
	"syscall"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP status code from an
// external call. The executor packages wrap non-2xx responses this way.
type StatusCoder interface {
	StatusCode() int
}

// DefaultRetryableStatuses is the default set of transient HTTP statuses.
var DefaultRetryableStatuses = []int{429, 500, 502, 503, 504}

// Policy decides whether a failed attempt should be retried and how long to
// wait before it. Safe for concurrent use.
type Policy struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	MaxRetries        int
	Jitter            bool

	retryable map[int]bool

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Policy.
type Option func(*Policy)

// WithRetryableStatuses replaces the default transient status set.
func WithRetryableStatuses(statuses ...int) Option {
	return func(p *Policy) {
		p.retryable = make(map[int]bool, len(statuses))
		for _, code := range statuses {
			p.retryable[code] = true
		}
	}
}

// WithRand injects a random source for jitter. Tests pass a seeded source to
// make delays reproducible.
func WithRand(rnd *rand.Rand) Option {
	return func(p *Policy) { p.rnd = rnd }
}

// WithoutJitter disables delay jitter.
func WithoutJitter() Option {
	return func(p *Policy) { p.Jitter = false }
}

// NewPolicy returns a Policy with the default settings: 1s initial delay,
// 30s cap, multiplier 2, 3 retries, jitter on.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		MaxRetries:        3,
		Jitter:            true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.retryable == nil {
		p.retryable = make(map[int]bool, len(DefaultRetryableStatuses))
		for _, code := range DefaultRetryableStatuses {
			p.retryable[code] = true
		}
	}
	if p.rnd == nil {
		p.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p
}

// ShouldRetry reports whether the attempt-th failure (1-based) is worth
// retrying: the error must be transient and the retry budget not exhausted.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if attempt > p.MaxRetries {
		return false
	}
	return p.Retryable(err)
}

// Retryable classifies err ignoring the attempt budget. Transient errors are
// network timeouts, connection resets, DNS failures and HTTP statuses in the
// retryable set. Everything else, validation and auth errors included, is
// terminal.
func (p *Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return p.retryable[sc.StatusCode()]
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return false
}

// NextDelay returns the backoff before retrying after the attempt-th failure:
// min(maxDelay, initial * multiplier^(attempt-1)), jittered by a uniform
// factor in [0.5, 1.0] so many jobs failing at once do not retry in lockstep.
func (p *Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1)))
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter {
		p.mu.Lock()
		factor := 0.5 + 0.5*p.rnd.Float64()
		p.mu.Unlock()
		d = time.Duration(float64(d) * factor)
	}
	return d
}
