package resilience

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"slices"
	"time"

	apierrors "github.com/kbukum/apiclient/errors"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2
	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = time.Second
)

// DefaultRetryableStatuses are the HTTP statuses treated as transient.
var DefaultRetryableStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`
	// BaseDelay is the delay before the first retry; each retry doubles it.
	BaseDelay time.Duration `yaml:"base_delay" mapstructure:"base_delay" validate:"gte=0"`
	// MaxDelay caps the backoff. Zero means uncapped.
	MaxDelay time.Duration `yaml:"max_delay" mapstructure:"max_delay" validate:"gte=0"`
	// RetryableStatuses lists the HTTP statuses that are retried.
	RetryableStatuses []int `yaml:"retryable_statuses" mapstructure:"retryable_statuses"`
}

// DefaultRetryPolicy returns the standard policy: two retries, 1s then 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		RetryableStatuses: slices.Clone(DefaultRetryableStatuses),
	}
}

// ApplyDefaults fills zero-valued fields. MaxRetries is left alone so zero
// can disable retries.
func (p *RetryPolicy) ApplyDefaults() {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.RetryableStatuses == nil {
		p.RetryableStatuses = slices.Clone(DefaultRetryableStatuses)
	}
}

// Validate checks the policy.
func (p *RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("resilience: max_retries must be >= 0 (got %d)", p.MaxRetries)
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("resilience: max_delay %s is below base_delay %s", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// IsRetryable reports whether err is a transient failure. Only normalized
// errors are considered; anything else is surfaced.
func (p RetryPolicy) IsRetryable(err error) bool {
	e, ok := apierrors.From(err)
	if !ok {
		return false
	}
	if e.IsNetworkError() {
		return true
	}
	return e.Kind == apierrors.KindHTTP && slices.Contains(p.RetryableStatuses, e.StatusCode)
}

// NextDelay returns the wait before retry number attempt+1:
// BaseDelay * 2^attempt, capped at MaxDelay when set.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryOption configures a single Retry run.
type RetryOption func(*retryRun)

type retryRun struct {
	sleep   Sleeper
	onRetry func(attempt int, err error, delay time.Duration)
	enabled bool
}

// WithSleeper replaces the backoff wait, typically in tests.
func WithSleeper(s Sleeper) RetryOption {
	return func(r *retryRun) { r.sleep = s }
}

// OnRetry is called before each backoff wait with the retry number (1-based).
func OnRetry(fn func(attempt int, err error, delay time.Duration)) RetryOption {
	return func(r *retryRun) { r.onRetry = fn }
}

// Enabled turns retrying on or off for this run. Off runs fn exactly once.
func Enabled(on bool) RetryOption {
	return func(r *retryRun) { r.enabled = on }
}

// Retry runs fn, retrying transient failures per the policy. fn receives the
// zero-based attempt number. The returned error is the last one observed, or
// the context error if ctx ends during a backoff wait.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(attempt int) (T, error), opts ...RetryOption) (T, error) {
	run := retryRun{sleep: Sleep, enabled: true}
	for _, opt := range opts {
		opt(&run)
	}

	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		if !run.enabled || attempt >= p.MaxRetries || !p.IsRetryable(err) {
			return zero, err
		}

		delay := p.NextDelay(attempt)
		if run.onRetry != nil {
			run.onRetry(attempt+1, err, delay)
		}
		if sleepErr := run.sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
}
