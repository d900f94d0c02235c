// internal/app/options.go
package app

import (
	"time"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/Castellari-dev/cleaner/internal/retry"
)

// Observer receives progress events. Implementations must be cheap and must
// not fail; the metrics package provides the production one.
type Observer interface {
	AttemptFailed(op string, attempt int, err error)
	BatchDeleted(rows int64)
	RunFinished(result retention.RunResult)
	HealthChecked(snapshot retention.HealthSnapshot)
}

type nopObserver struct{}

func (nopObserver) AttemptFailed(string, int, error) {}
func (nopObserver) BatchDeleted(int64) {}
func (nopObserver) RunFinished(retention.RunResult) {}
func (nopObserver) HealthChecked(retention.HealthSnapshot) {}

type options struct {
	now      func() time.Time
	sleep    retry.SleepFunc
	observer Observer
}

// Option customizes the services in this package.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSleep replaces the timer used for inter-batch and backoff delays.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(o *options) { o.sleep = sleep }
}

// WithObserver registers a progress observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func buildOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		sleep:    retry.Sleep,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
