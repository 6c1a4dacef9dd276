// Package poll provides the repeated-read-until-condition primitive every hop
// confirmation is built on: read a value, check a predicate, sleep a fixed
// interval, until the predicate holds or a timeout elapses. Reads are never
// parallelized; one outstanding read per tick keeps rate-limited endpoints
// from throttling the run.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vitwit/bridgeflow/logger"
)

// Config tunes one poll loop.
type Config struct {
	// Interval between reads. Also the lower bound on how fast the
	// condition can be detected after the first read.
	Interval time.Duration

	// Timeout is the total budget; once elapsed time reaches it the loop
	// fails with a TimeoutError. Transient read failures count against it.
	Timeout time.Duration

	// ReportEvery rate-limits progress logging. A progress line is emitted
	// at most once per window, or immediately when the observed value
	// changes. Reporting never alters the poll cadence.
	ReportEvery time.Duration

	// MaxReadFailures is how many consecutive read errors are tolerated
	// before the error escalates and aborts the loop. A failing read is
	// otherwise treated as "condition not yet true".
	MaxReadFailures int
}

// DefaultConfig matches the cadence of the ledgers involved: block times of
// seconds, bridge finality of minutes.
func DefaultConfig() Config {
	return Config{
		Interval:        5 * time.Second,
		Timeout:         10 * time.Minute,
		ReportEvery:     30 * time.Second,
		MaxReadFailures: 3,
	}
}

// TimeoutError reports that the condition did not become true in time. It
// carries the last observed value so the operator can judge how close the
// hop got; the underlying transaction may still land out of band.
type TimeoutError struct {
	Label     string
	Elapsed   time.Duration
	LastValue any
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll %q timed out after %s (last value: %v)", e.Label, e.Elapsed, e.LastValue)
}

// Poller runs poll loops against a shared clock and logger.
type Poller struct {
	cfg   Config
	clock clockwork.Clock
	log   logger.Logger
}

// Opt mutates a Poller during construction.
type Opt func(*Poller)

// WithClock substitutes the wall clock, used by tests to drive time.
func WithClock(clock clockwork.Clock) Opt {
	return func(p *Poller) {
		p.clock = clock
	}
}

// WithLogger routes progress reporting through the given logger.
func WithLogger(log logger.Logger) Opt {
	return func(p *Poller) {
		p.log = log
	}
}

// New builds a Poller.
func New(cfg Config, opts ...Opt) *Poller {
	p := &Poller{
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
		log:   logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Until reads immediately and checks satisfied; if true it returns without
// any delay. Otherwise it sleeps the configured interval and repeats until
// satisfied succeeds, the timeout budget runs out (TimeoutError), the
// context is canceled, or reads fail MaxReadFailures times in a row.
func Until[T any](
	ctx context.Context,
	p *Poller,
	label string,
	read func(context.Context) (T, error),
	satisfied func(T) bool,
) (T, error) {
	var zero T
	var last T
	var lastRepr string

	start := p.clock.Now()
	lastReport := start
	failures := 0

	for {
		value, err := read(ctx)
		elapsed := p.clock.Since(start)
		switch {
		case err != nil:
			failures++
			if failures > p.cfg.MaxReadFailures {
				return zero, fmt.Errorf("poll %q: %d consecutive read failures: %w", label, failures, err)
			}
			p.log.Warn("poll read failed, retrying", map[string]any{
				"label":    label,
				"elapsed":  elapsed.String(),
				"failures": failures,
				"error":    err.Error(),
			})
		default:
			failures = 0
			last = value
			if satisfied(value) {
				p.log.Debug("poll condition satisfied", map[string]any{
					"label":   label,
					"elapsed": elapsed.String(),
					"value":   fmt.Sprint(value),
				})
				return value, nil
			}

			repr := fmt.Sprint(value)
			if repr != lastRepr || p.clock.Since(lastReport.Add(p.cfg.ReportEvery)) >= 0 {
				p.log.Info("waiting", map[string]any{
					"label":   label,
					"elapsed": elapsed.String(),
					"value":   repr,
				})
				lastRepr = repr
				lastReport = p.clock.Now()
			}
		}

		if elapsed >= p.cfg.Timeout {
			return zero, &TimeoutError{Label: label, Elapsed: elapsed, LastValue: last}
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("poll %q canceled after %s: %w", label, p.clock.Since(start), ctx.Err())
		case <-p.clock.After(p.cfg.Interval):
		}
	}
}
