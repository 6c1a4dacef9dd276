package bridgeflow

import (
	"github.com/jonboulle/clockwork"

	"github.com/vitwit/bridgeflow/logger"
	"github.com/vitwit/bridgeflow/metrics"
	"github.com/vitwit/bridgeflow/poll"
)

type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = r
	}
}

// WithClock substitutes the poller's clock, used by tests to drive time.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = poll.WithClock(clock)
	}
}
