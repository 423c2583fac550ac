package audit

import (
	"context"
	"log/slog"
	"time"
)

const defaultInboxSize = 256

// Publisher queues events and writes them to the sink from a background
// worker so request handling never waits on the audit path.
type Publisher struct {
	sink   Sink
	inbox  chan Event
	logger *slog.Logger
	clock  func() time.Time
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithClock sets the timestamp source for testability.
func WithClock(clock func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithInboxSize sets the queue capacity.
func WithInboxSize(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

// NewPublisher creates a publisher writing to sink. Run must be started for
// events to drain.
func NewPublisher(sink Sink, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sink:   sink,
		inbox:  make(chan Event, defaultInboxSize),
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Emit queues the event, stamping the timestamp when unset. A full inbox
// drops the event rather than stalling the caller.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"action", event.Action,
			"subject", event.Subject,
		)
	}
}

// Run drains the inbox into the sink until ctx is cancelled. Sink failures
// are logged and do not stop the worker.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case event := <-p.inbox:
			p.append(ctx, event)
		}
	}
}

// drain flushes whatever is still queued at shutdown, with a detached
// context since the run context is already cancelled.
func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-p.inbox:
			p.append(ctx, event)
		default:
			return
		}
	}
}

func (p *Publisher) append(ctx context.Context, event Event) {
	if err := p.sink.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit sink append failed",
			"action", event.Action,
			"error", err,
		)
	}
}
