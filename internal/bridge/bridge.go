// Package bridge pumps realtime database changes into the handler manager
// and keeps the session store swept while the process runs.
package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/wirasena/kommobridge/internal/logging"
	"github.com/wirasena/kommobridge/internal/realtime"
)

// EventSource produces change events from the realtime database.
type EventSource interface {
	Subscribe(ctx context.Context, path string, buffer int) (<-chan realtime.Event, error)
}

// Dispatcher routes one event through the registered handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, path string, data any)
	Clear()
}

// SessionSweeper deactivates expired sessions.
type SessionSweeper interface {
	CleanupExpired() (int, error)
}

// Config tunes the event pipeline.
type Config struct {
	QueueSize       int    // event channel capacity between stream and dispatch loop
	CleanupSchedule string // cron spec for the expiry sweep; "" or "off" disables
}

// Bridge owns the pipeline: one producer goroutine inside the stream client,
// one consumer loop here, events handled strictly in arrival order.
type Bridge struct {
	cfg     Config
	source  EventSource
	disp    Dispatcher
	sweeper SessionSweeper
	log     *logging.Logger
}

// New assembles a bridge. The sweeper may be nil when no store sweep is
// wanted.
func New(cfg Config, source EventSource, disp Dispatcher, sweeper SessionSweeper, log *logging.Logger) *Bridge {
	return &Bridge{
		cfg:     cfg,
		source:  source,
		disp:    disp,
		sweeper: sweeper,
		log:     log.Sub("bridge"),
	}
}

// Run subscribes to the change stream and dispatches events until ctx is
// canceled. Failing to establish the stream is the only fatal runtime error;
// handler outcomes and sweep failures are logged and absorbed. On shutdown
// the sweep stops, buffered events are abandoned, and the manager is cleared.
func (b *Bridge) Run(ctx context.Context) error {
	events, err := b.source.Subscribe(ctx, "", b.cfg.QueueSize)
	if err != nil {
		return fmt.Errorf("subscribing to change stream: %w", err)
	}
	defer b.disp.Clear()

	sweep, err := b.startSweep()
	if err != nil {
		return err
	}
	if sweep != nil {
		defer sweep.Stop()
	}

	b.log.Info().Msg("bridge running")
	handled := 0
	for ev := range events {
		if ctx.Err() != nil {
			break
		}
		b.disp.Dispatch(ctx, ev.Path, ev.Data)
		handled++
	}

	b.log.Info().Int("events", handled).Msg("change stream closed, bridge stopped")
	return nil
}

// startSweep schedules the session expiry sweep. A bad cron spec is a
// configuration error and aborts startup.
func (b *Bridge) startSweep() (*cron.Cron, error) {
	spec := strings.TrimSpace(b.cfg.CleanupSchedule)
	if b.sweeper == nil || spec == "" || strings.EqualFold(spec, "off") {
		b.log.Debug().Msg("session sweep disabled")
		return nil, nil
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, b.sweepOnce); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	c.Start()

	b.log.Info().Str("schedule", spec).Msg("session sweep scheduled")
	return c, nil
}

func (b *Bridge) sweepOnce() {
	n, err := b.sweeper.CleanupExpired()
	if err != nil {
		b.log.Warn().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		b.log.Info().Int("expired", n).Msg("session sweep finished")
	}
}
