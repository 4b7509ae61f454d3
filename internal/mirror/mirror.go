// Package mirror copies the in-memory auction to the store in the
// background. Writes are coalesced over a short window; the store is a
// best-effort copy and the engine stays authoritative.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/cricket-auction/internal/event"
	"github.com/jensholdgaard/cricket-auction/internal/store"
	"github.com/jensholdgaard/cricket-auction/internal/telemetry"
)

// Source provides the documents and events to persist.
type Source interface {
	Document() store.Snapshot
	PendingEvents() []event.Event
	RequeueEvents(events []event.Event)
}

// Mirror is a debounced writer from a Source to a Gateway and event store.
type Mirror struct {
	source  Source
	gateway store.Gateway
	events  event.Store
	window  time.Duration
	metrics *telemetry.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	notify  chan struct{}
	flushMu sync.Mutex
}

// New creates a Mirror that waits window after the first notification
// before writing.
func New(src Source, gw store.Gateway, es event.Store, window time.Duration, metrics *telemetry.Metrics, logger *slog.Logger, tp trace.TracerProvider) *Mirror {
	return &Mirror{
		source:  src,
		gateway: gw,
		events:  es,
		window:  window,
		metrics: metrics,
		logger:  logger,
		tracer:  tp.Tracer("github.com/jensholdgaard/cricket-auction/internal/mirror"),
		notify:  make(chan struct{}, 1),
	}
}

// Notify marks the state dirty. It never blocks.
func (m *Mirror) Notify() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Run writes after each coalescing window until ctx is cancelled. A
// failed write is retried on the next window. Callers should Flush after
// Run returns.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.notify:
		}

		timer := time.NewTimer(m.window)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		// Everything notified so far is covered by this write.
		select {
		case <-m.notify:
		default:
		}

		if err := m.Flush(ctx); err != nil {
			m.logger.WarnContext(ctx, "mirror write failed, retrying next window",
				slog.String("error", err.Error()),
			)
			m.Notify()
		}
	}
}

// Flush writes the current documents and pending events immediately.
func (m *Mirror) Flush(ctx context.Context) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	ctx, span := m.tracer.Start(ctx, "Mirror.Flush")
	defer span.End()

	doc := m.source.Document()
	span.SetAttributes(
		attribute.Int("teams", len(doc.Teams)),
		attribute.Int("players", len(doc.Players)),
	)
	if err := m.gateway.SaveSnapshot(ctx, doc.Teams, doc.Players); err != nil {
		return m.fail(ctx, span, fmt.Errorf("saving snapshot: %w", err))
	}

	if pending := m.source.PendingEvents(); len(pending) > 0 {
		if err := m.events.Append(ctx, pending...); err != nil {
			m.source.RequeueEvents(pending)
			return m.fail(ctx, span, fmt.Errorf("appending %d events: %w", len(pending), err))
		}
		span.SetAttributes(attribute.Int("events", len(pending)))
	}

	m.metrics.Flushes.Add(ctx, 1)
	telemetry.LogWithTrace(ctx, m.logger).DebugContext(ctx, "mirror flushed",
		slog.Int("teams", len(doc.Teams)),
		slog.Int("players", len(doc.Players)),
	)
	return nil
}

func (m *Mirror) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	m.metrics.FlushErrors.Add(ctx, 1)
	return err
}
