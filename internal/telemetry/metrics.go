package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/jensholdgaard/cricket-auction"

// Metrics holds the instruments recorded by the auction and its mirror.
type Metrics struct {
	Bids        metric.Int64Counter
	Sales       metric.Int64Counter
	SaleAmount  metric.Int64Histogram
	Rejections  metric.Int64Counter
	Flushes     metric.Int64Counter
	FlushErrors metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.Bids, err = meter.Int64Counter("auction.bids",
		metric.WithDescription("Accepted bids")); err != nil {
		return nil, fmt.Errorf("creating auction.bids: %w", err)
	}
	if m.Sales, err = meter.Int64Counter("auction.sales",
		metric.WithDescription("Players sold")); err != nil {
		return nil, fmt.Errorf("creating auction.sales: %w", err)
	}
	if m.SaleAmount, err = meter.Int64Histogram("auction.sale_amount",
		metric.WithDescription("Winning bid per sale"),
		metric.WithUnit("{rupee}")); err != nil {
		return nil, fmt.Errorf("creating auction.sale_amount: %w", err)
	}
	if m.Rejections, err = meter.Int64Counter("auction.rejections",
		metric.WithDescription("Commands rejected by the engine")); err != nil {
		return nil, fmt.Errorf("creating auction.rejections: %w", err)
	}
	if m.Flushes, err = meter.Int64Counter("mirror.flushes",
		metric.WithDescription("Snapshots written to the store")); err != nil {
		return nil, fmt.Errorf("creating mirror.flushes: %w", err)
	}
	if m.FlushErrors, err = meter.Int64Counter("mirror.flush_errors",
		metric.WithDescription("Failed snapshot writes")); err != nil {
		return nil, fmt.Errorf("creating mirror.flush_errors: %w", err)
	}
	return &m, nil
}
