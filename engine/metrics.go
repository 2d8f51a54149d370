package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cloudx-io/assetauction/metrics"
)

var (
	attrOp   = attribute.Key("op")
	attrKind = attribute.Key("kind")
)

type engineMetrics struct {
	operations  metric.Int64Counter
	bids        metric.Int64Counter
	settlements metric.Int64Counter
	withdrawals metric.Int64Counter
}

func newEngineMetrics() engineMetrics {
	return engineMetrics{
		operations:  metrics.Meter.NewInt64Counter(metrics.Prefix + ".engine_operations_total"),
		bids:        metrics.Meter.NewInt64Counter(metrics.Prefix + ".bids_total"),
		settlements: metrics.Meter.NewInt64Counter(metrics.Prefix + ".settlements_total"),
		withdrawals: metrics.Meter.NewInt64Counter(metrics.Prefix + ".withdrawals_total"),
	}
}

func (m engineMetrics) observe(ctx context.Context, op string, err error) {
	labels := []attribute.KeyValue{attrOp.String(op)}
	if err != nil {
		labels = append(labels, attrKind.String(KindOf(err).String()))
	}
	metrics.MetricIncrCounter(ctx, err, m.operations, labels...)
}
