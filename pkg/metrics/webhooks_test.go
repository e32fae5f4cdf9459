package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWebhookMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWebhookMetrics(reg)

	metrics.IncEvent("application_fee.created", OutcomeProcessed)
	metrics.IncEvent("application_fee.created", OutcomeProcessed)
	metrics.IncEvent("application_fee.created", OutcomeFailed)
	metrics.ObserveDuration("application_fee.created", 120*time.Millisecond)

	processed := testutil.ToFloat64(metrics.events.WithLabelValues("application_fee.created", OutcomeProcessed))
	if processed != 2 {
		t.Fatalf("expected processed=2, got %f", processed)
	}
	failed := testutil.ToFloat64(metrics.events.WithLabelValues("application_fee.created", OutcomeFailed))
	if failed != 1 {
		t.Fatalf("expected failed=1, got %f", failed)
	}

	count, err := testutil.GatherAndCount(reg, "webhook_event_duration_seconds")
	if err != nil {
		t.Fatalf("gather histogram: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one histogram series, got %d", count)
	}
}

func TestWebhookMetricsNilSafe(t *testing.T) {
	var metrics *WebhookMetrics
	metrics.IncEvent("payment_intent.succeeded", OutcomeSkipped)
	metrics.ObserveDuration("payment_intent.succeeded", time.Second)

	empty := NewWebhookMetrics(nil)
	empty.IncEvent("", "")
	empty.ObserveDuration("", 0)
}
