package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/diagnosis/concierge/internal/metrics"
)

func TestIncSessionLookup(t *testing.T) {
	before := testutil.ToFloat64(metrics.SessionLookupsTotal.WithLabelValues("expired"))
	metrics.IncSessionLookup("expired")
	after := testutil.ToFloat64(metrics.SessionLookupsTotal.WithLabelValues("expired"))
	if after-before != 1 {
		t.Fatalf("expected +1, got %v", after-before)
	}

	metrics.IncSessionLookup("")
	if testutil.ToFloat64(metrics.SessionLookupsTotal.WithLabelValues("unknown")) < 1 {
		t.Fatal("empty result should count as unknown")
	}
}
