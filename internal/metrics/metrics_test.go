package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func getCounterValue(counter prometheus.Counter) float64 {
	var m io_prometheus_client.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getHistogramCount(h prometheus.Histogram) uint64 {
	var m io_prometheus_client.Metric
	if err := h.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordMatchingRun(t *testing.T) {
	runs := MatchingRunsTotal.WithLabelValues("lost", "dispatch")
	before := getCounterValue(runs)
	beforeObs := getHistogramCount(MatchingRunDuration)

	RecordMatchingRun("lost", "dispatch", 15*time.Millisecond, 3)

	if got := getCounterValue(runs) - before; got != 1 {
		t.Errorf("runs delta = %v, want 1", got)
	}
	if got := getHistogramCount(MatchingRunDuration) - beforeObs; got != 1 {
		t.Errorf("duration observations delta = %d, want 1", got)
	}
}

func TestRecordDispatch(t *testing.T) {
	created := NotificationsTotal.WithLabelValues("created")
	emailFailed := EmailsTotal.WithLabelValues("failed")
	beforeCreated := getCounterValue(created)
	beforeFailed := getCounterValue(emailFailed)

	RecordDispatch(2, 0, 1, 1)

	if got := getCounterValue(created) - beforeCreated; got != 2 {
		t.Errorf("created delta = %v, want 2", got)
	}
	if got := getCounterValue(emailFailed) - beforeFailed; got != 1 {
		t.Errorf("email failed delta = %v, want 1", got)
	}
}

func TestRecordIntake(t *testing.T) {
	skipped := IntakeRowsTotal.WithLabelValues("skipped")
	before := getCounterValue(skipped)

	RecordIntake(4, 2, 1)

	if got := getCounterValue(skipped) - before; got != 2 {
		t.Errorf("skipped delta = %v, want 2", got)
	}
}
