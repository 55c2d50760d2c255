package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTimerMeasuresElapsed(t *testing.T) {
	timer := NewTimer()
	if timer.start.IsZero() {
		t.Fatal("timer start time is zero")
	}

	time.Sleep(50 * time.Millisecond)
	first := timer.Duration()
	if first < 50*time.Millisecond {
		t.Errorf("Duration() = %v, want >= 50ms", first)
	}

	time.Sleep(10 * time.Millisecond)
	second := timer.Duration()
	if second <= first {
		t.Errorf("Duration() should grow between calls: first=%v, second=%v", first, second)
	}
}

func TestTimersAreIndependent(t *testing.T) {
	older := NewTimer()
	time.Sleep(20 * time.Millisecond)
	newer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	if older.Duration() <= newer.Duration() {
		t.Errorf("older timer should have the longer duration: older=%v, newer=%v",
			older.Duration(), newer.Duration())
	}
}

func TestTimerObservesHistogram(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_timer_duration_seconds",
		Help:    "Test histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(histogram)

	if got := testutil.CollectAndCount(histogram); got != 1 {
		t.Errorf("expected 1 observation, got %d", got)
	}
}

func TestTimerObservesHistogramVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_timer_duration_vec_seconds",
			Help:    "Test histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDurationVec(vec, "restore-master")

	if got := testutil.CollectAndCount(vec); got != 1 {
		t.Errorf("expected 1 labeled series, got %d", got)
	}
}
