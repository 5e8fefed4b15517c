package metrics

import (
	"fmt"
	"io"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
)

// Rejection reasons used as the reason label of the rejected counter
const (
	ReasonOverflow  = "overflow"
	ReasonExhausted = "exhausted"
	ReasonStopped   = "stopped"
)

// GaugeSource provides the values of the listener gauges. It is queried on
// every scrape.
type GaugeSource interface {
	Live() int64
	PoolAllocated() int
	PoolAvailable() int
	WorkersBusy() int64
	TasksPending() int64
}

// ListenerMetrics holds all metrics of one listener
type ListenerMetrics struct {
	set *vm.Set

	Accepted          *vm.Counter
	RejectedOverflow  *vm.Counter
	RejectedExhausted *vm.Counter
	RejectedStopped   *vm.Counter
	AcceptErrors      *vm.Counter
	BytesRead         *vm.Counter
	HandleDuration    *vm.Histogram
}

// NewListenerMetrics creates the metrics of the listener with the given name.
// The name becomes the listener label of every metric.
func NewListenerMetrics(name string, src GaugeSource) *ListenerMetrics {
	set := vm.NewSet()
	label := func(metric string, extra ...string) string {
		if len(extra) == 2 {
			return fmt.Sprintf(`%s{listener=%q,%s=%q}`, metric, name, extra[0], extra[1])
		}
		return fmt.Sprintf(`%s{listener=%q}`, metric, name)
	}

	m := &ListenerMetrics{
		set:               set,
		Accepted:          set.NewCounter(label("giggle_connections_accepted_total")),
		RejectedOverflow:  set.NewCounter(label("giggle_connections_rejected_total", "reason", ReasonOverflow)),
		RejectedExhausted: set.NewCounter(label("giggle_connections_rejected_total", "reason", ReasonExhausted)),
		RejectedStopped:   set.NewCounter(label("giggle_connections_rejected_total", "reason", ReasonStopped)),
		AcceptErrors:      set.NewCounter(label("giggle_accept_errors_total")),
		BytesRead:         set.NewCounter(label("giggle_bytes_read_total")),
		HandleDuration:    set.NewHistogram(label("giggle_connection_duration_seconds")),
	}

	if src != nil {
		set.NewGauge(label("giggle_connections_live"), func() float64 { return float64(src.Live()) })
		set.NewGauge(label("giggle_blocks_allocated"), func() float64 { return float64(src.PoolAllocated()) })
		set.NewGauge(label("giggle_blocks_available"), func() float64 { return float64(src.PoolAvailable()) })
		set.NewGauge(label("giggle_workers_busy"), func() float64 { return float64(src.WorkersBusy()) })
		set.NewGauge(label("giggle_tasks_pending"), func() float64 { return float64(src.TasksPending()) })
	}
	return m
}

// Rejected returns the total number of rejected connections
func (m *ListenerMetrics) Rejected() uint64 {
	return m.RejectedOverflow.Get() + m.RejectedExhausted.Get() + m.RejectedStopped.Get()
}

// ObserveHandled records the duration of a finished connection handler
func (m *ListenerMetrics) ObserveHandled(start time.Time) {
	m.HandleDuration.Update(time.Since(start).Seconds())
}

// WritePrometheus writes all listener metrics in Prometheus text format
func (m *ListenerMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// WriteProcessMetrics writes the go runtime and process metrics
func WriteProcessMetrics(w io.Writer) {
	vm.WriteProcessMetrics(w)
}
