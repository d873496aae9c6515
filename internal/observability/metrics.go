package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// KernelCollector bundles Prometheus metrics for the simulation kernel:
// the event queue, the virtual clock's advance loop, and per-actor
// message flow. All methods are nil-safe so instrumentation stays
// zero-overhead when no collector is configured.
type KernelCollector struct {
	gatherer prometheus.Gatherer

	EventsScheduled  prometheus.Counter
	EventsDispatched prometheus.Counter
	EventsCancelled  prometheus.Counter
	QueueDepth       prometheus.Gauge
	AdvanceDuration  prometheus.Histogram

	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	HandlerFailures  *prometheus.CounterVec
}

// NewKernelCollector registers kernel metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewKernelCollector(reg prometheus.Registerer) (*KernelCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scheduled, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_events_scheduled_total",
		Help: "Total number of events inserted into the virtual clock's queue.",
	}), "sim_events_scheduled_total")
	if err != nil {
		return nil, err
	}
	dispatched, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_events_dispatched_total",
		Help: "Total number of events delivered to registered actors.",
	}), "sim_events_dispatched_total")
	if err != nil {
		return nil, err
	}
	cancelled, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_events_cancelled_total",
		Help: "Total number of events removed from the queue by handle.",
	}), "sim_events_cancelled_total")
	if err != nil {
		return nil, err
	}

	depth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_event_queue_depth",
		Help: "Current number of events waiting in the virtual clock's queue.",
	}), "sim_event_queue_depth")
	if err != nil {
		return nil, err
	}

	advance, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_advance_duration_seconds",
		Help:    "Wall-clock duration of completed Advance calls.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}), "sim_advance_duration_seconds")
	if err != nil {
		return nil, err
	}

	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_actor_messages_sent_total",
		Help: "Messages emitted per actor, labeled by actor name.",
	}, []string{"actor"})
	sent, err = registerCounterVec(reg, sent, "sim_actor_messages_sent_total")
	if err != nil {
		return nil, err
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_actor_messages_received_total",
		Help: "Payloads that reached actor behaviors, labeled by actor name.",
	}, []string{"actor"})
	received, err = registerCounterVec(reg, received, "sim_actor_messages_received_total")
	if err != nil {
		return nil, err
	}
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_actor_handler_failures_total",
		Help: "Handler failures (recovered panics and server hook errors), labeled by actor name.",
	}, []string{"actor"})
	failures, err = registerCounterVec(reg, failures, "sim_actor_handler_failures_total")
	if err != nil {
		return nil, err
	}

	return &KernelCollector{
		gatherer:         gatherer,
		EventsScheduled:  scheduled,
		EventsDispatched: dispatched,
		EventsCancelled:  cancelled,
		QueueDepth:       depth,
		AdvanceDuration:  advance,
		MessagesSent:     sent,
		MessagesReceived: received,
		HandlerFailures:  failures,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *KernelCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes the collector's gatherer over HTTP.
func (c *KernelCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// IncEventsScheduled counts one queue insertion.
func (c *KernelCollector) IncEventsScheduled() {
	if c == nil || c.EventsScheduled == nil {
		return
	}
	c.EventsScheduled.Inc()
}

// IncEventsDispatched counts one delivered event.
func (c *KernelCollector) IncEventsDispatched() {
	if c == nil || c.EventsDispatched == nil {
		return
	}
	c.EventsDispatched.Inc()
}

// IncEventsCancelled counts one cancellation by handle.
func (c *KernelCollector) IncEventsCancelled() {
	if c == nil || c.EventsCancelled == nil {
		return
	}
	c.EventsCancelled.Inc()
}

// SetQueueDepth records the current queue size.
func (c *KernelCollector) SetQueueDepth(depth int) {
	if c == nil || c.QueueDepth == nil {
		return
	}
	c.QueueDepth.Set(float64(depth))
}

// ObserveAdvance records the wall-clock duration of one Advance call.
func (c *KernelCollector) ObserveAdvance(d time.Duration) {
	if c == nil || c.AdvanceDuration == nil {
		return
	}
	c.AdvanceDuration.Observe(d.Seconds())
}

// IncSent counts one outgoing message for the named actor.
func (c *KernelCollector) IncSent(actor string) {
	if c == nil || c.MessagesSent == nil {
		return
	}
	c.MessagesSent.WithLabelValues(actor).Inc()
}

// IncReceived counts one payload reaching the named actor's behavior.
func (c *KernelCollector) IncReceived(actor string) {
	if c == nil || c.MessagesReceived == nil {
		return
	}
	c.MessagesReceived.WithLabelValues(actor).Inc()
}

// IncFailure counts one handler failure (a recovered panic or an error
// returned by a server hook) for the named actor.
func (c *KernelCollector) IncFailure(actor string) {
	if c == nil || c.HandlerFailures == nil {
		return
	}
	c.HandlerFailures.WithLabelValues(actor).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, histogram prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(histogram); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return histogram, nil
}
