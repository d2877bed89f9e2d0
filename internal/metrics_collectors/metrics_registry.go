package metrics_collectors

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "switchbot_bridge"

// Outcome and result label values shared by the bridge counters.
const (
	OutcomeOK        = "ok"
	OutcomeNon200    = "non_200"
	OutcomeTransport = "transport_error"

	ResultPublished = "published"
	ResultRejected  = "rejected"
	ResultDropped   = "dropped"
	ResultFailed    = "failed"
	ResultOK        = "ok"
	ResultError     = "error"
)

// MetricsRegistry owns the bridge's Prometheus registry and counters.
// All methods are safe to call on a nil *MetricsRegistry.
type MetricsRegistry struct {
	registry *prometheus.Registry

	vendorRequests *prometheus.CounterVec
	messages       *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	mqttPublishes  *prometheus.CounterVec
	pollTicks      prometheus.Counter
}

// NewMetricsRegistry creates a MetricsRegistry with the bridge counters plus the
// Go runtime and process collectors registered.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		registry: prometheus.NewRegistry(),
		vendorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_requests_total",
			Help:      "Signed requests sent to the SwitchBot API.",
		}, []string{"method", "outcome"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "MQTT command messages handled by the router.",
		}, []string{"family", "result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries received from SwitchBot.",
		}, []string{"result"}),
		mqttPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publish_total",
			Help:      "MQTT publish attempts.",
		}, []string{"result"}),
		pollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Status polling rounds.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.vendorRequests,
		r.messages,
		r.webhookEvents,
		r.mqttPublishes,
		r.pollTicks,
	)
	return r
}

// Registry exposes the underlying Prometheus registry.
func (r *MetricsRegistry) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *MetricsRegistry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// VendorRequest counts one vendor call by HTTP method and outcome.
func (r *MetricsRegistry) VendorRequest(method, outcome string) {
	if r == nil {
		return
	}
	r.vendorRequests.WithLabelValues(method, outcome).Inc()
}

// Message counts one routed MQTT message by topic family and result.
func (r *MetricsRegistry) Message(family, result string) {
	if r == nil {
		return
	}
	r.messages.WithLabelValues(family, result).Inc()
}

// WebhookEvent counts one webhook delivery by result.
func (r *MetricsRegistry) WebhookEvent(result string) {
	if r == nil {
		return
	}
	r.webhookEvents.WithLabelValues(result).Inc()
}

// MQTTPublish counts one publish attempt by result.
func (r *MetricsRegistry) MQTTPublish(result string) {
	if r == nil {
		return
	}
	r.mqttPublishes.WithLabelValues(result).Inc()
}

// PollTick counts one polling round.
func (r *MetricsRegistry) PollTick() {
	if r == nil {
		return
	}
	r.pollTicks.Inc()
}
