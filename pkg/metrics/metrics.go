// Package metrics exports firmware call counts, EC register traffic and the
// current mode values to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/karloygard/acer-wmi-ext-go/pkg/bus"
	"github.com/karloygard/acer-wmi-ext-go/pkg/ec"
	"github.com/karloygard/acer-wmi-ext-go/pkg/wmi"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "acer_wmi_ext"

type Metrics struct {
	registry *prometheus.Registry

	wmiCalls    *prometheus.CounterVec
	wmiLatency  *prometheus.HistogramVec
	ecOps       *prometheus.CounterVec
	values      *prometheus.GaugeVec
	cmdFailures *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		wmiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "wmi",
				Name:      "calls_total",
				Help:      "Number of WMI method calls, partitioned by interface, method and result.",
			},
			[]string{"guid", "method", "result"},
		),
		wmiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "wmi",
				Name:      "call_duration_seconds",
				Help:      "WMI method call latency in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
			},
			[]string{"guid", "method"},
		),
		ecOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "ec",
				Name:      "operations_total",
				Help:      "Number of embedded controller register operations, partitioned by operation and result.",
			},
			[]string{"op", "result"},
		),
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "mode_value",
				Help:      "Current value of each mode attribute; -1 when unsupported or unknown.",
			},
			[]string{"attribute"},
		),
		cmdFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "command_failures_total",
				Help:      "Number of failed mode changes, partitioned by attribute.",
			},
			[]string{"attribute"},
		),
	}

	m.registry.MustRegister(m.wmiCalls, m.wmiLatency, m.ecOps, m.values, m.cmdFailures)
	return m
}

// Handler serves the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Subscribe keeps the mode gauges in step with bus events
func (m *Metrics) Subscribe(b evbus.Bus) error {
	if err := b.Subscribe(bus.TOPIC_EVENT_VALUE, func(name string, value int) {
		m.values.WithLabelValues(name).Set(float64(value))
	}); err != nil {
		return err
	}
	return b.Subscribe(bus.TOPIC_EVENT_COMMAND_FAILED, func(name string, err error) {
		m.cmdFailures.WithLabelValues(name).Inc()
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type transport struct {
	wmi.Transport
	m *Metrics
}

// InstrumentTransport counts and times every call made through t
func (m *Metrics) InstrumentTransport(t wmi.Transport) wmi.Transport {
	return &transport{t, m}
}

func (t *transport) Invoke(ctx context.Context, guid string, method uint32, request []byte) (wmi.Response, error) {
	start := time.Now()
	res, err := t.Transport.Invoke(ctx, guid, method, request)

	id := strconv.FormatUint(uint64(method), 10)
	t.m.wmiLatency.WithLabelValues(guid, id).Observe(time.Since(start).Seconds())
	t.m.wmiCalls.WithLabelValues(guid, id, result(err)).Inc()

	return res, err
}

type register struct {
	ec.Register
	m *Metrics
}

// InstrumentRegister counts reads and writes made through r
func (m *Metrics) InstrumentRegister(r ec.Register) ec.Register {
	return &register{r, m}
}

func (r *register) Read(offset int) (byte, error) {
	v, err := r.Register.Read(offset)
	r.m.ecOps.WithLabelValues("read", result(err)).Inc()
	return v, err
}

func (r *register) Write(offset int, value byte) error {
	err := r.Register.Write(offset, value)
	r.m.ecOps.WithLabelValues("write", result(err)).Inc()
	return err
}
