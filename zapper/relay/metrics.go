package relay

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
)

// Metrics are the relay's Prometheus collectors.
type Metrics struct {
	promises *prometheus.CounterVec
}

// NewMetrics registers the relay collectors on reg. The queue depth gauge reads queue
// on every scrape.
func NewMetrics(reg prometheus.Registerer, queue *runtime.Queue) (*Metrics, error) {
	m := &Metrics{
		promises: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zapper",
			Subsystem: "relay",
			Name:      "promises_total",
			Help:      "Promises delivered by the relay, by sink and outcome.",
		}, []string{"sink", "status"}),
	}
	depth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "zapper",
		Subsystem: "relay",
		Name:      "queue_depth",
		Help:      "Promises waiting in the outbound queue.",
	}, func() float64 {
		return float64(queue.Len())
	})

	for _, c := range []prometheus.Collector{m.promises, depth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(sink string, status Status) {
	if m == nil {
		return
	}
	m.promises.WithLabelValues(sink, string(status)).Inc()
}
