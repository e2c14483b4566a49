package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout счётчики исходов оформления заказа. Nil-приёмник допустим:
// сервис без метрик просто ничего не пишет.
type Checkout struct {
	committed prometheus.Counter
	aborted   *prometheus.CounterVec
	duration  prometheus.Histogram
}

func NewCheckout(reg prometheus.Registerer) *Checkout {
	c := &Checkout{
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lavka",
			Subsystem: "checkout",
			Name:      "committed_total",
			Help:      "Total number of committed checkouts.",
		}),
		aborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lavka",
			Subsystem: "checkout",
			Name:      "aborted_total",
			Help:      "Total number of aborted checkouts by stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lavka",
			Subsystem: "checkout",
			Name:      "duration_seconds",
			Help:      "Checkout transaction duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
	reg.MustRegister(c.committed, c.aborted, c.duration)
	return c
}

func (c *Checkout) Committed(d time.Duration) {
	if c == nil {
		return
	}
	c.committed.Inc()
	c.duration.Observe(d.Seconds())
}

func (c *Checkout) Aborted(stage string) {
	if c == nil {
		return
	}
	c.aborted.WithLabelValues(stage).Inc()
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
