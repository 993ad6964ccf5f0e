// Package monitoring 预测服务的 Prometheus 指标
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"profitrate/ml"
)

const namespace = "profitrate"

// Metrics is owned by the server; each instance has its own registry.
type Metrics struct {
	registry         *prometheus.Registry
	predictions      *prometheus.CounterVec
	predictionErrors *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	modelSlope       prometheus.Gauge
	modelIntercept   prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by transport.",
		}, []string{"transport"}),
		predictionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Rejected prediction requests, by transport and reason.",
		}, []string{"transport", "reason"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		modelSlope: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_slope",
			Help:      "Slope of the loaded model.",
		}),
		modelIntercept: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_intercept",
			Help:      "Intercept of the loaded model.",
		}),
	}
	m.registry.MustRegister(
		m.predictions,
		m.predictionErrors,
		m.requestDuration,
		m.modelSlope,
		m.modelIntercept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObservePrediction(transport string) {
	m.predictions.WithLabelValues(transport).Inc()
}

func (m *Metrics) ObserveError(transport, reason string) {
	m.predictionErrors.WithLabelValues(transport, reason).Inc()
}

func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// SetModel exports the coefficients of the loaded model.
func (m *Metrics) SetModel(model *ml.LinearModel) {
	if model == nil {
		return
	}
	m.modelSlope.Set(model.Slope)
	m.modelIntercept.Set(model.Intercept)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
