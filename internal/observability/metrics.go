package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siav_events_received_total",
		Help: "Total de payloads recibidos del broker",
	})
	EventsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siav_events_accepted_total",
		Help: "Total de eventos validados y persistidos",
	})
	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siav_events_rejected_total",
		Help: "Total de eventos rechazados por la validación",
	}, []string{"reason"})
	InfractionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siav_infractions_recorded_total",
		Help: "Total de registros de infracción derivados",
	})
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siav_store_errors_total",
		Help: "Errores del store durante la ingesta (eventos desviados a fallback)",
	})
	FallbackReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siav_stats_fallback_reads_total",
		Help: "Lecturas de /stats servidas desde contadores fallback",
	})
	IngestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "siav_ingest_latency_seconds",
		Help:    "Latencia de procesamiento por mensaje",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveIngestLatency(start time.Time) {
	IngestLatency.Observe(time.Since(start).Seconds())
}

func StartMetricsServer(port string) {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	_ = http.ListenAndServe(":"+port, nil)
}
