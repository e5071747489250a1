package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "jobs_enqueued_total", Help: "Jobs inserted into the queue"}, []string{"type"})
	JobsSucceeded    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "jobs_succeeded_total", Help: "Jobs finished successfully"}, []string{"type"})
	JobsRetried      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "jobs_retried_total", Help: "Job attempts that failed and were requeued"}, []string{"type"})
	JobsExhausted    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "jobs_exhausted_total", Help: "Jobs that ran out of attempts"}, []string{"type"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "jobs_queue_depth", Help: "Queued jobs at last worker tick"})
	SchedulerEnqueue = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scheduler_enqueued_total", Help: "Jobs enqueued by the periodic scheduler"}, []string{"type"})
	CreditsCharged   = prometheus.NewCounter(prometheus.CounterOpts{Name: "credits_charged_total", Help: "Credits charged across all shops"})
	CreditsRefunded  = prometheus.NewCounter(prometheus.CounterOpts{Name: "credits_refunded_total", Help: "Credits refunded across all shops"})
)

// Mux serves the metrics endpoint plus a liveness probe, for binaries that
// have no router of their own.
func Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsSucceeded,
			JobsRetried,
			JobsExhausted,
			QueueDepthGauge,
			SchedulerEnqueue,
			CreditsCharged,
			CreditsRefunded,
		)
	})
	return promhttp.Handler()
}
