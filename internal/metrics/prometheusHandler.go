package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start a worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var transportAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "transport_attempts_total",
	Help: "Scrape transport attempts labelled by strategy and outcome",
}, []string{"transport", "outcome"})

var completionBackendCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "completion_backend_calls_total",
	Help: "Completion calls labelled by backend and outcome",
}, []string{"backend", "outcome"})

var batchURLOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "batch_url_outcomes_total",
	Help: "Per-URL terminal outcomes inside batch scrape jobs",
}, []string{"outcome"})

var chunksEmbedded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "knowledge_chunks_total",
	Help: "Knowledge chunks by embedding outcome",
}, []string{"outcome"})

var leadCandidates = promauto.NewCounter(prometheus.CounterOpts{
	Name: "lead_candidates_total",
	Help: "Lead candidates emitted from conversation turns",
})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func CountTransportAttempt(transport string, outcome string) {
	transportAttempts.WithLabelValues(transport, outcome).Inc()
}

func CountCompletionBackendCall(backend string, outcome string) {
	completionBackendCalls.WithLabelValues(backend, outcome).Inc()
}

func CountBatchURLOutcome(success bool) {
	if success {
		batchURLOutcomes.WithLabelValues("success").Inc()
		return
	}
	batchURLOutcomes.WithLabelValues("failure").Inc()
}

func CountChunks(succeeded int, failed int) {
	chunksEmbedded.WithLabelValues("embedded").Add(float64(succeeded))
	chunksEmbedded.WithLabelValues("failed").Add(float64(failed))
}

func CountLeadCandidate() {
	leadCandidates.Inc()
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_request_duration_seconds",
	Help:    "Total time spent processing a job.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
