// Package metrics exposes process-wide Prometheus collectors for the
// capture and synthesis pipelines.
package metrics

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recognizedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxnote_recognized_chunks_total",
		Help: "Recognized text chunks pushed to the transcript queue",
	})

	recognitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxnote_recognition_errors_total",
		Help: "Recognition failures by kind",
	}, []string{"kind"}) // kind: no_match, service, hardware

	recognitionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxnote_recognition_latency_seconds",
		Help:    "Recognizer round trip per phrase",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	utterances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxnote_utterances_total",
		Help: "Synthesis items by outcome",
	}, []string{"outcome"}) // outcome: played, failed, aborted, init_failed

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voxnote_queue_depth",
		Help: "Items waiting in a hand-off queue",
	}, []string{"queue"}) // queue: transcript, utterance

	workerActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voxnote_worker_active",
		Help: "1 while a worker is listening or speaking",
	}, []string{"worker"}) // worker: capture, synthesis

	droppedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxnote_capture_dropped_chunks_total",
		Help: "Capture callbacks dropped because the reader fell behind",
	})
)

func RecognizedChunk() { recognizedChunks.Inc() }

func RecognitionError(kind string) { recognitionErrors.WithLabelValues(kind).Inc() }

func ObserveRecognition(seconds float64) { recognitionLatency.Observe(seconds) }

func Utterance(outcome string) { utterances.WithLabelValues(outcome).Inc() }

func QueueDepth(queue string, n int) { queueDepth.WithLabelValues(queue).Set(float64(n)) }

func WorkerActive(worker string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	workerActive.WithLabelValues(worker).Set(v)
}

func DroppedChunk() { droppedChunks.Inc() }

// Handler serves /metrics plus the default mux, which carries the
// net/http/pprof endpoints.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return mux
}

// Serve blocks serving Handler on addr.
func Serve(addr string) error {
	return http.ListenAndServe(addr, Handler())
}
