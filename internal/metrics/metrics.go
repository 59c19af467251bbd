package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection matrix metrics
	connectorsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingex_connectors_active",
		Help: "Number of live stream connectors by family",
	}, []string{"family"})

	streamsDisabledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingex_streams_disabled_total",
		Help: "Source streams disabled because no connector matched or construction failed",
	}, []string{"reason"})

	// Decode metrics
	framesDecodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingex_frames_decoded_total",
		Help: "Frames decoded per codec family",
	}, []string{"family"})

	framesPassedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingex_frames_passed_total",
		Help: "Frames forwarded to the sink without decoding",
	}, []string{"format"})

	decodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingex_decode_errors_total",
		Help: "Decode failures by codec family and error type",
	}, []string{"family", "error_type"})

	decodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingex_decode_duration_seconds",
		Help:    "Time spent decoding and reformatting one frame",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~0.8s
	}, []string{"family"})

	syncWaitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingex_sync_wait_seconds",
		Help:    "Time spent waiting on a decode worker in Sync",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"family"})

	// Decoder pool metrics
	poolDecoders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingex_decoder_pool_size",
		Help: "Decoders held in the pool",
	}, []string{"family"})

	poolDecodersInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingex_decoder_pool_in_use",
		Help: "Decoders currently lent out",
	}, []string{"family"})

	poolExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingex_decoder_pool_exhausted_total",
		Help: "Acquire calls rejected because the pool hit its limit",
	}, []string{"family"})

	// Player metrics
	framesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingex_frames_read_total",
		Help: "Source frames read by the player",
	})

	framesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingex_frames_completed_total",
		Help: "Frames completed at the sink",
	})

	framesCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingex_frames_cancelled_total",
		Help: "Frames cancelled at the sink after a sync failure",
	})

	sinkBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingex_sink_bytes_total",
		Help: "Bytes delivered to the sink per stream",
	}, []string{"stream"})

	// Debug metrics
	activeGoroutines = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingex_goroutines_active",
		Help: "Number of active goroutines by component",
	}, []string{"component"})
)

// AddConnectorsActive moves the live connector gauge of a family by delta.
func AddConnectorsActive(family string, delta int) {
	connectorsActive.WithLabelValues(family).Add(float64(delta))
}

func IncrementStreamDisabled(reason string) {
	streamsDisabledTotal.WithLabelValues(reason).Inc()
}

// RecordDecode records one successful decode and its latency in seconds.
func RecordDecode(family string, seconds float64) {
	framesDecodedTotal.WithLabelValues(family).Inc()
	decodeDuration.WithLabelValues(family).Observe(seconds)
}

func IncrementFramePassed(format string) {
	framesPassedTotal.WithLabelValues(format).Inc()
}

func IncrementDecodeError(family, errorType string) {
	decodeErrorsTotal.WithLabelValues(family, errorType).Inc()
}

func RecordSyncWait(family string, seconds float64) {
	syncWaitDuration.WithLabelValues(family).Observe(seconds)
}

// SetPoolStats publishes the size and in-use count of one decoder pool.
func SetPoolStats(family string, size, inUse int) {
	poolDecoders.WithLabelValues(family).Set(float64(size))
	poolDecodersInUse.WithLabelValues(family).Set(float64(inUse))
}

func IncrementPoolExhausted(family string) {
	poolExhaustedTotal.WithLabelValues(family).Inc()
}

func IncrementFramesRead() {
	framesReadTotal.Inc()
}

func IncrementFramesCompleted() {
	framesCompletedTotal.Inc()
}

func IncrementFramesCancelled() {
	framesCancelledTotal.Inc()
}

func AddSinkBytes(stream string, n int) {
	sinkBytesTotal.WithLabelValues(stream).Add(float64(n))
}

// IncrementGoroutineCreated increments the active goroutine gauge
func IncrementGoroutineCreated(component string) {
	activeGoroutines.WithLabelValues(component).Inc()
}

// IncrementGoroutineDestroyed decrements the active goroutine gauge
func IncrementGoroutineDestroyed(component string) {
	activeGoroutines.WithLabelValues(component).Dec()
}
