package journal

import "github.com/prometheus/client_golang/prometheus"

// StageLatency exposes per-stage turn latency as a Prometheus histogram,
// one observation per completed ASR/LLM/TTS/Playback stage.
var StageLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "gradi",
		Subsystem: "turn",
		Name:      "stage_latency_seconds",
		Help:      "Latency of a single turn-controller stage (asr, llm, tts, playback).",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"stage"},
)

// SegmentsDiscarded counts segments the controller discarded without
// playback, by reason (blank_transcript, too_short, low_energy, ...).
var SegmentsDiscarded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gradi",
		Subsystem: "turn",
		Name:      "segments_discarded_total",
		Help:      "Segments discarded before producing a spoken reply, by reason.",
	},
	[]string{"reason"},
)

func init() {
	prometheus.MustRegister(StageLatency, SegmentsDiscarded)
}
