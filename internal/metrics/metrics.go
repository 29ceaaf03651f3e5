// Package metrics exposes Prometheus instrumentation for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveSpeakers  prometheus.Gauge
	SpeakerGrants   prometheus.Counter
	RoleConflicts   prometheus.Counter
	SegmentsTotal   *prometheus.CounterVec
	DroppedAudio    prometheus.Counter
	Translations    prometheus.Counter
	TranslationErrs prometheus.Counter
	SynthesisErrs   prometheus.Counter
	SignalsRelayed  *prometheus.CounterVec
}

// New registers all collectors on reg. Tests pass a fresh registry to avoid
// duplicate registration across cases.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSpeakers: f.NewGauge(prometheus.GaugeOpts{
			Name: "babel_active_speakers",
			Help: "Current number of rooms with a live speaker turn",
		}),
		SpeakerGrants: f.NewCounter(prometheus.CounterOpts{
			Name: "babel_speaker_grants_total",
			Help: "Total number of granted speaker requests",
		}),
		RoleConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "babel_role_conflicts_total",
			Help: "Total number of speaker requests rejected because the slot was taken",
		}),
		SegmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "babel_transcript_segments_total",
			Help: "Transcript segments received from the transcription backend",
		}, []string{"kind"}),
		DroppedAudio: f.NewCounter(prometheus.CounterOpts{
			Name: "babel_dropped_audio_chunks_total",
			Help: "Audio chunks dropped because the sender was not the current speaker",
		}),
		Translations: f.NewCounter(prometheus.CounterOpts{
			Name: "babel_translations_total",
			Help: "Completed translate+synthesize jobs",
		}),
		TranslationErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "babel_translation_errors_total",
			Help: "Translate jobs that failed",
		}),
		SynthesisErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "babel_synthesis_errors_total",
			Help: "Synthesis jobs that failed",
		}),
		SignalsRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "babel_signals_relayed_total",
			Help: "WebRTC signaling messages relayed, by kind",
		}, []string{"kind"}),
	}
}
