package audio

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "polysynth"

// RegisterMetrics exposes the engine counters. Every collector reads atomics at scrape time.
func RegisterMetrics(reg prometheus.Registerer, e *Engine) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_total",
			Help:      "Number of rendered blocks.",
		}, func() float64 { return float64(e.blocks.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Number of dispatched event packets.",
		}, func() float64 { return float64(e.events.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_events_total",
			Help:      "Number of packets dropped because an input queue was full.",
		}, func() float64 { return float64(e.Stats().DroppedEvents) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "note_ons_total",
			Help:      "Number of note-on events.",
		}, func() float64 { return float64(e.noteOns.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "voice_steals_total",
			Help:      "Number of note-ons that faded out a sounding voice.",
		}, func() float64 { return float64(e.voices.Steals()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_voices",
			Help:      "Number of voices that rendered in the last block.",
		}, func() float64 { return float64(e.voices.ActiveVoices()) }),
	}
	for i := 0; i < e.NumVoices(); i++ {
		i := i
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "voice_level",
			Help:        "Envelope level of a voice.",
			ConstLabels: prometheus.Labels{"voice": strconv.Itoa(i)},
		}, func() float64 { return e.VoiceLevel(i) }))
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return nil
}
