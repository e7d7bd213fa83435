package audio

import (
	"math"
)

// ----- LFO ----- //

const (
	vibratoFreq  = 5.0 // Hz
	vibratoDepth = 0.5 // semitones at full mod wheel
)

// lfo is a sine evaluated once per block.
type lfo struct {
	sampleRate float64
	freq       float64
	phase01    float64
	amount     float64 // 0-1
}

func (l *lfo) init(sampleRate float64, freq float64) {
	l.sampleRate = sampleRate
	l.freq = freq
	l.phase01 = 0
	l.amount = 0
}

// step returns the current value in [-amount, amount] and advances by frames.
func (l *lfo) step(frames int) float64 {
	if l.amount == 0 {
		l.phase01 = 0
		return 0
	}
	value := math.Sin(2*math.Pi*l.phase01) * l.amount
	l.phase01 += l.freq * float64(frames) / l.sampleRate
	_, l.phase01 = math.Modf(l.phase01)
	return value
}

// vibratoRatio converts an lfo value to a frequency ratio.
func vibratoRatio(value float64) float64 {
	if value == 0 {
		return 1
	}
	return math.Pow(2, value*vibratoDepth/12)
}
