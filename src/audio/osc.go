package audio

import (
	"math"
)

// ----- Note Table ----- //

type noteTable [128]float64

func newNoteTable() *noteTable {
	t := &noteTable{}
	for n := range t {
		t[n] = baseFreq * math.Pow(2, float64(n-69)/12)
	}
	return t
}

func (t *noteTable) freq(note uint8) float64 {
	return t[note&0x7F]
}

// pitchBendRatio maps a centered 14-bit bend (+-8192) to +-2 semitones.
func pitchBendRatio(bend int) float64 {
	return math.Pow(2, float64(bend)/8192*2/12)
}

// phaseIncrement is round(freq * 2^32 / sampleRate), computed in double precision.
func phaseIncrement(freq float64, sampleRate float64) uint32 {
	freq = clamp(freq, 0, sampleRate/2)
	return uint32(math.Round(freq * (1 << 32) / sampleRate))
}

// ----- OSC ----- //

type osc struct {
	sampleRate float64
	a, b       *Wavetable
	morph      float64
	freq       float64
	pitch      float64 // global bend/vibrato ratio
	phase      uint32
	inc        uint32
}

func (o *osc) init(sampleRate float64, a, b *Wavetable) {
	o.sampleRate = sampleRate
	o.a = a
	o.b = b
	o.morph = 0
	o.pitch = 1
	o.phase = 0
	o.setFrequency(baseFreq)
}

func (o *osc) setFrequency(hz float64) {
	o.freq = math.Max(0, hz)
	o.inc = phaseIncrement(o.freq*o.pitch, o.sampleRate)
}

func (o *osc) setPitch(ratio float64) {
	if ratio == o.pitch {
		return
	}
	o.pitch = ratio
	o.inc = phaseIncrement(o.freq*o.pitch, o.sampleRate)
}

func (o *osc) setMorph(morph float64) {
	o.morph = clamp(morph, 0, 1)
}

func (o *osc) step() float64 {
	value := mix(o.a, o.b, o.morph, o.phase)
	o.phase += o.inc
	return value
}
