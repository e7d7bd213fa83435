package audio

import (
	"fmt"
	"math"
)

// ----- Filter Kind ----- //

// FilterKind selects the per-voice filter topology.
type FilterKind int

const (
	// FilterLadder is the 4-pole transistor ladder model.
	FilterLadder FilterKind = iota
	// FilterSVF is the 2-pole trapezoidal state-variable filter.
	FilterSVF
)

func (k FilterKind) String() string {
	switch k {
	case FilterSVF:
		return "svf"
	default:
		return "ladder"
	}
}

// ParseFilterKind ...
func ParseFilterKind(s string) (FilterKind, error) {
	switch s {
	case "ladder", "moog":
		return FilterLadder, nil
	case "svf":
		return FilterSVF, nil
	}
	return FilterLadder, fmt.Errorf("unknown filter %q", s)
}

const (
	minCutoff    = 20.0
	maxCutoff    = 12000.0
	maxResonance = 0.99
)

// Filter is a mono lowpass with clamped cutoff (Hz) and resonance (0-0.99).
type Filter interface {
	SetCutoff(hz float64)
	SetResonance(r float64)
	Process(in float64) float64
	Reset()
}

// fastTanh is a Pade approximation, saturating to +-1 beyond |3|.
func fastTanh(x float64) float64 {
	if x < -3 {
		return -1
	}
	if x > 3 {
		return 1
	}
	x2 := x * x
	return x * (27 + x2) / (27 + 9*x2)
}

// ----- Ladder ----- //

const (
	ladderOversampling  = 2
	ladderI2V           = 1.22
	ladderFeedbackScale = 3.2
)

type ladderFilter struct {
	sampleRate float64
	cutoff     float64
	resonance  float64

	k2vg float64
	kacr float64

	stage    [4]float64
	delayed  float64
	feedback float64
}

func newLadderFilter(sampleRate float64) *ladderFilter {
	f := &ladderFilter{sampleRate: sampleRate}
	f.SetCutoff(maxCutoff)
	return f
}

func (f *ladderFilter) SetCutoff(hz float64) {
	f.cutoff = clamp(hz, minCutoff, maxCutoff)
	kw := f.cutoff / f.sampleRate
	kw2 := kw * kw
	// compensates frequency warping near Nyquist
	fcr := 1.8730*kw2*kw + 0.4955*kw2 - 0.6490*kw + 0.9988
	f.kacr = -3.9364*kw2 + 1.8409*kw + 0.9968
	omega := 2 * math.Pi * fcr * f.cutoff / (ladderOversampling * f.sampleRate)
	f.k2vg = ladderI2V * (1 - math.Exp(-omega))
}

func (f *ladderFilter) SetResonance(r float64) {
	f.resonance = clamp(r, 0, maxResonance)
}

func (f *ladderFilter) Process(in float64) float64 {
	const invI2V = 1 / ladderI2V
	k2vg := f.k2vg
	for i := 0; i < ladderOversampling; i++ {
		fb := ladderFeedbackScale * f.resonance * fastTanh(f.feedback*invI2V) * f.kacr
		x := fastTanh((in - fb) * invI2V)
		f.stage[0] += k2vg * (x - f.stage[0])
		f.stage[1] += k2vg * (f.stage[0] - f.stage[1])
		f.stage[2] += k2vg * (f.stage[1] - f.stage[2])
		f.stage[3] += k2vg * (f.stage[2] - f.stage[3])
		// half-sample delay keeps the feedback loop stable
		f.feedback = (f.stage[3] + f.delayed) * 0.5
		f.delayed = f.stage[3]
	}
	return f.stage[3]
}

func (f *ladderFilter) Reset() {
	f.stage = [4]float64{}
	f.delayed = 0
	f.feedback = 0
}

// ----- SVF ----- //

type svfFilter struct {
	sampleRate float64
	cutoff     float64
	resonance  float64

	g          float64
	k          float64
	a1, a2, a3 float64
	s1, s2     float64
}

func newSVFFilter(sampleRate float64) *svfFilter {
	f := &svfFilter{sampleRate: sampleRate, k: 2}
	f.SetCutoff(maxCutoff)
	return f
}

func (f *svfFilter) SetCutoff(hz float64) {
	f.cutoff = clamp(hz, minCutoff, maxCutoff)
	f.g = math.Tan(math.Pi * f.cutoff / f.sampleRate)
	f.updateCoefficients()
}

func (f *svfFilter) SetResonance(r float64) {
	f.resonance = clamp(r, 0, maxResonance)
	f.k = math.Max(0.01, 2*(1-f.resonance))
	f.updateCoefficients()
}

// updateCoefficients solves the algebraic loop D = 1 + g*k + g^2.
func (f *svfFilter) updateCoefficients() {
	den := 1 / (1 + f.g*(f.g+f.k))
	f.a1 = den
	f.a2 = f.g * f.a1
	f.a3 = f.g * f.a2
}

func (f *svfFilter) Process(in float64) float64 {
	v3 := in - f.s2
	v1 := f.a1*f.s1 + f.a2*v3
	v2 := f.s2 + f.a2*f.s1 + f.a3*v3
	f.s1 = fastTanh(2*v1 - f.s1)
	f.s2 = 2*v2 - f.s2
	return v2
}

func (f *svfFilter) Reset() {
	f.s1 = 0
	f.s2 = 0
}
