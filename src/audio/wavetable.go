package audio

import (
	"fmt"
	"math"
)

const (
	wavetableBits = 12
	wavetableSize = 1 << wavetableBits
	wavetableMask = wavetableSize - 1
	fractionBits  = 32 - wavetableBits
	fractionScale = 1.0 / (1 << fractionBits)
)

// ----- Wavetable ----- //

// Wavetable is one single-cycle waveform normalized to [-1,1].
type Wavetable struct {
	name   string
	values [wavetableSize]float64
}

// Name ...
func (wt *Wavetable) Name() string {
	return wt.name
}

func (wt *Wavetable) generate(phaseToValue func(phase float64) float64) {
	for i := range wt.values {
		phase := 2.0 * math.Pi / wavetableSize * float64(i)
		wt.values[i] = phaseToValue(phase)
	}
	wt.normalize()
}

func (wt *Wavetable) normalize() {
	peak := 0.0
	for _, v := range wt.values {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		return
	}
	for i := range wt.values {
		wt.values[i] /= peak
	}
}

// at interpolates linearly; the top 12 bits of phase select the index.
func (wt *Wavetable) at(phase uint32) float64 {
	index := phase >> fractionBits
	frac := float64(phase&(1<<fractionBits-1)) * fractionScale
	v0 := wt.values[index]
	v1 := wt.values[(index+1)&wavetableMask]
	return v0 + (v1-v0)*frac
}

func partialSum(first, last, step int, calcPartialAtPhase func(n int, phase float64) float64) func(phase float64) float64 {
	return func(phase float64) float64 {
		value := 0.0
		for n := first; n <= last; n += step {
			value += calcPartialAtPhase(n, phase)
		}
		return value
	}
}

func calcPartialSawAtPhase(n int, phase float64) float64 {
	x := float64(n)
	return math.Sin(x*phase) / x
}

// ----- Wave Library ----- //

// WaveLibrary is the fixed set of timbres selectable for the A and B slots.
type WaveLibrary struct {
	tables []*Wavetable
}

// NewWaveLibrary generates every table once.
func NewWaveLibrary() *WaveLibrary {
	l := &WaveLibrary{}
	l.add("sine", math.Sin)
	l.add("saw", partialSum(1, 29, 1, calcPartialSawAtPhase))
	l.add("square", partialSum(1, 39, 2, calcPartialSawAtPhase))
	l.add("rhodes", func(phase float64) float64 {
		return math.Sin(phase) + 0.4*math.Sin(2*phase) + 0.2*math.Sin(8.2*phase)
	})
	// 10% pulse
	l.add("clav", partialSum(1, 29, 1, func(n int, phase float64) float64 {
		x := float64(n)
		return math.Sin(x*math.Pi*0.1) / x * math.Cos(x*phase)
	}))
	// formant peak around the 3rd harmonic
	l.add("choir", partialSum(1, 14, 1, func(n int, phase float64) float64 {
		d := float64(n - 3)
		return math.Exp(-d*d/2) * math.Sin(float64(n)*phase)
	}))
	l.add("acid", func(phase float64) float64 {
		t := phase / (2 * math.Pi)
		return 0.7*(1-t) + 0.5*math.Exp(-8*t)*math.Sin(math.Pi*t)
	})
	// inharmonic partials
	l.add("glass", func(phase float64) float64 {
		return math.Sin(phase) + 0.5*math.Sin(2.76*phase) + 0.3*math.Sin(5.4*phase) + 0.2*math.Sin(8.1*phase)
	})
	return l
}

func (l *WaveLibrary) add(name string, phaseToValue func(phase float64) float64) {
	wt := &Wavetable{name: name}
	wt.generate(phaseToValue)
	l.tables = append(l.tables, wt)
}

// Len ...
func (l *WaveLibrary) Len() int {
	return len(l.tables)
}

// Table returns the table at index, wrapped into range.
func (l *WaveLibrary) Table(index int) *Wavetable {
	return l.tables[l.wrap(index)]
}

func (l *WaveLibrary) wrap(index int) int {
	n := len(l.tables)
	return ((index % n) + n) % n
}

// Names ...
func (l *WaveLibrary) Names() []string {
	names := make([]string, len(l.tables))
	for i, wt := range l.tables {
		names[i] = wt.name
	}
	return names
}

// Index looks a table up by name.
func (l *WaveLibrary) Index(name string) (int, error) {
	for i, wt := range l.tables {
		if wt.name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown waveform %q", name)
}

// Next returns the table after current, skipping the one held by the other slot.
func (l *WaveLibrary) Next(current, other int) int {
	next := l.wrap(current)
	for {
		next = l.wrap(next + 1)
		if next != l.wrap(other) || len(l.tables) < 2 {
			return next
		}
	}
}

// Preview fills out with one cycle of a and b cross-faded by morph.
func (l *WaveLibrary) Preview(out []float64, a, b int, morph float64) {
	if len(out) == 0 {
		return
	}
	ta, tb := l.Table(a), l.Table(b)
	morph = clamp(morph, 0, 1)
	step := uint32((uint64(1) << 32) / uint64(len(out)))
	var phase uint32
	for i := range out {
		out[i] = mix(ta, tb, morph, phase)
		phase += step
	}
}

// mix reads a and b at phase and cross-fades them. The unused side is skipped at 0 and 1.
func mix(a, b *Wavetable, morph float64, phase uint32) float64 {
	switch morph {
	case 0:
		return a.at(phase)
	case 1:
		return b.at(phase)
	}
	va := a.at(phase)
	return va + (b.at(phase)-va)*morph
}
