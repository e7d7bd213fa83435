package audio

import (
	"math"
	"sync/atomic"
)

// ----- Param ----- //

// param is a float64 shared between one writer and the audio goroutine.
type param struct {
	bits atomic.Uint64
}

func (p *param) load() float64 {
	return math.Float64frombits(p.bits.Load())
}

func (p *param) store(v float64) {
	p.bits.Store(math.Float64bits(v))
}

// ----- Params ----- //

// params is written by control goroutines and applied by the audio goroutine at block
// boundaries. Each field is independently valid, so no multi-field atomicity is needed.
type params struct {
	version   atomic.Uint64
	cutoff    param // Hz
	resonance param // 0-0.99
	morph     param // 0-1
	attack    param // sec
	decay     param // sec
	sustain   param // 0-1
	release   param // sec
	waveA     atomic.Int32
	waveB     atomic.Int32
	filter    atomic.Int32
}

func newParams(filter FilterKind) *params {
	p := &params{}
	p.cutoff.store(maxCutoff)
	p.resonance.store(0)
	p.morph.store(0)
	p.attack.store(0.01)
	p.decay.store(0.1)
	p.sustain.store(0.7)
	p.release.store(0.5)
	p.waveA.Store(0)
	p.waveB.Store(1)
	p.filter.Store(int32(filter))
	p.changed()
	return p
}

func (p *params) changed() {
	p.version.Add(1)
}

func (p *params) set(target *param, v float64) {
	target.store(v)
	p.changed()
}

// applyTo pushes every field into m.
func (p *params) applyTo(m *VoiceManager) {
	m.SetFilter(FilterKind(p.filter.Load()))
	m.SetCutoff(p.cutoff.load())
	m.SetResonance(p.resonance.load())
	m.SetMorph(p.morph.load())
	m.SetAttack(p.attack.load())
	m.SetDecay(p.decay.load())
	m.SetSustain(p.sustain.load())
	m.SetRelease(p.release.load())
	m.SetWaveform(0, int(p.waveA.Load()))
	m.SetWaveform(1, int(p.waveB.Load()))
}
