package audio

import (
	"fmt"
	"sync/atomic"
)

// ----- Config ----- //

// Config sizes an Engine. Everything is allocated once in NewEngine.
type Config struct {
	SampleRate  int
	Voices      int
	BlockFrames int // frames rendered per VoiceManager block
	QueueSize   int // slots per input queue
	Inputs      int // number of independent producers
	Filter      FilterKind
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		SampleRate:  sampleRate,
		Voices:      defaultVoices,
		BlockFrames: defaultBlockFrames,
		QueueSize:   defaultQueueSize,
		Inputs:      2,
		Filter:      FilterLadder,
	}
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	if c.Voices <= 0 {
		return fmt.Errorf("invalid number of voices %d", c.Voices)
	}
	if c.BlockFrames <= 0 {
		return fmt.Errorf("invalid block size %d", c.BlockFrames)
	}
	if c.QueueSize <= 1 {
		return fmt.Errorf("invalid queue size %d", c.QueueSize)
	}
	if c.Inputs <= 0 {
		return fmt.Errorf("invalid number of inputs %d", c.Inputs)
	}
	return nil
}

// ----- Stats ----- //

// Stats is a snapshot of the engine counters.
type Stats struct {
	Blocks        uint64
	Events        uint64
	DroppedEvents uint64
	NoteOns       uint64
	Steals        uint64
	ActiveVoices  int
}

// ----- Engine ----- //

// Engine ties the event inputs, the shared parameters and the voice pool together.
// Process must only be called from one goroutine; every other method is safe to call
// from any goroutine.
type Engine struct {
	cfg     Config
	library *WaveLibrary
	voices  *VoiceManager
	inputs  []*EventQueue
	params  *params
	applied uint64

	blocks  atomic.Uint64
	events  atomic.Uint64
	noteOns atomic.Uint64
}

// NewEngine ...
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	library := NewWaveLibrary()
	e := &Engine{
		cfg:     cfg,
		library: library,
		voices:  NewVoiceManager(float64(cfg.SampleRate), cfg.Voices, cfg.BlockFrames, library),
		inputs:  make([]*EventQueue, cfg.Inputs),
		params:  newParams(cfg.Filter),
	}
	for i := range e.inputs {
		e.inputs[i] = NewEventQueue(cfg.QueueSize)
	}
	return e, nil
}

// Config ...
func (e *Engine) Config() Config {
	return e.cfg
}

// Library ...
func (e *Engine) Library() *WaveLibrary {
	return e.library
}

// Input returns the queue for producer i. Each queue must have a single producer.
func (e *Engine) Input(i int) *EventQueue {
	return e.inputs[i]
}

// Process renders one block of interleaved int16 stereo into out.
func (e *Engine) Process(out []int16) {
	if v := e.params.version.Load(); v != e.applied {
		e.applied = v
		e.params.applyTo(e.voices)
	}
	for _, q := range e.inputs {
		for {
			p, ok := q.Pop()
			if !ok {
				break
			}
			e.handlePacket(p)
		}
	}
	e.voices.Process(out)
	e.blocks.Add(1)
}

const (
	ccModWheel    = 1
	ccResonance   = 71
	ccCutoff      = 74
	ccAllNotesOff = 123
)

func (e *Engine) handlePacket(p Packet) {
	e.events.Add(1)
	switch p.message() {
	case 0x90:
		if p.data2() == 0 {
			e.voices.NoteOff(p.data1())
			return
		}
		e.noteOns.Add(1)
		e.voices.NoteOn(p.data1(), p.data2())
	case 0x80:
		e.voices.NoteOff(p.data1())
	case 0xB0:
		switch p.data1() {
		case ccModWheel:
			e.voices.SetModWheel(p.data2())
		case ccCutoff:
			e.SetCutoff(float64(p.data2())/127*8000 + 20)
		case ccResonance:
			e.SetResonance(float64(p.data2()) / 127)
		case ccAllNotesOff:
			e.voices.AllNotesOff()
		}
	case 0xE0:
		e.voices.SetPitchBend(p.data1(), p.data2())
	}
}

// VoiceLevel ...
func (e *Engine) VoiceLevel(i int) float64 {
	return e.voices.VoiceLevel(i)
}

// NumVoices ...
func (e *Engine) NumVoices() int {
	return e.voices.NumVoices()
}

// Stats ...
func (e *Engine) Stats() Stats {
	var dropped uint64
	for _, q := range e.inputs {
		dropped += q.Dropped()
	}
	return Stats{
		Blocks:        e.blocks.Load(),
		Events:        e.events.Load(),
		DroppedEvents: dropped,
		NoteOns:       e.noteOns.Load(),
		Steals:        e.voices.Steals(),
		ActiveVoices:  e.voices.ActiveVoices(),
	}
}

// ----- Parameter Setters ----- //

// SetCutoff ...
func (e *Engine) SetCutoff(hz float64) {
	e.params.set(&e.params.cutoff, clamp(hz, minCutoff, maxCutoff))
}

// SetResonance ...
func (e *Engine) SetResonance(r float64) {
	e.params.set(&e.params.resonance, clamp(r, 0, maxResonance))
}

// SetMorph ...
func (e *Engine) SetMorph(morph float64) {
	e.params.set(&e.params.morph, clamp(morph, 0, 1))
}

// SetAttack ...
func (e *Engine) SetAttack(sec float64) {
	e.params.set(&e.params.attack, sec)
}

// SetDecay ...
func (e *Engine) SetDecay(sec float64) {
	e.params.set(&e.params.decay, sec)
}

// SetSustain ...
func (e *Engine) SetSustain(level float64) {
	e.params.set(&e.params.sustain, clamp(level, 0, 1))
}

// SetRelease ...
func (e *Engine) SetRelease(sec float64) {
	e.params.set(&e.params.release, sec)
}

// SetFilter ...
func (e *Engine) SetFilter(kind FilterKind) {
	e.params.filter.Store(int32(kind))
	e.params.changed()
}

// SetWaveform selects table index for slot 0 (A) or 1 (B).
func (e *Engine) SetWaveform(slot int, index int) {
	index = e.library.wrap(index)
	if slot == 0 {
		e.params.waveA.Store(int32(index))
	} else {
		e.params.waveB.Store(int32(index))
	}
	e.params.changed()
}

// CycleWaveform advances slot to the next table not used by the other slot.
func (e *Engine) CycleWaveform(slot int) {
	a, b := e.Waveforms()
	if slot == 0 {
		e.SetWaveform(0, e.library.Next(a, b))
	} else {
		e.SetWaveform(1, e.library.Next(b, a))
	}
}

// Waveforms returns the requested table indexes of slots A and B.
func (e *Engine) Waveforms() (int, int) {
	return int(e.params.waveA.Load()), int(e.params.waveB.Load())
}
