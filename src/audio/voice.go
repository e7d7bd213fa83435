package audio

// ----- Voice ----- //

type pendingNote struct {
	note     uint8
	velocity uint8
}

// Voice is one oscillator -> envelope -> filter chain. It is free when its envelope is idle
// and nothing is waiting in its pending slot.
type Voice struct {
	notes  *noteTable
	osc    osc
	adsr   adsr
	filter Filter
	ladder *ladderFilter
	svf    *svfFilter
	amp    float64

	// one-slot mailbox, filled while the kill fade runs
	pending    pendingNote
	hasPending bool
}

func newVoice(sampleRate float64, notes *noteTable, a, b *Wavetable) *Voice {
	v := &Voice{
		notes:  notes,
		ladder: newLadderFilter(sampleRate),
		svf:    newSVFFilter(sampleRate),
		amp:    1,
	}
	v.filter = v.ladder
	v.osc.init(sampleRate, a, b)
	v.adsr.init(sampleRate)
	return v
}

// SetFrequency ...
func (v *Voice) SetFrequency(hz float64) {
	v.osc.setFrequency(hz)
}

// SetNote tunes the oscillator from the equal-temperament table.
func (v *Voice) SetNote(note uint8) {
	v.osc.setFrequency(v.notes.freq(note))
}

// SetMorph ...
func (v *Voice) SetMorph(morph float64) {
	v.osc.setMorph(morph)
}

// SetAmplitude ...
func (v *Voice) SetAmplitude(amp float64) {
	v.amp = clamp(amp, 0, 1)
}

// IsActive ...
func (v *Voice) IsActive() bool {
	return v.adsr.active() || v.hasPending
}

// Level is the current envelope output.
func (v *Voice) Level() float64 {
	return v.adsr.value
}

func (v *Voice) setFilter(kind FilterKind) {
	var next Filter = v.ladder
	if kind == FilterSVF {
		next = v.svf
	}
	if next == v.filter {
		return
	}
	next.Reset()
	v.filter = next
}

// start is a note-on on a silent voice.
func (v *Voice) start(note, velocity uint8) {
	v.osc.phase = 0
	v.filter.Reset()
	v.SetNote(note)
	v.SetAmplitude(velocityToAmp(velocity))
	v.adsr.reset()
	v.adsr.gate(true)
}

// retrigger re-attacks from the current level.
func (v *Voice) retrigger(note, velocity uint8) {
	if v.hasPending {
		v.pending = pendingNote{note: note, velocity: velocity}
		return
	}
	if !v.adsr.active() {
		v.start(note, velocity)
		return
	}
	v.SetNote(note)
	v.SetAmplitude(velocityToAmp(velocity))
	v.adsr.gate(true)
}

// steal fades the voice out and parks the note until the fade ends. Last request wins.
func (v *Voice) steal(note, velocity uint8) {
	v.pending = pendingNote{note: note, velocity: velocity}
	v.hasPending = true
	v.adsr.kill()
}

func (v *Voice) release() {
	if v.hasPending {
		// the parked note never sounds
		v.hasPending = false
		return
	}
	v.adsr.gate(false)
}

func (v *Voice) takePending() bool {
	if !v.hasPending {
		return false
	}
	v.hasPending = false
	v.start(v.pending.note, v.pending.velocity)
	return true
}

// GenerateBlock adds len(out)/2 stereo frames into out. out is not cleared.
func (v *Voice) GenerateBlock(out []float64) {
	for i := 0; i+1 < len(out); i += 2 {
		if !v.adsr.active() && !v.takePending() {
			return
		}
		s := v.osc.step() * v.adsr.step() * v.amp
		s = v.filter.Process(s)
		out[i] += s
		out[i+1] += s
	}
	if !v.adsr.active() {
		v.takePending()
	}
}

func velocityToAmp(velocity uint8) float64 {
	return float64(velocity&0x7F) / 127
}
