package audio

import (
	"math"
	"sync/atomic"
)

const noteIdle = 255

// ----- Voice Manager ----- //

// VoiceManager owns the voice pool. It is not safe for concurrent use except for VoiceLevel,
// ActiveVoices and Steals, which only read atomics.
type VoiceManager struct {
	sampleRate float64
	library    *WaveLibrary
	notes      *noteTable
	voices     []*Voice
	noteMap    []uint8
	lastUsed   []uint32
	tick       uint32
	mix        []float64 // length: maxFrames * channelNum

	waveA, waveB int
	bendRatio    float64
	vibrato      lfo

	levels []atomic.Uint64
	active atomic.Int32
	steals atomic.Uint64
}

// NewVoiceManager ...
func NewVoiceManager(sampleRate float64, numVoices int, maxFrames int, library *WaveLibrary) *VoiceManager {
	m := &VoiceManager{
		sampleRate: sampleRate,
		library:    library,
		notes:      newNoteTable(),
		voices:     make([]*Voice, numVoices),
		noteMap:    make([]uint8, numVoices),
		lastUsed:   make([]uint32, numVoices),
		mix:        make([]float64, maxFrames*channelNum),
		waveA:      0,
		waveB:      1,
		bendRatio:  1,
		levels:     make([]atomic.Uint64, numVoices),
	}
	m.vibrato.init(sampleRate, vibratoFreq)
	for i := range m.voices {
		m.voices[i] = newVoice(sampleRate, m.notes, library.Table(m.waveA), library.Table(m.waveB))
		m.noteMap[i] = noteIdle
	}
	return m
}

// NumVoices ...
func (m *VoiceManager) NumVoices() int {
	return len(m.voices)
}

// NoteOn assigns note to a voice, stealing the best candidate when the pool is full.
func (m *VoiceManager) NoteOn(note, velocity uint8) {
	note &= 0x7F
	m.tick++

	for i, n := range m.noteMap {
		if n == note {
			m.voices[i].retrigger(note, velocity)
			m.lastUsed[i] = m.tick
			return
		}
	}

	best := m.findVoice()
	v := m.voices[best]
	m.noteMap[best] = note
	m.lastUsed[best] = m.tick
	if v.IsActive() {
		v.steal(note, velocity)
		m.steals.Add(1)
	} else {
		v.start(note, velocity)
	}
}

// findVoice prefers an idle voice, then the oldest releasing voice, then the oldest voice.
func (m *VoiceManager) findVoice() int {
	best := 0
	bestReleasing := false
	oldest := uint32(math.MaxUint32)
	for i, v := range m.voices {
		if !v.IsActive() {
			return i
		}
		releasing := m.noteMap[i] == noteIdle
		if releasing && !bestReleasing {
			bestReleasing = true
			oldest = m.lastUsed[i]
			best = i
		} else if releasing == bestReleasing && m.lastUsed[i] < oldest {
			oldest = m.lastUsed[i]
			best = i
		}
	}
	return best
}

// NoteOff releases every voice holding note.
func (m *VoiceManager) NoteOff(note uint8) {
	note &= 0x7F
	for i, n := range m.noteMap {
		if n == note {
			m.voices[i].release()
			m.noteMap[i] = noteIdle
		}
	}
}

// AllNotesOff sends a note-off for every note number.
func (m *VoiceManager) AllNotesOff() {
	for note := 0; note < 128; note++ {
		m.NoteOff(uint8(note))
	}
}

// Process renders len(out)/2 interleaved stereo frames.
func (m *VoiceManager) Process(out []int16) {
	maxSamples := len(m.mix)
	for start := 0; start < len(out); start += maxSamples {
		end := start + maxSamples
		if end > len(out) {
			end = len(out)
		}
		m.processBlock(out[start:end])
	}
}

func (m *VoiceManager) processBlock(out []int16) {
	frames := len(out) / channelNum
	mix := m.mix[:frames*channelNum]
	for i := range mix {
		mix[i] = 0
	}
	pitch := m.bendRatio * vibratoRatio(m.vibrato.step(frames))
	active := int32(0)
	for i, v := range m.voices {
		if v.IsActive() {
			v.osc.setPitch(pitch)
			v.GenerateBlock(mix)
			active++
		}
		m.levels[i].Store(math.Float64bits(v.Level()))
	}
	m.active.Store(active)

	scale := fullScale / float64(len(m.voices))
	for i, value := range mix {
		out[i] = int16(math.Round(clamp(value*scale, -fullScale, fullScale)))
	}
	for i := len(mix); i < len(out); i++ {
		out[i] = 0
	}
}

// VoiceLevel returns the envelope level of voice i as of the last block, 0 when out of range.
func (m *VoiceManager) VoiceLevel(i int) float64 {
	if i < 0 || i >= len(m.levels) {
		return 0
	}
	return math.Float64frombits(m.levels[i].Load())
}

// ActiveVoices ...
func (m *VoiceManager) ActiveVoices() int {
	return int(m.active.Load())
}

// Steals counts note-ons that had to fade out a sounding voice.
func (m *VoiceManager) Steals() uint64 {
	return m.steals.Load()
}

// ----- Global Parameters ----- //

// SetCutoff ...
func (m *VoiceManager) SetCutoff(hz float64) {
	for _, v := range m.voices {
		v.ladder.SetCutoff(hz)
		v.svf.SetCutoff(hz)
	}
}

// SetResonance ...
func (m *VoiceManager) SetResonance(r float64) {
	for _, v := range m.voices {
		v.ladder.SetResonance(r)
		v.svf.SetResonance(r)
	}
}

// SetFilter switches every voice to kind.
func (m *VoiceManager) SetFilter(kind FilterKind) {
	for _, v := range m.voices {
		v.setFilter(kind)
	}
}

// SetMorph ...
func (m *VoiceManager) SetMorph(morph float64) {
	for _, v := range m.voices {
		v.SetMorph(morph)
	}
}

// SetAttack ...
func (m *VoiceManager) SetAttack(sec float64) {
	for _, v := range m.voices {
		v.adsr.setAttack(sec)
	}
}

// SetDecay ...
func (m *VoiceManager) SetDecay(sec float64) {
	for _, v := range m.voices {
		v.adsr.setDecay(sec)
	}
}

// SetSustain ...
func (m *VoiceManager) SetSustain(level float64) {
	for _, v := range m.voices {
		v.adsr.setSustain(level)
	}
}

// SetRelease ...
func (m *VoiceManager) SetRelease(sec float64) {
	for _, v := range m.voices {
		v.adsr.setRelease(sec)
	}
}

// SetWaveform selects the table for slot 0 (A) or 1 (B).
func (m *VoiceManager) SetWaveform(slot int, index int) {
	wt := m.library.Table(index)
	if slot == 0 {
		m.waveA = m.library.wrap(index)
	} else {
		m.waveB = m.library.wrap(index)
	}
	for _, v := range m.voices {
		if slot == 0 {
			v.osc.a = wt
		} else {
			v.osc.b = wt
		}
	}
}

// Waveforms returns the table indexes of slots A and B.
func (m *VoiceManager) Waveforms() (int, int) {
	return m.waveA, m.waveB
}

// SetPitchBend takes the two 7-bit halves of a pitch bend message.
func (m *VoiceManager) SetPitchBend(lsb, msb uint8) {
	bend := (int(msb&0x7F)<<7 | int(lsb&0x7F)) - 8192
	m.bendRatio = pitchBendRatio(bend)
}

// SetModWheel sets the vibrato depth from a 7-bit value.
func (m *VoiceManager) SetModWheel(value uint8) {
	m.vibrato.amount = float64(value&0x7F) / 127
}
