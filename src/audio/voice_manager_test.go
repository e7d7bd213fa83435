package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVoiceManager() *VoiceManager {
	return NewVoiceManager(48000, 8, 256, NewWaveLibrary())
}

func render(m *VoiceManager, frames int) []int16 {
	out := make([]int16, frames*channelNum)
	m.Process(out)
	return out
}

func voiceFor(m *VoiceManager, note uint8) int {
	for i, n := range m.noteMap {
		if n == note {
			return i
		}
	}
	return -1
}

func TestNoteOnUsesFreeVoices(t *testing.T) {
	m := newTestVoiceManager()
	for i := 0; i < 8; i++ {
		m.NoteOn(uint8(60+i), 100)
	}
	seen := map[int]bool{}
	for i := 0; i < 8; i++ {
		v := voiceFor(m, uint8(60+i))
		require.NotEqual(t, -1, v)
		seen[v] = true
		assert.Equal(t, phaseAttack, m.voices[v].adsr.phase)
	}
	assert.Len(t, seen, 8)
	assert.Equal(t, uint64(0), m.Steals())
}

func TestNoteOnStealsOldest(t *testing.T) {
	m := newTestVoiceManager()
	for i := 0; i < 8; i++ {
		m.NoteOn(uint8(60+i), 100)
	}
	render(m, 256)
	oldest := voiceFor(m, 60)

	m.NoteOn(72, 90)
	assert.Equal(t, uint64(1), m.Steals())
	assert.Equal(t, -1, voiceFor(m, 60))
	assert.Equal(t, oldest, voiceFor(m, 72))
	v := m.voices[oldest]
	assert.Equal(t, phaseKill, v.adsr.phase)
	assert.True(t, v.hasPending)
	assert.True(t, v.IsActive())

	// the kill fade is 48 samples
	render(m, 64)
	assert.False(t, v.hasPending)
	assert.Equal(t, phaseAttack, v.adsr.phase)
	assert.Equal(t, m.notes.freq(72), v.osc.freq)
	assert.InDelta(t, 90.0/127, v.amp, 1e-12)
}

func TestNoteOnPrefersReleasingVoice(t *testing.T) {
	m := newTestVoiceManager()
	for i := 0; i < 8; i++ {
		m.NoteOn(uint8(60+i), 100)
	}
	released := voiceFor(m, 63)
	m.NoteOff(63)
	require.Equal(t, phaseRelease, m.voices[released].adsr.phase)

	m.NoteOn(80, 100)
	assert.Equal(t, released, voiceFor(m, 80))
	assert.NotEqual(t, -1, voiceFor(m, 60))
}

func TestNoteOnSameNoteRetriggers(t *testing.T) {
	m := newTestVoiceManager()
	m.NoteOn(60, 100)
	v := voiceFor(m, 60)
	render(m, 256)
	m.NoteOn(60, 50)
	assert.Equal(t, v, voiceFor(m, 60))
	active := 0
	for _, voice := range m.voices {
		if voice.IsActive() {
			active++
		}
	}
	assert.Equal(t, 1, active)
	assert.Equal(t, uint64(0), m.Steals())
	assert.InDelta(t, 50.0/127, m.voices[v].amp, 1e-12)
}

func TestNoteOffDropsParkedNote(t *testing.T) {
	m := newTestVoiceManager()
	for i := 0; i < 8; i++ {
		m.NoteOn(uint8(60+i), 100)
	}
	m.NoteOn(72, 100)
	v := m.voices[voiceFor(m, 72)]
	m.NoteOff(72)
	assert.False(t, v.hasPending)
	render(m, 64)
	assert.False(t, v.IsActive())
}

func TestAllNotesOff(t *testing.T) {
	m := newTestVoiceManager()
	for i := 0; i < 8; i++ {
		m.NoteOn(uint8(40+i*5), 100)
	}
	render(m, 256)
	m.AllNotesOff()
	for i, v := range m.voices {
		assert.Equal(t, uint8(noteIdle), m.noteMap[i])
		assert.NotContains(t, []int{phaseAttack, phaseDecay, phaseSustain}, v.adsr.phase)
	}
}

func TestSilentWhenIdle(t *testing.T) {
	m := newTestVoiceManager()
	out := render(m, 300)
	for _, s := range out {
		require.Equal(t, int16(0), s)
	}
	assert.Equal(t, 0, m.ActiveVoices())
}

func TestMixStaysInRange(t *testing.T) {
	m := newTestVoiceManager()
	m.SetAttack(0.001)
	m.SetSustain(1)
	m.SetCutoff(maxCutoff)
	m.SetWaveform(0, 2)
	for i := 0; i < 8; i++ {
		m.NoteOn(uint8(30+i*12), 127)
	}
	peak := 0
	for block := 0; block < 40; block++ {
		for _, s := range render(m, 256) {
			require.GreaterOrEqual(t, s, int16(-32767))
			if int(math.Abs(float64(s))) > peak {
				peak = int(math.Abs(float64(s)))
			}
		}
	}
	assert.Greater(t, peak, 1000)
	assert.Equal(t, 8, m.ActiveVoices())
}

func TestStereoChannelsMatch(t *testing.T) {
	m := newTestVoiceManager()
	m.NoteOn(69, 127)
	out := render(m, 1000)
	for i := 0; i < len(out); i += 2 {
		require.Equal(t, out[i], out[i+1])
	}
}

func TestVoiceLevels(t *testing.T) {
	m := newTestVoiceManager()
	m.NoteOn(60, 100)
	render(m, 256)
	v := voiceFor(m, 60)
	assert.Greater(t, m.VoiceLevel(v), 0.0)
	assert.Equal(t, 0.0, m.VoiceLevel(-1))
	assert.Equal(t, 0.0, m.VoiceLevel(8))
	assert.Equal(t, 1, m.ActiveVoices())
}

func TestPitchBend(t *testing.T) {
	m := newTestVoiceManager()
	m.SetPitchBend(0, 0x40)
	assert.Equal(t, 1.0, m.bendRatio)
	m.SetPitchBend(0x7F, 0x7F)
	assert.InDelta(t, math.Pow(2, 8191.0/8192*2/12), m.bendRatio, 1e-12)
	m.SetPitchBend(0, 0)
	assert.InDelta(t, math.Pow(2, -2.0/12), m.bendRatio, 1e-12)

	m.NoteOn(69, 100)
	render(m, 16)
	v := m.voices[voiceFor(m, 69)]
	assert.Equal(t, phaseIncrement(440*m.bendRatio, 48000), v.osc.inc)
}

func TestModWheelVibrato(t *testing.T) {
	m := newTestVoiceManager()
	m.SetModWheel(127)
	assert.Equal(t, 1.0, m.vibrato.amount)
	m.NoteOn(69, 100)
	v := m.voices[voiceFor(m, 69)]
	lo, hi := math.MaxFloat64, 0.0
	for i := 0; i < 100; i++ {
		render(m, 256)
		lo = math.Min(lo, v.osc.pitch)
		hi = math.Max(hi, v.osc.pitch)
	}
	assert.InDelta(t, math.Pow(2, 0.5/12), hi, 1e-3)
	assert.InDelta(t, math.Pow(2, -0.5/12), lo, 1e-3)

	m.SetModWheel(0)
	render(m, 256)
	assert.Equal(t, 1.0, v.osc.pitch)
}

func TestSetWaveformAndFilter(t *testing.T) {
	m := newTestVoiceManager()
	m.SetWaveform(1, 9)
	a, b := m.Waveforms()
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	for _, v := range m.voices {
		assert.Same(t, m.library.Table(1), v.osc.b)
	}
	m.SetFilter(FilterSVF)
	for _, v := range m.voices {
		assert.Equal(t, Filter(v.svf), v.filter)
	}
}
