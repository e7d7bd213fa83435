package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func popCommand(t *testing.T, a *Audio) Packet {
	p, ok := a.engine.Input(InputCommand).Pop()
	require.True(t, ok)
	return p
}

func TestUpdateNotes(t *testing.T) {
	audio := newTestAudio(t)
	require.NoError(t, audio.update([]string{"note_on", "64", "90"}))
	p := popCommand(t, audio)
	assert.Equal(t, byte(0x90), p.message())
	assert.Equal(t, byte(64), p.data1())
	assert.Equal(t, byte(90), p.data2())

	require.NoError(t, audio.update([]string{"note_on", "64"}))
	assert.Equal(t, byte(100), popCommand(t, audio).data2())

	require.NoError(t, audio.update([]string{"note_off", "64"}))
	assert.Equal(t, byte(0x80), popCommand(t, audio).message())

	require.NoError(t, audio.update([]string{"panic"}))
	p = popCommand(t, audio)
	assert.Equal(t, byte(0xB0), p.message())
	assert.Equal(t, byte(123), p.data1())
}

func TestUpdateBendAndMod(t *testing.T) {
	audio := newTestAudio(t)
	require.NoError(t, audio.update([]string{"bend", "0"}))
	p := popCommand(t, audio)
	assert.Equal(t, byte(0xE0), p.message())
	assert.Equal(t, byte(0), p.data1())
	assert.Equal(t, byte(0x40), p.data2())

	require.NoError(t, audio.update([]string{"bend", "8191"}))
	p = popCommand(t, audio)
	assert.Equal(t, byte(0x7F), p.data1())
	assert.Equal(t, byte(0x7F), p.data2())

	require.NoError(t, audio.update([]string{"bend", "-8192"}))
	p = popCommand(t, audio)
	assert.Equal(t, byte(0), p.data1())
	assert.Equal(t, byte(0), p.data2())

	require.NoError(t, audio.update([]string{"mod", "127"}))
	p = popCommand(t, audio)
	assert.Equal(t, byte(1), p.data1())
	assert.Equal(t, byte(127), p.data2())
}

func TestUpdateSet(t *testing.T) {
	audio := newTestAudio(t)
	for _, command := range [][]string{
		{"set", "cutoff", "800"},
		{"set", "resonance", "0.5"},
		{"set", "morph", "0.25"},
		{"set", "attack", "0.02"},
		{"set", "decay", "0.3"},
		{"set", "sustain", "0.4"},
		{"set", "release", "1.5"},
		{"set", "volume", "0.8"},
		{"set", "filter", "svf"},
		{"set", "wave_a", "glass"},
		{"set", "wave_b", "choir"},
	} {
		require.NoError(t, audio.update(command), "%v", command)
	}
	assert.Equal(t, Patch{
		Cutoff:    800,
		Resonance: 0.5,
		Morph:     0.25,
		Attack:    0.02,
		Decay:     0.3,
		Sustain:   0.4,
		Release:   1.5,
		WaveA:     "glass",
		WaveB:     "choir",
		Filter:    "svf",
		Volume:    0.8,
	}, audio.Patch())
	assert.True(t, audio.Changes.Has("patch"))
}

func TestUpdateWave(t *testing.T) {
	audio := newTestAudio(t)
	require.NoError(t, audio.update([]string{"wave", "0", "next"}))
	require.NoError(t, audio.update([]string{"wave", "b", "next"}))
	patch := audio.Patch()
	assert.Equal(t, "square", patch.WaveA)
	assert.Equal(t, "rhodes", patch.WaveB)
}

func TestUpdateErrors(t *testing.T) {
	audio := newTestAudio(t)
	for _, command := range [][]string{
		{},
		{"unknown"},
		{"note_on"},
		{"note_on", "128"},
		{"note_on", "60", "x"},
		{"note_off", "-1"},
		{"bend", "9000"},
		{"mod", "200"},
		{"set", "cutoff"},
		{"set", "cutoff", "abc"},
		{"set", "color", "1"},
		{"set", "wave_a", "organ"},
		{"set", "filter", "comb"},
		{"wave", "2", "next"},
		{"wave", "0", "prev"},
		{"patch"},
	} {
		assert.Error(t, audio.update(command), "%v", command)
	}
	assert.Equal(t, 0, audio.engine.Input(InputCommand).Len())
}

func TestUpdateQueueFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 2
	audio, err := NewHeadlessAudio(cfg, newTestLogger())
	require.NoError(t, err)
	defer audio.Close()
	require.NoError(t, audio.update([]string{"note_on", "60"}))
	assert.Error(t, audio.update([]string{"note_on", "61"}))
}
