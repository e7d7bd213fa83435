package audio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPatch(t *testing.T) {
	audio := newTestAudio(t)
	assert.Equal(t, Patch{
		Cutoff:    maxCutoff,
		Resonance: 0,
		Morph:     0,
		Attack:    0.01,
		Decay:     0.1,
		Sustain:   0.7,
		Release:   0.5,
		WaveA:     "sine",
		WaveB:     "saw",
		Filter:    "ladder",
		Volume:    1,
	}, audio.Patch())
}

func TestApplyJSONKeepsMissingFields(t *testing.T) {
	audio := newTestAudio(t)
	require.NoError(t, audio.ApplyJSON([]byte(`{"cutoff": 1000, "waveB": "acid"}`)))
	patch := audio.Patch()
	assert.Equal(t, 1000.0, patch.Cutoff)
	assert.Equal(t, "acid", patch.WaveB)
	assert.Equal(t, 0.7, patch.Sustain)
	assert.Equal(t, "sine", patch.WaveA)
}

func TestApplyJSONRejectsBadPatch(t *testing.T) {
	audio := newTestAudio(t)
	assert.Error(t, audio.ApplyJSON([]byte(`{"cutoff": 1000, "waveA": "organ"}`)))
	assert.Error(t, audio.ApplyJSON([]byte(`{"filter": "comb"}`)))
	assert.Error(t, audio.ApplyJSON([]byte(`{"cutoff": "high"}`)))
	assert.Equal(t, maxCutoff, audio.Patch().Cutoff)
}

func TestApplyPatchReachesVoices(t *testing.T) {
	audio := newTestAudio(t)
	require.NoError(t, audio.ApplyJSON([]byte(`{"cutoff": 300, "filter": "svf", "attack": 0.5}`)))
	_, err := audio.Read(make([]byte, bufferSizeInBytes))
	require.NoError(t, err)
	v := audio.engine.voices.voices[0]
	assert.Equal(t, 300.0, v.svf.cutoff)
	assert.Equal(t, Filter(v.svf), v.filter)
	assert.Equal(t, 0.5, v.adsr.attack)
}

func TestSaveAndLoadPatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lead.json")

	audio := newTestAudio(t)
	require.NoError(t, audio.update([]string{"set", "morph", "0.75"}))
	require.NoError(t, audio.update([]string{"set", "wave_a", "clav"}))
	require.NoError(t, audio.update([]string{"save", path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 0.75, saved["morph"])
	assert.Equal(t, "clav", saved["waveA"])

	other := newTestAudio(t)
	require.NoError(t, other.update([]string{"patch", path}))
	assert.Equal(t, audio.Patch(), other.Patch())

	assert.Error(t, other.LoadPatch(filepath.Join(dir, "missing.json")))
}
