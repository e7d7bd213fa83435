package audio

import (
	"encoding/json"
	"fmt"
	"os"
)

// Patch is the JSON form of every user-facing parameter.
type Patch struct {
	Cutoff    float64 `json:"cutoff"`
	Resonance float64 `json:"resonance"`
	Morph     float64 `json:"morph"`
	Attack    float64 `json:"attack"`
	Decay     float64 `json:"decay"`
	Sustain   float64 `json:"sustain"`
	Release   float64 `json:"release"`
	WaveA     string  `json:"waveA"`
	WaveB     string  `json:"waveB"`
	Filter    string  `json:"filter"`
	Volume    float64 `json:"volume"`
}

// Patch returns the most recently requested parameter values.
func (a *Audio) Patch() Patch {
	p := a.engine.params
	waveA, waveB := a.engine.Waveforms()
	library := a.engine.Library()
	return Patch{
		Cutoff:    p.cutoff.load(),
		Resonance: p.resonance.load(),
		Morph:     p.morph.load(),
		Attack:    p.attack.load(),
		Decay:     p.decay.load(),
		Sustain:   p.sustain.load(),
		Release:   p.release.load(),
		WaveA:     library.Table(waveA).Name(),
		WaveB:     library.Table(waveB).Name(),
		Filter:    FilterKind(p.filter.Load()).String(),
		Volume:    a.volume.get(),
	}
}

// ApplyPatch validates names first so that a bad patch changes nothing.
func (a *Audio) ApplyPatch(patch Patch) error {
	library := a.engine.Library()
	waveA, err := library.Index(patch.WaveA)
	if err != nil {
		return err
	}
	waveB, err := library.Index(patch.WaveB)
	if err != nil {
		return err
	}
	kind, err := ParseFilterKind(patch.Filter)
	if err != nil {
		return err
	}
	e := a.engine
	e.SetFilter(kind)
	e.SetCutoff(patch.Cutoff)
	e.SetResonance(patch.Resonance)
	e.SetMorph(patch.Morph)
	e.SetAttack(patch.Attack)
	e.SetDecay(patch.Decay)
	e.SetSustain(patch.Sustain)
	e.SetRelease(patch.Release)
	e.SetWaveform(0, waveA)
	e.SetWaveform(1, waveB)
	a.volume.set(patch.Volume)
	a.Changes.Add("patch")
	return nil
}

// ApplyJSON decodes data over the current patch, so missing fields keep their values.
func (a *Audio) ApplyJSON(data []byte) error {
	patch := a.Patch()
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("failed to decode patch: %w", err)
	}
	return a.ApplyPatch(patch)
}

// ToJSON ...
func (a *Audio) ToJSON() ([]byte, error) {
	return json.MarshalIndent(a.Patch(), "", "  ")
}

// LoadPatch ...
func (a *Audio) LoadPatch(path string) error {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read patch: %w", err)
	}
	if err := a.ApplyJSON(bytes); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	a.log.WithField("path", path).Info("loaded patch")
	return nil
}

// SavePatch ...
func (a *Audio) SavePatch(path string) error {
	bytes, err := a.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, bytes, 0644); err != nil {
		return fmt.Errorf("failed to write patch: %w", err)
	}
	return nil
}
