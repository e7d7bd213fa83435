package audio

import (
	"fmt"
	"strconv"
)

func processCommands(audio *Audio, commandCh <-chan []string) {
	for command := range commandCh {
		if err := audio.update(command); err != nil {
			audio.log.WithError(err).WithField("command", command).Warn("failed to apply command")
		}
	}
	audio.log.Debug("processCommands() ended.")
}

// update applies one command. It runs on the command goroutine only, which makes that goroutine
// the single producer of InputCommand.
func (a *Audio) update(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}
	switch command[0] {
	case "note_on":
		if len(command) < 2 {
			return fmt.Errorf("note_on needs a note number")
		}
		note, err := parseUint7(command[1])
		if err != nil {
			return err
		}
		velocity := uint8(100)
		if len(command) > 2 {
			if velocity, err = parseUint7(command[2]); err != nil {
				return err
			}
		}
		return a.push(NewPacket(0x90, note, velocity))
	case "note_off":
		if len(command) < 2 {
			return fmt.Errorf("note_off needs a note number")
		}
		note, err := parseUint7(command[1])
		if err != nil {
			return err
		}
		return a.push(NewPacket(0x80, note, 0))
	case "panic":
		return a.push(NewPacket(0xB0, ccAllNotesOff, 0))
	case "bend":
		if len(command) < 2 {
			return fmt.Errorf("bend needs a value")
		}
		bend, err := strconv.ParseInt(command[1], 10, 32)
		if err != nil {
			return err
		}
		if bend < -8192 || bend > 8191 {
			return fmt.Errorf("bend out of range: %d", bend)
		}
		raw := int(bend) + 8192
		return a.push(NewPacket(0xE0, byte(raw&0x7F), byte(raw>>7)))
	case "mod":
		if len(command) < 2 {
			return fmt.Errorf("mod needs a value")
		}
		value, err := parseUint7(command[1])
		if err != nil {
			return err
		}
		return a.push(NewPacket(0xB0, ccModWheel, value))
	case "set":
		if len(command) != 3 {
			return fmt.Errorf("invalid key-value pair %v", command[1:])
		}
		if err := a.set(command[1], command[2]); err != nil {
			return err
		}
		a.Changes.Add("patch")
	case "wave":
		if len(command) != 3 || command[2] != "next" {
			return fmt.Errorf("usage: wave <0|1> next")
		}
		slot, err := parseSlot(command[1])
		if err != nil {
			return err
		}
		a.engine.CycleWaveform(slot)
		a.Changes.Add("patch")
	case "patch":
		if len(command) != 2 {
			return fmt.Errorf("patch needs a path")
		}
		return a.LoadPatch(command[1])
	case "save":
		if len(command) != 2 {
			return fmt.Errorf("save needs a path")
		}
		return a.SavePatch(command[1])
	default:
		return fmt.Errorf("unknown command %v", command[0])
	}
	return nil
}

func (a *Audio) push(p Packet) error {
	if !a.engine.Input(InputCommand).Push(p) {
		return fmt.Errorf("event queue is full")
	}
	return nil
}

func (a *Audio) set(key string, value string) error {
	switch key {
	case "wave_a", "wave_b":
		index, err := a.engine.Library().Index(value)
		if err != nil {
			return err
		}
		slot := 0
		if key == "wave_b" {
			slot = 1
		}
		a.engine.SetWaveform(slot, index)
		return nil
	case "filter":
		kind, err := ParseFilterKind(value)
		if err != nil {
			return err
		}
		a.engine.SetFilter(kind)
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	switch key {
	case "cutoff":
		a.engine.SetCutoff(v)
	case "resonance":
		a.engine.SetResonance(v)
	case "morph":
		a.engine.SetMorph(v)
	case "attack":
		a.engine.SetAttack(v)
	case "decay":
		a.engine.SetDecay(v)
	case "sustain":
		a.engine.SetSustain(v)
	case "release":
		a.engine.SetRelease(v)
	case "volume":
		a.volume.set(v)
	default:
		return fmt.Errorf("unknown key %v", key)
	}
	return nil
}

func parseUint7(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	if v > 127 {
		return 0, fmt.Errorf("value out of range: %d", v)
	}
	return uint8(v), nil
}

func parseSlot(s string) (int, error) {
	switch s {
	case "0", "a", "A":
		return 0, nil
	case "1", "b", "B":
		return 1, nil
	}
	return 0, fmt.Errorf("invalid wave slot %q", s)
}
