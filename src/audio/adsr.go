package audio

import (
	"math"
)

// ----- ADSR ----- //

const (
	phaseIdle = iota
	phaseAttack
	phaseDecay
	phaseSustain
	phaseRelease
	phaseKill
)

// ln(1000)
const t60 = 6.907755

const (
	minEnvelopeTime = 0.001
	killTime        = 0.001
	releaseTarget   = -0.01
	decayEpsilon    = 0.0001
	attackEpsilon   = 1e-9
)

/*
  1 +     x
    |    / \
    |   /   \
  s +  /     x------x
    | /              \
    |/                \
  0 +-----+--+------+---\--
    |a    |d |      |r   -0.01
*/
type adsr struct {
	sampleRate float64
	phase      int
	value      float64 // 0-1

	attack  float64 // sec
	decay   float64 // sec
	sustain float64 // 0-1
	release float64 // sec

	attackStep  float64
	decayMult   float64
	releaseMult float64
	killStep    float64
}

func (a *adsr) init(sampleRate float64) {
	a.sampleRate = sampleRate
	a.phase = phaseIdle
	a.value = 0
	a.setAttack(0.01)
	a.setDecay(0.1)
	a.setSustain(0.7)
	a.setRelease(0.5)
}

func (a *adsr) reset() {
	a.phase = phaseIdle
	a.value = 0
}

func (a *adsr) setAttack(sec float64) {
	a.attack = math.Max(minEnvelopeTime, sec)
}

func (a *adsr) setDecay(sec float64) {
	a.decay = math.Max(minEnvelopeTime, sec)
	a.decayMult = a.multiplier(a.decay)
}

// setSustain moves the decay target only; the decay multiplier is kept.
func (a *adsr) setSustain(level float64) {
	a.sustain = clamp(level, 0, 1)
}

func (a *adsr) setRelease(sec float64) {
	a.release = math.Max(minEnvelopeTime, sec)
	a.releaseMult = a.multiplier(a.release)
}

// multiplier reaches 0.1% of the remaining distance after sec seconds.
func (a *adsr) multiplier(sec float64) float64 {
	return math.Exp(-t60 / (sec * a.sampleRate))
}

func (a *adsr) gate(on bool) {
	if on {
		a.phase = phaseAttack
		a.attackStep = (1 - a.value) / (a.attack * a.sampleRate)
		return
	}
	if a.phase != phaseIdle && a.phase != phaseKill {
		a.phase = phaseRelease
	}
}

// kill fades linearly to zero within killTime.
func (a *adsr) kill() {
	if a.phase == phaseIdle {
		return
	}
	if a.value <= 0 {
		a.reset()
		return
	}
	a.phase = phaseKill
	a.killStep = a.value / (killTime * a.sampleRate)
}

func (a *adsr) active() bool {
	return a.phase != phaseIdle
}

func (a *adsr) step() float64 {
	switch a.phase {
	case phaseAttack:
		a.value += a.attackStep
		if a.value >= 1-attackEpsilon {
			a.value = 1
			a.phase = phaseDecay
		}
	case phaseDecay:
		a.value = a.sustain + (a.value-a.sustain)*a.decayMult
		if math.Abs(a.value-a.sustain) < decayEpsilon {
			a.value = a.sustain
			a.phase = phaseSustain
		}
	case phaseSustain:
		a.value = a.sustain
	case phaseRelease:
		a.value = releaseTarget + (a.value-releaseTarget)*a.releaseMult
		if a.value <= 0 {
			a.reset()
		}
	case phaseKill:
		a.value -= a.killStep
		if a.value <= 0 {
			a.reset()
		}
	default:
		a.value = 0
	}
	return a.value
}
