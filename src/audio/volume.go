package audio

import "math"

// ----- Transitive Value ----- //

// transitiveValue approaches a target exponentially, one step per sample.
type transitiveValue struct {
	duration     float64 // samples to get 63% closer
	endThreshold float64
	initialValue float64
	targetValue  float64
	value        float64
	pos          int
	moving       bool
}

func (tv *transitiveValue) init(value float64) {
	tv.initialValue = value
	tv.targetValue = value
	tv.value = value
	tv.pos = 0
	tv.moving = false
}

func (tv *transitiveValue) exponential(duration float64, targetValue float64, endThreshold float64) {
	tv.duration = duration
	tv.endThreshold = endThreshold
	tv.pos = 0
	tv.initialValue = tv.value
	tv.targetValue = targetValue
	tv.moving = true
}

func (tv *transitiveValue) step() bool {
	if !tv.moving {
		return false
	}
	tv.pos++
	tv.value = setTargetAtTime(tv.initialValue, tv.targetValue, float64(tv.pos)/tv.duration)
	if math.Abs(tv.value-tv.targetValue) < tv.endThreshold {
		tv.end()
		return true
	}
	return false
}

func (tv *transitiveValue) end() {
	tv.moving = false
	tv.value = tv.targetValue
	tv.pos = 0
}

// 63% closer to target when pos=1.0
func setTargetAtTime(initialValue float64, targetValue float64, pos float64) float64 {
	return targetValue + (initialValue-targetValue)*math.Exp(-pos)
}

// ----- Volume ----- //

const (
	volumeTimeConstant = 0.01 // sec
	muteThreshold      = 0.001
)

// volume is the output gain. set/get may be called from any goroutine; update and step
// belong to the audio goroutine.
type volume struct {
	sampleRate float64
	target     param
	requested  float64
	gain       transitiveValue
}

func newVolume(sampleRate float64, initial float64) *volume {
	v := &volume{sampleRate: sampleRate}
	initial = gainFor(initial)
	v.target.store(initial)
	v.requested = initial
	v.gain.init(initial)
	return v
}

func gainFor(v float64) float64 {
	v = clamp(v, 0, 1)
	if v <= muteThreshold {
		return 0
	}
	return v
}

func (v *volume) set(value float64) {
	v.target.store(clamp(value, 0, 1))
}

func (v *volume) get() float64 {
	return v.target.load()
}

// update picks up a new target, once per buffer.
func (v *volume) update() {
	t := v.target.load()
	if t == v.requested {
		return
	}
	v.requested = t
	v.gain.exponential(volumeTimeConstant*v.sampleRate, gainFor(t), 1e-4)
}

func (v *volume) step() float64 {
	v.gain.step()
	return v.gain.value
}
