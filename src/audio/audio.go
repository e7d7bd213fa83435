package audio

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/hajimehoshi/oto"
	"github.com/sirupsen/logrus"
)

const (
	sampleRate         = 48000
	channelNum         = 2
	bitDepthInBytes    = 2
	samplesPerCycle    = 1024
	defaultVoices      = 8
	defaultBlockFrames = 256
	defaultQueueSize   = 128
)
const bytesPerSample = bitDepthInBytes * channelNum
const bufferSizeInBytes = samplesPerCycle * bytesPerSample // should be >= 4096
const baseFreq = 440.0
const fullScale = 32767.0

// Engine inputs used by the host. Each has exactly one producer.
const (
	InputMIDI    = 0
	InputCommand = 1
)

// ----- Utility ----- //

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ----- Changes ----- //

// Changes ...
type Changes struct {
	sync.Mutex
	dict map[string]struct{}
}

func newChanges() *Changes {
	return &Changes{dict: make(map[string]struct{})}
}

// Add ...
func (c *Changes) Add(key string) {
	c.Lock()
	c.dict[key] = struct{}{}
	c.Unlock()
}

// Has ...
func (c *Changes) Has(key string) bool {
	c.Lock()
	_, ok := c.dict[key]
	c.Unlock()
	return ok
}

// Delete ...
func (c *Changes) Delete(key string) {
	c.Lock()
	delete(c.dict, key)
	c.Unlock()
}

// ----- Audio ----- //

// Audio drives an Engine from the oto player. It owns the command goroutine, which is the
// single producer of InputCommand.
type Audio struct {
	ctx        context.Context
	otoContext *oto.Context
	engine     *Engine
	volume     *volume
	pcm        []int16 // length: samplesPerCycle * channelNum
	log        *logrus.Logger
	CommandCh  chan []string
	Changes    *Changes
}

var _ io.Reader = (*Audio)(nil)

// NewAudio ...
func NewAudio(cfg Config, logger *logrus.Logger) (*Audio, error) {
	audio, err := NewHeadlessAudio(cfg, logger)
	if err != nil {
		return nil, err
	}
	otoContext, err := oto.NewContext(cfg.SampleRate, channelNum, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		close(audio.CommandCh)
		return nil, err
	}
	audio.otoContext = otoContext
	return audio, nil
}

// NewHeadlessAudio builds everything except the output device, so Start fails but Read works.
func NewHeadlessAudio(cfg Config, logger *logrus.Logger) (*Audio, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	commandCh := make(chan []string, 256)
	audio := &Audio{
		ctx:       context.Background(),
		engine:    engine,
		volume:    newVolume(float64(cfg.SampleRate), 1),
		pcm:       make([]int16, samplesPerCycle*channelNum),
		log:       logger,
		CommandCh: commandCh,
		Changes:   newChanges(),
	}
	go processCommands(audio, commandCh)
	return audio, nil
}

// Engine ...
func (a *Audio) Engine() *Engine {
	return a.engine
}

// SetVolume sets the output gain in [0, 1]. Values at or below 0.001 mute.
func (a *Audio) SetVolume(v float64) {
	a.volume.set(v)
	a.Changes.Add("patch")
}

// Volume ...
func (a *Audio) Volume() float64 {
	return a.volume.get()
}

func (a *Audio) Read(buf []byte) (int, error) {
	select {
	case <-a.ctx.Done():
		a.log.Debug("Read() interrupted.")
		return 0, io.EOF
	default:
	}
	frames := len(buf) / bytesPerSample
	maxFrames := len(a.pcm) / channelNum
	for start := 0; start < frames; start += maxFrames {
		n := frames - start
		if n > maxFrames {
			n = maxFrames
		}
		pcm := a.pcm[:n*channelNum]
		a.engine.Process(pcm)
		a.volume.update()
		writeBuffer(pcm, buf[start*bytesPerSample:], a.volume)
	}
	return frames * bytesPerSample, nil
}

// writeBuffer packs interleaved samples as little-endian int16, applying gain per frame.
func writeBuffer(pcm []int16, buf []byte, gain *volume) {
	for i := 0; i+1 < len(pcm); i += channelNum {
		g := gain.step()
		for ch := 0; ch < channelNum; ch++ {
			b := pcm[i+ch]
			if g != 1 {
				b = int16(float64(b) * g)
			}
			buf[2*(i+ch)] = byte(b)
			buf[2*(i+ch)+1] = byte(b >> 8)
		}
	}
}

// Close ...
func (a *Audio) Close() error {
	a.log.Info("Closing Audio...")
	close(a.CommandCh)
	if a.otoContext == nil {
		return nil
	}
	return a.otoContext.Close()
}

// Start plays until ctx is cancelled.
func (a *Audio) Start(ctx context.Context) error {
	if a.otoContext == nil {
		return errors.New("audio output is not opened")
	}
	p := a.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			a.log.WithError(err).Error("failed to close player")
		}
	}()
	a.ctx = ctx

	// block until cancel() called
	if _, err := io.CopyBuffer(p, a, make([]byte, bufferSizeInBytes)); err != nil {
		return err
	}
	a.log.Info("Start() ended.")
	return nil
}

// Levels returns the envelope level of every voice.
func (a *Audio) Levels() []float64 {
	levels := make([]float64, a.engine.NumVoices())
	for i := range levels {
		levels[i] = a.engine.VoiceLevel(i)
	}
	return levels
}
