package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi"
	"gitlab.com/gomidi/rtmididrv"
)

// ListenToMidiIn feeds q from the first MIDI input whose name contains port (any input if port
// is empty) until ctx is done. The driver callback is the only producer of q.
// A missing device is logged and is not an error.
func ListenToMidiIn(ctx context.Context, port string, q *EventQueue, logger *logrus.Logger) error {
	drv, err := rtmididrv.New()
	if err != nil {
		logger.WithError(err).Warn("failed to initialize MIDI driver")
		return nil
	}
	defer func() {
		if err := drv.Close(); err != nil {
			logger.WithError(err).Error("failed to close MIDI driver")
		}
	}()
	ins, err := drv.Ins()
	if err != nil {
		return fmt.Errorf("failed to get MIDI IN: %w", err)
	}
	logger.WithField("ports", ins).Info("MIDI IN")

	in := selectIn(ins, port)
	if in == nil {
		logger.WithField("port", port).Warn("MIDI IN not found")
		return nil
	}
	return listen(ctx, in, q, logger)
}

func selectIn(ins []midi.In, port string) midi.In {
	for _, in := range ins {
		if port == "" || strings.Contains(in.String(), port) {
			return in
		}
	}
	return nil
}

func listen(ctx context.Context, in midi.In, q *EventQueue, logger *logrus.Logger) error {
	log := logger.WithField("port", in.String())
	if err := in.Open(); err != nil {
		return fmt.Errorf("failed to open MIDI IN %s: %w", in, err)
	}
	log.Info("opened MIDI IN")
	defer func() {
		if err := in.Close(); err != nil {
			log.WithError(err).Error("failed to close MIDI IN")
		}
	}()
	log.Info("start listening MIDI IN...")
	if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
		if p, ok := packetFromMessage(data); ok {
			q.Push(p)
		}
	}); err != nil {
		return fmt.Errorf("failed to set listener: %w", err)
	}
	defer func() {
		log.Info("stop listening MIDI IN...")
		if err := in.StopListening(); err != nil {
			log.WithError(err).Error("failed to stop listening")
		}
	}()
	<-ctx.Done()
	return nil
}
