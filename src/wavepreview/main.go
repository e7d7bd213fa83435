package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jinjor/polysynth/src/audio"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const (
	defaultWidth = 64
	rows         = 15
)

// wavepreview prints one cycle of two waveforms cross-faded by -morph.
func main() {
	waveA := flag.String("a", "sine", "waveform of slot A")
	waveB := flag.String("b", "saw", "waveform of slot B")
	morph := flag.Float64("morph", 0.5, "cross-fade amount (0-1)")
	list := flag.Bool("list", false, "list waveforms")
	harmonics := flag.Int("harmonics", 0, "print the level of the first n harmonics instead of the shape")
	flag.Parse()
	log := logrus.New()

	library := audio.NewWaveLibrary()
	if *list {
		for _, name := range library.Names() {
			fmt.Println(name)
		}
		return
	}
	a, err := library.Index(*waveA)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	b, err := library.Index(*waveB)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	if *harmonics > 0 {
		levels, err := harmonicLevels(library, a, b, *morph, *harmonics)
		if err != nil {
			log.Fatalf("error: %v", err)
		}
		for i, level := range levels {
			fmt.Printf("%3d %6.3f %s\n", i+1, level, strings.Repeat("#", int(level*40+0.5)))
		}
		return
	}
	width := defaultWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	values := make([]float64, width)
	library.Preview(values, a, b, *morph)
	fmt.Printf("%s -> %s (morph %.2f)\n", *waveA, *waveB, *morph)
	fmt.Print(render(values, rows))
}

// harmonicLevels measures one cycle, so bin k holds harmonic k.
func harmonicLevels(library *audio.WaveLibrary, a, b int, morph float64, n int) ([]float64, error) {
	const length = 1024
	spectrum, err := audio.NewSpectrum(length)
	if err != nil {
		return nil, err
	}
	if n > length/2-1 {
		n = length/2 - 1
	}
	values := make([]float64, length)
	library.Preview(values, a, b, morph)
	mags := make([]float64, length/2)
	if err := spectrum.Magnitudes(values, mags); err != nil {
		return nil, err
	}
	return mags[1 : n+1], nil
}

// render draws values in [-1, 1] as a column chart with the zero line in the middle.
func render(values []float64, rows int) string {
	var sb strings.Builder
	for r := 0; r < rows; r++ {
		level := 1 - 2*float64(r)/float64(rows-1)
		for _, v := range values {
			switch {
			case nearest(v, rows) == r:
				sb.WriteByte('*')
			case level == 0:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func nearest(v float64, rows int) int {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int((1-v)/2*float64(rows-1) + 0.5)
}
