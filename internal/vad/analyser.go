// Package vad gates continuous audio around detected speech.
package vad

import (
	"encoding/binary"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	defaultFFTSize   = 1024
	defaultMinDB     = -100.0
	defaultMaxDB     = -30.0
	maxByteFrequency = 255.0
)

// AnalyserConfig mirrors the knobs of a browser AnalyserNode.
type AnalyserConfig struct {
	FFTSize   int
	MinDB     float64
	MaxDB     float64
	Smoothing float64 // 0 disables temporal smoothing
}

// Analyser maps the most recent FFTSize samples to byte-scaled frequency bins
// and reports their mean, on the same 0..255 scale a browser analyser uses.
type Analyser struct {
	cfg      AnalyserConfig
	fft      *fourier.FFT
	window   []float64
	history  []float64
	filled   int
	frame    []float64
	coeffs   []complex128
	smoothed []float64
}

func NewAnalyser(cfg AnalyserConfig) *Analyser {
	if cfg.FFTSize < 32 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		cfg.FFTSize = defaultFFTSize
	}
	if cfg.MinDB == 0 && cfg.MaxDB == 0 {
		cfg.MinDB, cfg.MaxDB = defaultMinDB, defaultMaxDB
	}
	if cfg.MaxDB <= cfg.MinDB {
		cfg.MinDB, cfg.MaxDB = defaultMinDB, defaultMaxDB
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = 0
	}

	return &Analyser{
		cfg:      cfg,
		fft:      fourier.NewFFT(cfg.FFTSize),
		window:   blackman(cfg.FFTSize),
		history:  make([]float64, cfg.FFTSize),
		frame:    make([]float64, cfg.FFTSize),
		smoothed: make([]float64, cfg.FFTSize/2),
	}
}

// Push appends normalized mono samples to the analysis window.
func (a *Analyser) Push(samples []float64) {
	n := len(a.history)
	if len(samples) >= n {
		copy(a.history, samples[len(samples)-n:])
		a.filled = n
		return
	}
	copy(a.history, a.history[len(samples):])
	copy(a.history[n-len(samples):], samples)
	a.filled = min(n, a.filled+len(samples))
}

// Level returns the mean byte-scaled magnitude over all frequency bins.
func (a *Analyser) Level() float64 {
	if a.filled == 0 {
		return 0
	}

	n := len(a.history)
	for i := range a.frame {
		a.frame[i] = a.history[i] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	scale := maxByteFrequency / (a.cfg.MaxDB - a.cfg.MinDB)
	tau := a.cfg.Smoothing
	var sum float64
	for k := range a.smoothed {
		magnitude := cmplx.Abs(a.coeffs[k]) / float64(n)
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*magnitude

		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		value := scale * (db - a.cfg.MinDB)
		sum += math.Max(0, math.Min(maxByteFrequency, value))
	}
	return sum / float64(len(a.smoothed))
}

// blackman returns the window a browser analyser applies before its FFT.
func blackman(n int) []float64 {
	const alpha = 0.16
	a0 := (1 - alpha) / 2
	a1 := 0.5
	a2 := alpha / 2

	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

// decodePCM16 converts interleaved little-endian s16 PCM to mono floats in [-1, 1].
func decodePCM16(pcm []byte, channels int, dst []float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes
	dst = dst[:0]
	for f := 0; f < frames; f++ {
		var sum float64
		base := f * frameBytes
		for c := 0; c < channels; c++ {
			sample := int16(binary.LittleEndian.Uint16(pcm[base+2*c:]))
			sum += float64(sample) / 32768
		}
		dst = append(dst, sum/float64(channels))
	}
	return dst
}
