package synth

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/mjibson/go-dsp/fft"

	"github.com/himanishpuri/WakeFeed/pkg/models"
)

// Tunables
const (
	DefaultSampleRate  = 16000
	DefaultWindowSize  = 512
	DefaultHopSize     = 256
	DefaultNumFeatures = 40
)

// Params controls waveform rendering and feature extraction.
type Params struct {
	SampleRate  int
	WindowSize  int
	HopSize     int
	NumFeatures int
}

func DefaultParams() Params {
	return Params{
		SampleRate:  DefaultSampleRate,
		WindowSize:  DefaultWindowSize,
		HopSize:     DefaultHopSize,
		NumFeatures: DefaultNumFeatures,
	}
}

// Utterance is a synthetic audio clip plus its extracted features and the
// frame span its speech covers.
type Utterance struct {
	Samples     []float64
	Features    [][]float32
	Hotword     bool
	SpeechStart int
	SpeechEnd   int
}

// Attributes converts the utterance labeling into store attributes.
func (u Utterance) Attributes() models.Attributes {
	attrs := models.Attributes{
		SpeechStartTS: int64(u.SpeechStart),
		SpeechEndTS:   int64(u.SpeechEnd),
	}
	if u.Hotword {
		attrs.IsHotword = 1
	}
	return attrs
}

// Waveform renders seconds of low-level noise, with a two-tone burst in
// the middle third when hotword is set. It returns the samples and the
// sample span the burst covers.
func Waveform(rng *rand.Rand, p Params, hotword bool, seconds float64) (samples []float64, burstStart, burstEnd int) {
	n := int(seconds * float64(p.SampleRate))
	samples = make([]float64, n)
	for i := range samples {
		samples[i] = 0.05 * (rng.Float64()*2 - 1)
	}
	if !hotword || n == 0 {
		return samples, 0, 0
	}

	burstStart = n / 3
	burstEnd = burstStart + n/3
	f1 := 300 + rng.Float64()*200
	f2 := 2*f1 + rng.Float64()*100
	for i := burstStart; i < burstEnd; i++ {
		t := float64(i) / float64(p.SampleRate)
		pos := float64(i-burstStart) / float64(burstEnd-burstStart)
		// half-sine envelope so the burst fades in and out
		env := math.Sin(math.Pi * pos)
		samples[i] += 0.4 * env * (math.Sin(2*math.Pi*f1*t) + 0.5*math.Sin(2*math.Pi*f2*t))
	}
	return samples, burstStart, burstEnd
}

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		// Hamming: 0.54 - 0.46*cos(2*pi*n/(N-1))
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Frames runs a short-time FFT over samples and keeps the first
// NumFeatures log-compressed magnitude bins of every frame.
func Frames(samples []float64, p Params) ([][]float32, error) {
	if p.WindowSize <= 0 || p.HopSize <= 0 {
		return nil, errors.New("window size and hop size must be positive")
	}
	if len(samples) < p.WindowSize {
		return nil, errors.New("input shorter than window size")
	}
	if p.NumFeatures > p.WindowSize/2 {
		return nil, errors.New("more features requested than spectrum bins")
	}

	window := Hamming(p.WindowSize)
	frames := make([][]float32, 0, 1+(len(samples)-p.WindowSize)/p.HopSize)
	frame := make([]float64, p.WindowSize)
	for start := 0; start+p.WindowSize <= len(samples); start += p.HopSize {
		copy(frame, samples[start:start+p.WindowSize])
		for i := range frame {
			frame[i] *= window[i]
		}
		spectrum := fft.FFTReal(frame)
		row := make([]float32, p.NumFeatures)
		for i := 0; i < p.NumFeatures; i++ {
			row[i] = float32(math.Log1p(cmplx.Abs(spectrum[i])))
		}
		frames = append(frames, row)
	}
	return frames, nil
}

// Generate renders one labeled utterance. The speech span is reported in
// frame indices so it can be stored next to the features.
func Generate(rng *rand.Rand, p Params, hotword bool, seconds float64) (Utterance, error) {
	samples, burstStart, burstEnd := Waveform(rng, p, hotword, seconds)
	features, err := Frames(samples, p)
	if err != nil {
		return Utterance{}, err
	}

	u := Utterance{
		Samples:  samples,
		Features: features,
		Hotword:  hotword,
	}
	if hotword {
		u.SpeechStart = burstStart / p.HopSize
		u.SpeechEnd = burstEnd / p.HopSize
		if u.SpeechEnd >= len(features) {
			u.SpeechEnd = len(features) - 1
		}
	}
	return u, nil
}
