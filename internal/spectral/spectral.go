// Package spectral implements the pure, stateless spectral-analysis
// contract shared by the rack and datacenter aggregators: given a window
// of wave samples and the fundamental frequency a healthy emitter should
// be producing, it reports how much of the observed power sits on that
// frequency versus everywhere else.
package spectral

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Health classification thresholds on spectral error.
const (
	ThresholdHealthy = 0.2
	ThresholdSev2    = 0.5
)

// noiseFloor is the power floor used to avoid division by zero when a
// window carries no energy at all.
const noiseFloor = 1e-12

// Metrics is the result of analyzing one window of samples.
type Metrics struct {
	SNRdB         float64
	SpectralError float64
	PeakFreqHz    float64
	SignalPower   float64
	NoisePower    float64
}

// Analyze runs the Hann-windowed real DFT over samples and scores how much
// of the resulting power sits within bandwidthHz of expectedFreqHz.
//
// An empty sample set has no signal to measure, so it is reported as
// maximally errored rather than zero-error by omission.
func Analyze(samples []float64, sampleRateHz, expectedFreqHz, bandwidthHz float64) Metrics {
	n := len(samples)
	if n == 0 {
		return Metrics{SpectralError: 1.0}
	}

	windowed := make([]float64, n)
	copy(windowed, samples)
	window.Hann(windowed)

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, windowed)

	magnitudes := make([]float64, len(coeffs))
	for i, c := range coeffs {
		magnitudes[i] = cmplxAbs(c) / float64(n)
	}

	peakFreq := peakFrequency(fft, sampleRateHz, magnitudes)

	signalPower, noisePower := bandPower(fft, sampleRateHz, magnitudes, expectedFreqHz, bandwidthHz)
	if signalPower < noiseFloor {
		signalPower = noiseFloor
	}
	if noisePower < noiseFloor {
		noisePower = noiseFloor
	}

	snrDB := 10 * math.Log10(signalPower/noisePower)
	spectralError := computeSpectralError(signalPower, noisePower)

	return Metrics{
		SNRdB:         snrDB,
		SpectralError: spectralError,
		PeakFreqHz:    peakFreq,
		SignalPower:   signalPower,
		NoisePower:    noisePower,
	}
}

func computeSpectralError(signalPower, noisePower float64) float64 {
	total := signalPower + noisePower
	if total < noiseFloor {
		return 1.0
	}
	return noisePower / total
}

// peakFrequency returns the frequency of the bin with the greatest
// magnitude, with ties broken toward the lowest bin index by strict
// greater-than comparison.
func peakFrequency(fft *fourier.FFT, sampleRateHz float64, magnitudes []float64) float64 {
	if len(magnitudes) == 0 {
		return 0
	}
	peakIdx := 0
	peakMag := magnitudes[0]
	for i := 1; i < len(magnitudes); i++ {
		if magnitudes[i] > peakMag {
			peakMag = magnitudes[i]
			peakIdx = i
		}
	}
	return fft.Freq(peakIdx) * sampleRateHz
}

func bandPower(fft *fourier.FFT, sampleRateHz float64, magnitudes []float64, expectedFreqHz, bandwidthHz float64) (signal, noise float64) {
	for i, mag := range magnitudes {
		freq := fft.Freq(i) * sampleRateHz
		power := mag * mag
		if math.Abs(freq-expectedFreqHz) <= bandwidthHz {
			signal += power
		} else {
			noise += power
		}
	}
	return signal, noise
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// ClassifyHealth maps a spectral error to the three-tier health taxonomy
// used throughout the rack and DC summaries.
func ClassifyHealth(spectralError float64) string {
	switch {
	case spectralError < ThresholdHealthy:
		return "healthy"
	case spectralError < ThresholdSev2:
		return "sev2"
	default:
		return "sev1"
	}
}

// HealthScore reduces a set of per-server (or per-rack) spectral errors to
// a single [0,1] score, where 1 means every input was error-free.
func HealthScore(spectralErrors []float64) float64 {
	if len(spectralErrors) == 0 {
		return 0.0
	}
	var sum float64
	for _, e := range spectralErrors {
		sum += e
	}
	mean := sum / float64(len(spectralErrors))
	return clamp01(1.0 - mean)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
