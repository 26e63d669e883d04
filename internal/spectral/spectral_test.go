package spectral

import (
	"math"
	"math/rand"
	"testing"
)

func sineWave(freqHz, sampleRateHz float64, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		t := float64(i) / sampleRateHz
		samples[i] = math.Sin(2 * math.Pi * freqHz * t)
	}
	return samples
}

func TestAnalyzeEmptyIsMaximallyErrored(t *testing.T) {
	m := Analyze(nil, 20.0, 1.0, 0.1)
	if m.SpectralError != 1.0 {
		t.Fatalf("spectral error = %v, want 1.0", m.SpectralError)
	}
	if m.SNRdB != 0 || m.PeakFreqHz != 0 {
		t.Fatalf("expected zeroed metrics for empty input, got %+v", m)
	}
}

func TestAnalyzePureToneIsHealthy(t *testing.T) {
	const freq = 1.0
	const sampleRate = 20 * freq
	samples := sineWave(freq, sampleRate, 1024)

	m := Analyze(samples, sampleRate, freq, 0.1)
	if m.SpectralError >= 0.1 {
		t.Fatalf("spectral error = %v, want < 0.1 for a pure tone", m.SpectralError)
	}

	binHz := sampleRate / 1024
	if math.Abs(m.PeakFreqHz-freq) > binHz {
		t.Fatalf("peak freq = %v, want within one bin (%v) of %v", m.PeakFreqHz, binHz, freq)
	}
}

func TestAnalyzeNoiseIsUnhealthy(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := make([]float64, 1024)
	for i := range samples {
		samples[i] = rng.NormFloat64()
	}

	m := Analyze(samples, 20.0, 1.0, 0.1)
	if m.SpectralError <= 0.9 {
		t.Fatalf("spectral error = %v, want > 0.9 for white noise", m.SpectralError)
	}
}

func TestSpectralErrorBounded(t *testing.T) {
	cases := [][]float64{
		nil,
		sineWave(1.0, 20.0, 128),
		make([]float64, 500),
	}
	for _, samples := range cases {
		m := Analyze(samples, 20.0, 1.0, 0.1)
		if m.SpectralError < 0 || m.SpectralError > 1 {
			t.Fatalf("spectral error out of [0,1]: %v", m.SpectralError)
		}
	}
}

func TestClassifyHealth(t *testing.T) {
	cases := []struct {
		err  float64
		want string
	}{
		{0.0, "healthy"},
		{0.19, "healthy"},
		{0.2, "sev2"},
		{0.49, "sev2"},
		{0.5, "sev1"},
		{1.0, "sev1"},
	}
	for _, c := range cases {
		if got := ClassifyHealth(c.err); got != c.want {
			t.Errorf("ClassifyHealth(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestHealthScore(t *testing.T) {
	if got := HealthScore(nil); got != 0.0 {
		t.Errorf("HealthScore(nil) = %v, want 0.0", got)
	}
	if got := HealthScore([]float64{0, 0, 0}); got != 1.0 {
		t.Errorf("HealthScore(all-zero) = %v, want 1.0", got)
	}
	if got := HealthScore([]float64{1, 1, 1}); got != 0.0 {
		t.Errorf("HealthScore(all-one) = %v, want 0.0", got)
	}
	if got := HealthScore([]float64{0.0, 1.0}); got != 0.5 {
		t.Errorf("HealthScore(mixed) = %v, want 0.5", got)
	}
}
