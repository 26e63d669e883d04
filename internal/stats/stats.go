// Package stats holds the per-(rack,server) bookkeeping owned by the rack
// aggregator: sequence/loss accounting, a bounded latency history, and a
// bounded ring of wave samples feeding the spectral analyzer.
package stats

import (
	"github.com/runZeroInc/netwatch/internal/spectral"
)

const (
	latencyCapacity = 1000
	waveCapacity    = 2048
	minWaveSamples  = 64
	signalBandwidth = 0.1
)

// ServerStats is the mutable state tracked for one server_id within one
// rack's scope. It is not itself safe for concurrent use; callers (the
// rack Aggregator) serialize access with their own lock.
type ServerStats struct {
	ServerID      int
	LastSeq       int64
	ReceivedCount uint64
	LostCount     uint64

	latencies *floatRing
	waves     *floatRing
}

// NewServerStats returns a freshly initialized stats struct for serverID,
// as created lazily on first packet.
func NewServerStats(serverID int) *ServerStats {
	return &ServerStats{
		ServerID:  serverID,
		LastSeq:   -1,
		latencies: newFloatRing(latencyCapacity),
		waves:     newFloatRing(waveCapacity),
	}
}

// RecordPacket applies one received sample to the stats store. Loss is
// strictly forward-gap accounting: an out-of-order or duplicate seq
// (seq <= lastSeq) still counts as received and still contributes its
// wave sample, but never decrements lost_count and never moves last_seq
// backward.
func (s *ServerStats) RecordPacket(seq int64, sentTS, recvTS, waveSample float64) {
	if s.LastSeq >= 0 && seq > s.LastSeq+1 {
		s.LostCount += uint64(seq - s.LastSeq - 1)
	}
	if seq > s.LastSeq {
		s.LastSeq = seq
	}
	s.ReceivedCount++

	latencyMs := (recvTS - sentTS) * 1000.0
	s.latencies.Append(latencyMs)
	s.waves.Append(waveSample)
}

// WaveLen reports how many wave samples are currently buffered, used by
// callers that want to decide whether a spectral analysis is worthwhile
// without pulling a full snapshot.
func (s *ServerStats) WaveLen() int {
	return s.waves.Len()
}

// Summary is the per-server result of one summarization pass.
type Summary struct {
	ReceivedTotal uint64
	LostTotal     uint64
	LossRate      float64
	LatencyMeanMs float64
	LatencyMaxMs  float64
	ArrivalRateHz float64
	SpectralError float64
	SpectralSNRdB float64
	PeakFreqHz    float64
}

// Summarize computes the point-in-time summary for this server, including
// a spectral analysis of the buffered wave samples when there are enough
// of them to be meaningful.
func (s *ServerStats) Summarize(sampleRateHz, expectedFreqHz, windowSeconds float64, packetsInWindow int) Summary {
	if s.ReceivedCount == 0 {
		return Summary{}
	}

	receivedTotal := s.ReceivedCount
	lostTotal := s.LostCount
	denom := receivedTotal + lostTotal
	if denom == 0 {
		denom = 1
	}
	lossRate := float64(lostTotal) / float64(denom)

	latencySamples := s.latencies.Snapshot()
	var latMean, latMax float64
	if len(latencySamples) > 0 {
		var sum float64
		for _, l := range latencySamples {
			sum += l
			if l > latMax {
				latMax = l
			}
		}
		latMean = sum / float64(len(latencySamples))
	}

	windowDenom := windowSeconds
	if windowDenom < 1e-6 {
		windowDenom = 1e-6
	}
	arrivalRate := float64(packetsInWindow) / windowDenom

	var spectralError, snrDB, peakFreq float64
	if s.waves.Len() >= minWaveSamples {
		samples := s.waves.Snapshot()
		m := spectral.Analyze(samples, sampleRateHz, expectedFreqHz, signalBandwidth)
		spectralError = m.SpectralError
		snrDB = m.SNRdB
		peakFreq = m.PeakFreqHz
	}

	return Summary{
		ReceivedTotal: receivedTotal,
		LostTotal:     lostTotal,
		LossRate:      lossRate,
		LatencyMeanMs: latMean,
		LatencyMaxMs:  latMax,
		ArrivalRateHz: arrivalRate,
		SpectralError: spectralError,
		SpectralSNRdB: snrDB,
		PeakFreqHz:    peakFreq,
	}
}
