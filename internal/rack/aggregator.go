// Package rack implements the rack-local aggregator: a UDP ingress loop
// that accumulates per-server wave samples, a periodic summarizer that
// scores each server's spectral health, and a reporter that relays the
// rack's overall health upstream to the datacenter aggregator.
package rack

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/netwatch/internal/metrics"
	"github.com/runZeroInc/netwatch/internal/netwave"
	"github.com/runZeroInc/netwatch/internal/spectral"
	"github.com/runZeroInc/netwatch/internal/stats"
)

const defaultSampleRateHz = 20.0

// Config parameterizes one rack aggregator instance.
type Config struct {
	RackID          int
	SampleRateHz    float64       // defaults to 20.0 if zero
	SummaryInterval time.Duration // defaults to 5s if zero
	DCHost          string
	DCPort          int
}

// Aggregator owns all per-rack state: the server stats map, the current
// summary window's packet counts, and the upstream reporter. Ingress and
// the summary loop run concurrently against the same Aggregator and are
// serialized by mu.
type Aggregator struct {
	cfg     Config
	metrics *metrics.Registry
	log     *logrus.Entry

	reporter *reporter

	mu           sync.RWMutex
	serverStats  map[int]*stats.ServerStats
	windowCounts map[int]int
}

// NewAggregator constructs a rack aggregator. reg may be nil in tests that
// don't care about metrics.
func NewAggregator(cfg Config, reg *metrics.Registry) *Aggregator {
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = defaultSampleRateHz
	}
	if cfg.SummaryInterval == 0 {
		cfg.SummaryInterval = 5 * time.Second
	}
	log := logrus.WithField("component", "rack").WithField("rack_id", cfg.RackID)
	return &Aggregator{
		cfg:          cfg,
		metrics:      reg,
		log:          log,
		reporter:     newReporter(cfg.DCHost, cfg.DCPort, log.WithField("subcomponent", "reporter")),
		serverStats:  make(map[int]*stats.ServerStats),
		windowCounts: make(map[int]int),
	}
}

// Close releases the upstream reporter connection.
func (a *Aggregator) Close() error {
	return a.reporter.Close()
}

// ServeUDP runs the ingress loop against an already-bound UDP socket
// until ctx is canceled or the socket errors. Binding is left to the
// caller (cmd/netwatch-rack) so tests can pass an ephemeral loopback
// socket.
func (a *Aggregator) ServeUDP(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, netwave.MaxPacketBytes)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return err
		}
		recvTS := nowSeconds()
		a.handleDatagram(buf[:n], recvTS)
	}
}

func (a *Aggregator) handleDatagram(data []byte, recvTS float64) {
	packet, err := netwave.DecodeSamplePacket(data)
	if err != nil {
		a.log.WithError(err).Warn("dropping malformed sample packet")
		return
	}

	if packet.RackID != a.cfg.RackID {
		a.log.WithFields(logrus.Fields{
			"got_rack_id": packet.RackID,
		}).Warn("dropping packet for foreign rack_id")
		return
	}

	a.mu.Lock()
	s, ok := a.serverStats[packet.ServerID]
	if !ok {
		s = stats.NewServerStats(packet.ServerID)
		a.serverStats[packet.ServerID] = s
		a.windowCounts[packet.ServerID] = 0
	}
	lostBefore := s.LostCount
	s.RecordPacket(packet.Seq, packet.SentTS, recvTS, packet.WaveSample)
	lostDelta := s.LostCount - lostBefore
	a.windowCounts[packet.ServerID]++
	a.mu.Unlock()

	if a.metrics != nil {
		latencyMs := (recvTS - packet.SentTS) * 1000.0
		a.metrics.IncPacketsReceived(a.cfg.RackID, packet.ServerID, 1)
		a.metrics.IncPacketsLost(a.cfg.RackID, packet.ServerID, lostDelta)
		a.metrics.ObserveLatency(a.cfg.RackID, packet.ServerID, latencyMs)
	}
}

// RunSummaryLoop fires SummarizeOnce on cfg.SummaryInterval until ctx is
// canceled.
func (a *Aggregator) RunSummaryLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SummaryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.SummarizeOnce()
		}
	}
}

// SummarizeOnce runs one summarization pass over every known server,
// computes the rack health score, reports it upstream, and resets the
// current window's packet counts.
func (a *Aggregator) SummarizeOnce() {
	a.mu.Lock()
	if len(a.serverStats) == 0 {
		a.mu.Unlock()
		a.log.Info("no samples yet this interval")
		return
	}

	serverIDs := make([]int, 0, len(a.serverStats))
	for id := range a.serverStats {
		serverIDs = append(serverIDs, id)
	}
	sort.Ints(serverIDs)

	windowSeconds := a.cfg.SummaryInterval.Seconds()
	spectralErrors := make([]float64, 0, len(serverIDs))

	for _, serverID := range serverIDs {
		s := a.serverStats[serverID]
		packetsInWindow := a.windowCounts[serverID]
		expectedFreq := netwave.ExpectedFrequencyHz(a.cfg.RackID, serverID)

		summary := s.Summarize(a.cfg.SampleRateHz, expectedFreq, windowSeconds, packetsInWindow)
		health := spectral.ClassifyHealth(summary.SpectralError)

		a.log.WithFields(logrus.Fields{
			"server_id":      serverID,
			"received_total": summary.ReceivedTotal,
			"lost_total":     summary.LostTotal,
			"loss_rate":      summary.LossRate,
			"arrival_hz":     summary.ArrivalRateHz,
			"latency_mean":   summary.LatencyMeanMs,
			"latency_max":    summary.LatencyMaxMs,
			"spectral_error": summary.SpectralError,
			"snr_db":         summary.SpectralSNRdB,
			"health":         health,
		}).Info("server summary")

		if a.metrics != nil {
			a.metrics.SetServerHealth(a.cfg.RackID, serverID, summary.SpectralError, summary.SpectralSNRdB)
		}
		spectralErrors = append(spectralErrors, summary.SpectralError)
	}

	serverCount := len(serverIDs)
	for _, id := range serverIDs {
		a.windowCounts[id] = 0
	}
	a.mu.Unlock()

	rackHealth := spectral.HealthScore(spectralErrors)
	a.log.WithField("health_score", rackHealth).Info("rack summary")
	if a.metrics != nil {
		a.metrics.SetRackHealth(a.cfg.RackID, rackHealth)
	}

	a.reporter.Report(netwave.RackReport{
		RackID:      a.cfg.RackID,
		HealthScore: rackHealth,
		ServerCount: serverCount,
		Timestamp:   nowSeconds(),
	})
}

// ServerCount reports how many distinct server_ids have been observed,
// for use in tests.
func (a *Aggregator) ServerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.serverStats)
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
