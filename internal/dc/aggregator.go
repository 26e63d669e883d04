// Package dc implements the datacenter-wide aggregator: a TCP listener
// that accepts one long-lived connection per rack, a per-connection
// handler that decodes newline-framed JSON reports, and a periodic
// summary loop that classifies fleet health from the freshest reports.
package dc

import (
	"bufio"
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/netwatch/internal/metrics"
	"github.com/runZeroInc/netwatch/internal/netwave"
)

const (
	freshnessWindow  = 30 * time.Second
	thresholdHealthy = 0.8
	thresholdDegrade = 0.5
)

// Config parameterizes one DC aggregator instance.
type Config struct {
	DCID            int
	NumRacks        int
	SummaryInterval time.Duration // defaults to 10s if zero
}

// record is the latest report known for one rack. Staleness is derived
// from the report's own embedded timestamp, not local receipt time, so
// a rack that stops reporting ages out even though nothing new arrives
// to update a local clock.
type record struct {
	report netwave.RackReport
}

// Aggregator owns the rack_id -> latest-report map. Connection handlers
// and the summary loop both read/write it under mu.
type Aggregator struct {
	cfg     Config
	metrics *metrics.Registry
	log     *logrus.Entry

	mu      sync.RWMutex
	reports map[int]record
}

// NewAggregator constructs a DC aggregator. reg may be nil in tests.
func NewAggregator(cfg Config, reg *metrics.Registry) *Aggregator {
	if cfg.SummaryInterval == 0 {
		cfg.SummaryInterval = 10 * time.Second
	}
	return &Aggregator{
		cfg:     cfg,
		metrics: reg,
		log:     logrus.WithField("component", "dc").WithField("dc_id", cfg.DCID),
		reports: make(map[int]record),
	}
}

// Serve accepts connections from ln indefinitely, handling each in its
// own goroutine, until ctx is canceled.
func (a *Aggregator) Serve(ctx context.Context, ln *net.TCPListener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return err
		}
		go a.handleConn(conn)
	}
}

// handleConn reads newline-delimited JSON rack reports from one
// connection until the peer closes or I/O fails, logging and skipping
// any line that fails to parse. Reports already applied remain valid
// after this connection terminates.
func (a *Aggregator) handleConn(conn net.Conn) {
	connID := xid.New().String()
	log := a.log.WithFields(logrus.Fields{"conn_id": connID, "remote_addr": conn.RemoteAddr().String()})
	log.Info("rack connection opened")
	defer func() {
		conn.Close()
		log.Info("rack connection closed")
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, netwave.MaxPacketBytes), netwave.MaxPacketBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		report, err := netwave.DecodeRackReport(line)
		if err != nil {
			log.WithError(err).Warn("dropping unparseable rack report")
			continue
		}
		a.applyReport(report, log)
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Warn("rack connection read error")
	}
}

func (a *Aggregator) applyReport(report netwave.RackReport, log *logrus.Entry) {
	a.mu.Lock()
	a.reports[report.RackID] = record{report: report}
	a.mu.Unlock()

	log.WithFields(logrus.Fields{
		"rack_id":      report.RackID,
		"health_score": report.HealthScore,
		"server_count": report.ServerCount,
	}).Info("received rack report")
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

// SummarizeOnce snapshots the current report set, logs each rack's age
// and health, and classifies fleet-wide health from whichever reports
// are fresher than freshnessWindow. If every report is stale (or none
// have arrived), no dc_health_score is emitted.
func (a *Aggregator) SummarizeOnce() {
	a.mu.RLock()
	snapshot := make(map[int]record, len(a.reports))
	for id, rec := range a.reports {
		snapshot[id] = rec
	}
	a.mu.RUnlock()

	if len(snapshot) == 0 {
		a.log.Info("no rack reports yet")
		return
	}

	rackIDs := make([]int, 0, len(snapshot))
	for id := range snapshot {
		rackIDs = append(rackIDs, id)
	}
	sort.Ints(rackIDs)

	a.log.WithFields(logrus.Fields{
		"racks_reporting": len(snapshot),
		"num_racks":       a.cfg.NumRacks,
	}).Info("fleet summary")

	now := nowSeconds()
	freshnessSeconds := freshnessWindow.Seconds()
	freshScores := make([]float64, 0, len(rackIDs))
	for _, rackID := range rackIDs {
		rec := snapshot[rackID]
		age := now - rec.report.Timestamp

		a.log.WithFields(logrus.Fields{
			"rack_id":      rackID,
			"health_score": rec.report.HealthScore,
			"server_count": rec.report.ServerCount,
			"age_seconds":  age,
		}).Info("rack status")

		if age < freshnessSeconds {
			freshScores = append(freshScores, rec.report.HealthScore)
		}
	}

	if len(freshScores) == 0 {
		a.log.Warn("all rack reports are stale")
		return
	}

	dcScore := meanClamped(freshScores)
	status := classifyDCHealth(dcScore)
	a.log.WithFields(logrus.Fields{
		"health_score": dcScore,
		"status":       status,
	}).Info("datacenter summary")

	if a.metrics != nil {
		a.metrics.SetDCHealth(a.cfg.DCID, dcScore)
	}
}

// meanClamped reduces fresh rack health scores to one DC score. Rack
// scores already sit in the "higher is healthier" orientation, so unlike
// spectral.HealthScore (which averages errors and inverts) this takes a
// direct mean: a fleet of perfectly healthy racks (score 1.0 each) must
// average to a perfectly healthy DC score, not invert to 0.
func meanClamped(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	switch {
	case mean < 0:
		return 0
	case mean > 1:
		return 1
	default:
		return mean
	}
}

func classifyDCHealth(score float64) string {
	switch {
	case score >= thresholdHealthy:
		return "healthy"
	case score >= thresholdDegrade:
		return "degraded"
	default:
		return "critical"
	}
}

// RackCount reports how many distinct rack_ids have ever reported, for
// use in tests.
func (a *Aggregator) RackCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.reports)
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
