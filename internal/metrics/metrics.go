// Package metrics wires the gauges, counters and histogram that NetWatch
// exposes over Prometheus's exposition format as a push-style registry:
// the ingress and summarizer goroutines call Set/Inc/Observe directly as
// they learn new values, rather than a pull-style Collect() walk over
// live state.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// Registry owns every NetWatch series and the HTTP handler that serves
// them. One Registry is created per process (rack aggregator or DC
// aggregator); the two processes export different subsets of the series.
type Registry struct {
	reg *prometheus.Registry

	serverSpectralError *prometheus.GaugeVec
	serverSNR           *prometheus.GaugeVec
	rackHealthScore     *prometheus.GaugeVec
	dcHealthScore       *prometheus.GaugeVec
	packetsReceived     *prometheus.CounterVec
	packetsLost         *prometheus.CounterVec
	latencyMs           *prometheus.HistogramVec
}

// NewRegistry constructs and registers all seven NetWatch series against
// a fresh prometheus.Registry.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.serverSpectralError = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netwatch_server_spectral_error",
		Help: "Latest spectral error for a server (0=healthy, 1=noise)",
	}, []string{"rack_id", "server_id"})

	r.serverSNR = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netwatch_server_snr_db",
		Help: "Latest signal-to-noise ratio in dB for a server",
	}, []string{"rack_id", "server_id"})

	r.rackHealthScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netwatch_rack_health_score",
		Help: "Latest health score for a rack (0=failed, 1=healthy)",
	}, []string{"rack_id"})

	r.dcHealthScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netwatch_dc_health_score",
		Help: "Latest health score for a datacenter (0=failed, 1=healthy)",
	}, []string{"dc_id"})

	r.packetsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netwatch_packets_received_total",
		Help: "Cumulative packets received from a server",
	}, []string{"rack_id", "server_id"})

	r.packetsLost = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netwatch_packets_lost_total",
		Help: "Cumulative forward-gap packet losses for a server",
	}, []string{"rack_id", "server_id"})

	r.latencyMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netwatch_latency_ms",
		Help:    "Packet latency in milliseconds",
		Buckets: latencyBuckets,
	}, []string{"rack_id", "server_id"})

	r.reg.MustRegister(
		r.serverSpectralError,
		r.serverSNR,
		r.rackHealthScore,
		r.dcHealthScore,
		r.packetsReceived,
		r.packetsLost,
		r.latencyMs,
	)

	return r
}

// SetServerHealth records the latest per-server spectral health, as
// produced by one summarization pass.
func (r *Registry) SetServerHealth(rackID, serverID int, spectralError, snrDB float64) {
	labels := prometheus.Labels{"rack_id": strconv.Itoa(rackID), "server_id": strconv.Itoa(serverID)}
	r.serverSpectralError.With(labels).Set(spectralError)
	r.serverSNR.With(labels).Set(snrDB)
}

// IncPacketsReceived bumps the cumulative received-packet counter for a
// server by delta, called once per ingested datagram.
func (r *Registry) IncPacketsReceived(rackID, serverID int, delta uint64) {
	if delta == 0 {
		return
	}
	labels := prometheus.Labels{"rack_id": strconv.Itoa(rackID), "server_id": strconv.Itoa(serverID)}
	r.packetsReceived.With(labels).Add(float64(delta))
}

// IncPacketsLost bumps the cumulative forward-gap loss counter for a
// server by delta.
func (r *Registry) IncPacketsLost(rackID, serverID int, delta uint64) {
	if delta == 0 {
		return
	}
	labels := prometheus.Labels{"rack_id": strconv.Itoa(rackID), "server_id": strconv.Itoa(serverID)}
	r.packetsLost.With(labels).Add(float64(delta))
}

// ObserveLatency records one packet's latency sample in milliseconds.
func (r *Registry) ObserveLatency(rackID, serverID int, latencyMs float64) {
	labels := prometheus.Labels{"rack_id": strconv.Itoa(rackID), "server_id": strconv.Itoa(serverID)}
	r.latencyMs.With(labels).Observe(latencyMs)
}

// SetRackHealth records the latest rack-level health score.
func (r *Registry) SetRackHealth(rackID int, score float64) {
	r.rackHealthScore.With(prometheus.Labels{"rack_id": strconv.Itoa(rackID)}).Set(score)
}

// SetDCHealth records the latest datacenter-level health score.
func (r *Registry) SetDCHealth(dcID int, score float64) {
	r.dcHealthScore.With(prometheus.Labels{"dc_id": strconv.Itoa(dcID)}).Set(score)
}

// Handler returns the HTTP handler that serves the registry's series in
// the standard Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ListenAndServe starts the metrics HTTP endpoint on the given port. It
// blocks until the server stops.
func (r *Registry) ListenAndServe(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		return fmt.Errorf("metrics endpoint on %s: %w", addr, err)
	}
	return nil
}
