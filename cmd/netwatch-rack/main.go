// Command netwatch-rack runs the rack-local aggregator: it listens for
// UDP wave samples from the servers in one rack, scores per-server
// spectral health on a fixed interval, and relays rack health upstream
// to the datacenter aggregator.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/netwatch/internal/config"
	"github.com/runZeroInc/netwatch/internal/metrics"
	"github.com/runZeroInc/netwatch/internal/rack"
)

func main() {
	log := logrus.WithField("cmd", "netwatch-rack")

	cfg, err := config.RackConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	go func() {
		if err := reg.ListenAndServe(cfg.MetricsPort); err != nil {
			log.WithError(err).Error("metrics endpoint stopped")
		}
	}()

	udpAddr := &net.UDPAddr{IP: net.ParseIP(cfg.UDPListenHost), Port: cfg.UDPListenPort}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		log.WithError(err).Fatal("failed to bind UDP listener")
	}
	defer udpConn.Close()

	aggregator := rack.NewAggregator(rack.Config{
		RackID: cfg.RackID,
		DCHost: cfg.DCControllerHost,
		DCPort: cfg.DCControllerPort,
	}, reg)
	defer aggregator.Close()

	log.WithFields(logrus.Fields{
		"rack_id":  cfg.RackID,
		"udp_addr": udpAddr.String(),
		"dc_addr":  cfg.DCControllerHost,
		"dc_port":  cfg.DCControllerPort,
	}).Info("rack aggregator starting")

	go aggregator.RunSummaryLoop(ctx)

	if err := aggregator.ServeUDP(ctx, udpConn); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("UDP ingress loop exited")
	}
	log.Info("rack aggregator shutting down")
}
