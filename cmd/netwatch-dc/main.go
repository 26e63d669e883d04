// Command netwatch-dc runs the datacenter-wide aggregator: it accepts a
// long-lived TCP connection from each rack aggregator, tracks the latest
// health report per rack, and periodically classifies fleet-wide health
// from whichever reports are still fresh.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/netwatch/internal/config"
	"github.com/runZeroInc/netwatch/internal/dc"
	"github.com/runZeroInc/netwatch/internal/metrics"
)

// reuseAddrListenConfig sets SO_REUSEADDR on the listening socket before
// bind, so a restarted DC aggregator can rebind its port immediately
// instead of waiting out TIME_WAIT on the previous process's sockets.
var reuseAddrListenConfig = net.ListenConfig{
	Control: func(network, address string, c syscall.RawConn) error {
		var opErr error
		if err := c.Control(func(fd uintptr) {
			opErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		}); err != nil {
			return err
		}
		return opErr
	},
}

func main() {
	log := logrus.WithField("cmd", "netwatch-dc")

	cfg, err := config.DCConfigFromEnv()
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

	tcpAddr := &net.TCPAddr{IP: net.ParseIP(cfg.TCPListenHost), Port: cfg.TCPListenPort}
	rawLn, err := reuseAddrListenConfig.Listen(ctx, "tcp", tcpAddr.String())
	if err != nil {
		log.WithError(err).Fatal("failed to bind TCP listener")
	}
	ln, ok := rawLn.(*net.TCPListener)
	if !ok {
		log.Fatalf("unexpected listener type %T for tcp network", rawLn)
	}

	aggregator := dc.NewAggregator(dc.Config{
		DCID:     cfg.DCID,
		NumRacks: cfg.NumRacks,
	}, reg)

	log.WithFields(logrus.Fields{
		"dc_id":     cfg.DCID,
		"tcp_addr":  tcpAddr.String(),
		"num_racks": cfg.NumRacks,
	}).Info("datacenter aggregator starting")

	go aggregator.RunSummaryLoop(ctx)

	if err := aggregator.Serve(ctx, ln); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("TCP listener exited")
	}
	log.Info("datacenter aggregator shutting down")
}
