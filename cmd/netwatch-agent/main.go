// Command netwatch-agent is the leaf wave emitter: a thin reference
// sender so the rack/DC aggregators can be exercised end to end without
// a separate emitter implementation.
package main

import (
	"context"
	"math"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/netwatch/internal/config"
	"github.com/runZeroInc/netwatch/internal/netwave"
)

func main() {
	log := logrus.WithField("cmd", "netwatch-agent")

	cfg, err := config.AgentConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	freqHz := netwave.ExpectedFrequencyHz(cfg.RackID, cfg.ServerID)
	target := net.JoinHostPort(cfg.RackControllerHost, strconv.Itoa(cfg.RackControllerPort))
	log.WithFields(logrus.Fields{
		"rack_id":   cfg.RackID,
		"server_id": cfg.ServerID,
		"freq_hz":   freqHz,
		"target":    target,
	}).Info("server agent starting")

	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		log.WithError(err).Fatal("failed to resolve rack controller address")
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.WithError(err).Fatal("failed to open UDP socket")
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(cfg.IntervalSec * float64(time.Second)))
	defer ticker.Stop()

	start := time.Now()
	var seq int64
	for {
		select {
		case <-ctx.Done():
			log.Info("server agent exiting")
			return
		case <-ticker.C:
			now := time.Now()
			t := now.Sub(start).Seconds()
			wave := math.Sin(2 * math.Pi * freqHz * t)

			packet := netwave.SamplePacket{
				RackID:     cfg.RackID,
				ServerID:   cfg.ServerID,
				Seq:        seq,
				SentTS:     float64(now.UnixNano()) / 1e9,
				WaveSample: wave,
			}
			b, err := packet.Encode()
			if err != nil {
				log.WithError(err).Warn("failed to encode sample packet")
				continue
			}
			if _, err := conn.Write(b); err != nil {
				log.WithError(err).Warn("failed to send sample packet")
			}
			seq++
		}
	}
}
