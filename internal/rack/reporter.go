package rack

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/netwatch/internal/netwave"
)

// reporter is the rack aggregator's upstream TCP client. It is a minimal
// Disconnected -> Connected -> Disconnected-on-error state machine: at
// most one socket is ever held open, dialed lazily on first use or after
// any prior failure, and reset (not retried) the moment a write fails.
type reporter struct {
	host string
	port int
	log  *logrus.Entry

	mu   sync.Mutex
	conn net.Conn
}

func newReporter(host string, port int, log *logrus.Entry) *reporter {
	return &reporter{host: host, port: port, log: log}
}

// Report sends one rack report frame upstream. Failures are logged and
// swallowed: the summarizer must never block or abort on a reporter
// error, and a dropped report is simply lost (no buffering, no retry
// within the interval).
func (r *reporter) Report(report netwave.RackReport) {
	frame, err := report.Frame()
	if err != nil {
		r.log.WithError(err).Warn("failed to encode rack report")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		addr := fmt.Sprintf("%s:%d", r.host, r.port)
		conn, dialErr := net.DialTimeout("tcp", addr, 5*time.Second)
		if dialErr != nil {
			r.log.WithError(dialErr).Warn("failed to connect to DC controller")
			return
		}
		r.conn = conn
		r.log.WithField("dc_addr", addr).Info("connected to DC controller")
	}

	if _, writeErr := r.conn.Write(frame); writeErr != nil {
		r.log.WithError(writeErr).Warn("failed to report to DC controller, resetting connection")
		r.conn.Close()
		r.conn = nil
	}
}

// Close releases the cached upstream connection, if any.
func (r *reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
