package dc

import (
	"net"
	"testing"
	"time"

	"github.com/runZeroInc/netwatch/internal/netwave"
)

func dialAndSend(t *testing.T, addr *net.TCPAddr, reports ...netwave.RackReport) net.Conn {
	t.Helper()
	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	for _, r := range reports {
		frame, err := r.Frame()
		if err != nil {
			t.Fatalf("frame: %v", err)
		}
		if _, err := conn.Write(frame); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return conn
}

func TestApplyReportUpsertsLatestPerRack(t *testing.T) {
	a := NewAggregator(Config{DCID: 0, NumRacks: 1}, nil)
	log := testLogger()

	a.applyReport(netwave.RackReport{RackID: 1, HealthScore: 0.9, ServerCount: 3, Timestamp: 1.0}, log)
	if a.RackCount() != 1 {
		t.Fatalf("rack count = %d, want 1", a.RackCount())
	}

	a.applyReport(netwave.RackReport{RackID: 1, HealthScore: 0.4, ServerCount: 3, Timestamp: 2.0}, log)
	a.mu.RLock()
	got := a.reports[1].report.HealthScore
	a.mu.RUnlock()
	if got != 0.4 {
		t.Fatalf("overwritten health_score = %v, want 0.4 (new report for existing rack replaces the old one)", got)
	}
}

// TestStaleReportExcludedFromSummary stores a report whose embedded
// timestamp is past the freshness window and runs SummarizeOnce through
// the all-stale branch. No metrics registry is attached, so it checks the
// freshness math and that the summary completes, not the absence of a
// DC score.
func TestStaleReportExcludedFromSummary(t *testing.T) {
	a := NewAggregator(Config{DCID: 0, NumRacks: 1}, nil)
	staleTS := nowSeconds() - 35
	a.mu.Lock()
	a.reports[1] = record{
		report: netwave.RackReport{RackID: 1, HealthScore: 0.9, ServerCount: 1, Timestamp: staleTS},
	}
	a.mu.Unlock()

	// SummarizeOnce should run to completion without panicking and
	// without treating the stale rack as fresh; there's no externally
	// observable score when nothing passes the gate, so this test
	// exercises the "all stale" branch directly via the freshness math.
	age := nowSeconds() - staleTS
	if age < freshnessWindow.Seconds() {
		t.Fatalf("test setup bug: age %v should exceed freshness window %v", age, freshnessWindow.Seconds())
	}
	a.SummarizeOnce()
}

func TestConnectionHandlerDecodesNewlineFramedReports(t *testing.T) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	a := NewAggregator(Config{DCID: 0, NumRacks: 1}, nil)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		a.handleConn(conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	conn := dialAndSend(t, addr,
		netwave.RackReport{RackID: 2, HealthScore: 0.95, ServerCount: 4, Timestamp: 100},
	)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.RackCount() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for report to be applied")
}

func TestConnectionHandlerSkipsUnparseableLines(t *testing.T) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	a := NewAggregator(Config{DCID: 0, NumRacks: 1}, nil)
	done := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		a.handleConn(conn)
		close(done)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Write([]byte("not json\n"))
	conn.Write([]byte(`{"health_score": 0.5, "server_count": 1, "timestamp": 5}` + "\n"))
	frame, _ := netwave.RackReport{RackID: 9, HealthScore: 0.5, ServerCount: 1, Timestamp: 5}.Frame()
	conn.Write(frame)
	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not terminate after connection close")
	}
	if a.RackCount() != 1 {
		t.Fatalf("rack count = %d, want 1 (garbage and missing-rack_id lines skipped, valid one applied)", a.RackCount())
	}
}
