package config

import "testing"

func TestRackConfigDefaults(t *testing.T) {
	cfg, err := RackConfigFromEnv()
	if err != nil {
		t.Fatalf("RackConfigFromEnv: %v", err)
	}
	if cfg.UDPListenPort != 9999 {
		t.Errorf("UDPListenPort = %d, want 9999", cfg.UDPListenPort)
	}
	if cfg.DCControllerPort != 9990 {
		t.Errorf("DCControllerPort = %d, want 9990", cfg.DCControllerPort)
	}
	if cfg.MetricsPort != 8000 {
		t.Errorf("MetricsPort = %d, want 8000", cfg.MetricsPort)
	}
}

func TestRackConfigFromEnvOverride(t *testing.T) {
	t.Setenv("RACK_ID", "3")
	t.Setenv("UDP_LISTEN_PORT", "12345")

	cfg, err := RackConfigFromEnv()
	if err != nil {
		t.Fatalf("RackConfigFromEnv: %v", err)
	}
	if cfg.RackID != 3 {
		t.Errorf("RackID = %d, want 3", cfg.RackID)
	}
	if cfg.UDPListenPort != 12345 {
		t.Errorf("UDPListenPort = %d, want 12345", cfg.UDPListenPort)
	}
}

func TestRackConfigFromEnvInvalidInt(t *testing.T) {
	t.Setenv("UDP_LISTEN_PORT", "not-a-number")
	if _, err := RackConfigFromEnv(); err == nil {
		t.Fatal("expected error for invalid UDP_LISTEN_PORT")
	}
}

func TestDCConfigDefaults(t *testing.T) {
	cfg, err := DCConfigFromEnv()
	if err != nil {
		t.Fatalf("DCConfigFromEnv: %v", err)
	}
	if cfg.NumRacks != 4 {
		t.Errorf("NumRacks = %d, want 4", cfg.NumRacks)
	}
}

func TestAgentConfigDefaults(t *testing.T) {
	cfg, err := AgentConfigFromEnv()
	if err != nil {
		t.Fatalf("AgentConfigFromEnv: %v", err)
	}
	if cfg.IntervalSec != 0.05 {
		t.Errorf("IntervalSec = %v, want 0.05", cfg.IntervalSec)
	}
}
