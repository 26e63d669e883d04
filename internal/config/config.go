// Package config loads the three NetWatch process configurations from
// the environment: a typed getEnvInt/getEnvFloat/getEnvString layer over
// os.LookupEnv, with defaults baked into each *ConfigFromEnv call.
package config

import (
	"fmt"
	"os"
	"strconv"
)

func getEnvInt(name string, def int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", name, v, err)
	}
	return n, nil
}

func getEnvFloat(name string, def float64) (float64, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", name, v, err)
	}
	return f, nil
}

func getEnvString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

// AgentConfig configures the leaf wave-emitter (cmd/netwatch-agent).
type AgentConfig struct {
	RackID             int
	ServerID           int
	RackControllerHost string
	RackControllerPort int
	IntervalSec        float64
}

// AgentConfigFromEnv reads RACK_ID, SERVER_ID, RACK_CONTROLLER_HOST,
// RACK_CONTROLLER_PORT and INTERVAL_SEC.
func AgentConfigFromEnv() (AgentConfig, error) {
	rackID, err := getEnvInt("RACK_ID", 0)
	if err != nil {
		return AgentConfig{}, err
	}
	serverID, err := getEnvInt("SERVER_ID", 0)
	if err != nil {
		return AgentConfig{}, err
	}
	port, err := getEnvInt("RACK_CONTROLLER_PORT", 9999)
	if err != nil {
		return AgentConfig{}, err
	}
	interval, err := getEnvFloat("INTERVAL_SEC", 0.05)
	if err != nil {
		return AgentConfig{}, err
	}
	return AgentConfig{
		RackID:             rackID,
		ServerID:           serverID,
		RackControllerHost: getEnvString("RACK_CONTROLLER_HOST", "127.0.0.1"),
		RackControllerPort: port,
		IntervalSec:        interval,
	}, nil
}

// RackConfig configures the rack aggregator (cmd/netwatch-rack).
type RackConfig struct {
	RackID           int
	UDPListenHost    string
	UDPListenPort    int
	DCControllerHost string
	DCControllerPort int
	MetricsPort      int
}

// RackConfigFromEnv reads RACK_ID, UDP_LISTEN_HOST, UDP_LISTEN_PORT,
// DC_CONTROLLER_HOST, DC_CONTROLLER_PORT and METRICS_PORT.
func RackConfigFromEnv() (RackConfig, error) {
	rackID, err := getEnvInt("RACK_ID", 0)
	if err != nil {
		return RackConfig{}, err
	}
	udpPort, err := getEnvInt("UDP_LISTEN_PORT", 9999)
	if err != nil {
		return RackConfig{}, err
	}
	dcPort, err := getEnvInt("DC_CONTROLLER_PORT", 9990)
	if err != nil {
		return RackConfig{}, err
	}
	metricsPort, err := getEnvInt("METRICS_PORT", 8000)
	if err != nil {
		return RackConfig{}, err
	}
	return RackConfig{
		RackID:           rackID,
		UDPListenHost:    getEnvString("UDP_LISTEN_HOST", "0.0.0.0"),
		UDPListenPort:    udpPort,
		DCControllerHost: getEnvString("DC_CONTROLLER_HOST", "127.0.0.1"),
		DCControllerPort: dcPort,
		MetricsPort:      metricsPort,
	}, nil
}

// DCConfig configures the datacenter aggregator (cmd/netwatch-dc).
type DCConfig struct {
	DCID          int
	TCPListenHost string
	TCPListenPort int
	NumRacks      int
	MetricsPort   int
}

// DCConfigFromEnv reads DC_ID, TCP_LISTEN_HOST, TCP_LISTEN_PORT,
// NUM_RACKS and METRICS_PORT.
func DCConfigFromEnv() (DCConfig, error) {
	dcID, err := getEnvInt("DC_ID", 0)
	if err != nil {
		return DCConfig{}, err
	}
	tcpPort, err := getEnvInt("TCP_LISTEN_PORT", 9990)
	if err != nil {
		return DCConfig{}, err
	}
	numRacks, err := getEnvInt("NUM_RACKS", 4)
	if err != nil {
		return DCConfig{}, err
	}
	metricsPort, err := getEnvInt("METRICS_PORT", 8000)
	if err != nil {
		return DCConfig{}, err
	}
	return DCConfig{
		DCID:          dcID,
		TCPListenHost: getEnvString("TCP_LISTEN_HOST", "0.0.0.0"),
		TCPListenPort: tcpPort,
		NumRacks:      numRacks,
		MetricsPort:   metricsPort,
	}, nil
}
