// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads treerpcd settings from TREERPC_* environment
// variables. Command line flags override the loaded values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/treerpc"
)

const envPrefix = "TREERPC_"

// Config is the daemon configuration.
type Config struct {
	// Listeners maps a transport name to its listen address.
	Listeners map[string]string
	// Addr and Transport select the server the client commands talk to.
	Addr      string
	Transport string

	LogLevel         string
	MethodParameters bool
	MetricsAddr      string

	MQTT   MQTT
	Influx Influx
}

// MQTT configures the notification fan-out. An empty Broker disables it.
type MQTT struct {
	Broker      string
	ClientID    string
	User        string
	Password    string
	TopicPrefix string
	Retries     int
	BreakerOpen time.Duration
	BreakerTrip int
}

// Influx configures change history. An empty URL disables it.
type Influx struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

func getenv(k, d string) string {
	if v := os.Getenv(envPrefix + k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(envPrefix + k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(envPrefix + k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

// Load reads the environment.
func Load() Config {
	return Config{
		Listeners:        ParseListeners(getenv("LISTEN", "zap=127.0.0.1:9400")),
		Addr:             getenv("ADDR", "127.0.0.1:9400"),
		Transport:        getenv("TRANSPORT", treerpc.DefaultTransport),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		MethodParameters: getenvBool("METHOD_PARAMETERS", false),
		MetricsAddr:      getenv("METRICS_ADDR", ""),
		MQTT: MQTT{
			Broker:      getenv("MQTT_BROKER", ""),
			ClientID:    getenv("MQTT_CLIENT_ID", "treerpcd"),
			User:        getenv("MQTT_USER", ""),
			Password:    getenv("MQTT_PASSWORD", ""),
			TopicPrefix: getenv("MQTT_TOPIC_PREFIX", "treerpc"),
			Retries:     getenvInt("MQTT_RETRIES", 5),
			BreakerOpen: time.Duration(getenvInt("MQTT_BREAKER_OPEN_MS", 10000)) * time.Millisecond,
			BreakerTrip: getenvInt("MQTT_BREAKER_FAILS", 3),
		},
		Influx: Influx{
			URL:         getenv("INFLUX_URL", ""),
			Token:       getenv("INFLUX_TOKEN", ""),
			Org:         getenv("INFLUX_ORG", "lab"),
			Bucket:      getenv("INFLUX_BUCKET", "treerpc"),
			Measurement: getenv("INFLUX_MEASUREMENT", "parameter"),
		},
	}
}

// ParseListeners parses "zap=:9400,json=:9401". A bare address uses the
// default transport. Malformed entries are kept so Validate can report them.
func ParseListeners(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, addr, ok := strings.Cut(part, "=")
		if !ok {
			name, addr = treerpc.DefaultTransport, part
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(addr)
	}
	return out
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	for name, addr := range c.Listeners {
		if !treerpc.HasTransport(name) {
			errs = append(errs, fmt.Errorf("listener %q: unknown transport (have %v)", name, treerpc.AvailableTransports()))
		}
		if addr == "" {
			errs = append(errs, fmt.Errorf("listener %q: empty address", name))
		}
	}
	if !treerpc.HasTransport(c.Transport) {
		errs = append(errs, fmt.Errorf("transport %q: unknown (have %v)", c.Transport, treerpc.AvailableTransports()))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("empty server address"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.MQTT.Broker != "" && c.MQTT.Retries < 1 {
		errs = append(errs, fmt.Errorf("mqtt retries must be positive, got %d", c.MQTT.Retries))
	}
	if c.Influx.URL != "" && c.Influx.Bucket == "" {
		errs = append(errs, errors.New("influx bucket is required"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}
