// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c := Load()
	assert.Equal(t, map[string]string{"zap": "127.0.0.1:9400"}, c.Listeners)
	assert.Equal(t, "zap", c.Transport)
	assert.Equal(t, "treerpc", c.MQTT.TopicPrefix)
	assert.Empty(t, c.MQTT.Broker)
	assert.NoError(t, c.Validate())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("TREERPC_LISTEN", "zap=:9000, json=:9001")
	t.Setenv("TREERPC_METHOD_PARAMETERS", "true")
	t.Setenv("TREERPC_LOG_LEVEL", "debug")
	t.Setenv("TREERPC_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("TREERPC_MQTT_BREAKER_OPEN_MS", "250")
	t.Setenv("TREERPC_MQTT_RETRIES", "not-a-number")

	c := Load()
	assert.Equal(t, map[string]string{"zap": ":9000", "json": ":9001"}, c.Listeners)
	assert.True(t, c.MethodParameters)
	assert.Equal(t, "tcp://broker:1883", c.MQTT.Broker)
	assert.Equal(t, 250*time.Millisecond, c.MQTT.BreakerOpen)
	assert.Equal(t, 5, c.MQTT.Retries, "malformed numbers keep the default")
	require.NoError(t, c.Validate())
}

func TestParseListeners(t *testing.T) {
	assert.Equal(t, map[string]string{"zap": ":1"}, ParseListeners(":1"))
	assert.Equal(t, map[string]string{"json": ":2", "zap": ":1"}, ParseListeners("zap=:1,,json=:2"))
	assert.Empty(t, ParseListeners(""))
}

func TestValidate(t *testing.T) {
	c := Load()
	c.Listeners = map[string]string{"smoke": ":1", "json": ""}
	c.Transport = "smoke"
	c.LogLevel = "loud"
	c.MQTT.Broker = "tcp://b:1883"
	c.MQTT.Retries = 0

	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`listener "smoke": unknown transport`,
		`listener "json": empty address`,
		`transport "smoke"`,
		`log level "loud"`,
		"mqtt retries",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}
