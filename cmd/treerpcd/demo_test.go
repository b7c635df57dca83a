// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/treerpc/bridge"
	"github.com/luxfi/treerpc/tree"
)

func TestPowerSupply(t *testing.T) {
	require := require.New(t)

	state := tree.NewStateManager(newPowerSupply())
	iface := bridge.New(state, bridge.WithMethodParameters(true))
	assert.Equal(t, "PowerSupply", iface.Name())

	require.NoError(iface.SetParam("voltage", 12))
	require.NoError(iface.SetParam("current", 1.5))
	require.NoError(iface.SetParam("mode", "CC"))
	require.NoError(iface.SetParam("output", true))
	require.NoError(iface.SetParam("presets[0]", 1.8))

	v, err := iface.GetParam("power")
	require.NoError(err)
	assert.Equal(t, 18.0, v)

	v, err = iface.GetParam("presets[0]")
	require.NoError(err)
	assert.Equal(t, 1.8, v)

	out, err := iface.RemoteCall("configure", 4, 0.25)
	require.NoError(err)
	assert.Equal(t, "gain=4 offset=0.25", out)
	v, err = iface.GetParam("channel.gain")
	require.NoError(err)
	assert.Equal(t, 4, v)

	_, err = iface.RemoteCall("configure", 0, 0.0)
	assert.ErrorIs(t, err, bridge.ErrCallFailure)

	v, err = iface.GetParam("mode")
	require.NoError(err)
	assert.Equal(t, "constant current", v)

	_, err = iface.RemoteCall("reset")
	require.NoError(err)
	v, err = iface.GetParam("mode")
	require.NoError(err)
	assert.Equal(t, "OFF", v)
	v, err = iface.GetParam("power")
	require.NoError(err)
	assert.Equal(t, 0.0, v)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 3.3, parseValue("3.3"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "CC", parseValue("CC"))
	assert.Equal(t, `"quoted"`, parseValue(`"\"quoted\""`))
	assert.Equal(t, map[string]any{"magnitude": 1.0, "unit": "V"}, parseValue(`{"magnitude":1,"unit":"V"}`))
	assert.Nil(t, parseValue("null"))
}

func TestPrintNotification(t *testing.T) {
	var buf bytes.Buffer
	printNotification(&buf, "notify", []byte(`{"name":"current","value":{"magnitude":1,"unit":"A"}}`))
	printNotification(&buf, "notify", []byte(`"hello"`))
	assert.Equal(t, "current = {\"magnitude\":1,\"unit\":\"A\"}\nnotify \"hello\"\n", buf.String())
}
