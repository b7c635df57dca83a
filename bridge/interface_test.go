// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/treerpc/tree"
)

func TestIdentity(t *testing.T) {
	f := newFixture(t)
	i := New(f.state, WithInfo(map[string]any{"lab": "B12"}))

	assert.Equal(t, "treerpc v"+Version, i.Version())
	assert.Equal(t, "Instrument", i.Name())
	assert.Equal(t, map[string]any{"lab": "B12"}, i.Info())
	assert.Empty(t, New(f.state).Info())
}

func TestGetProps(t *testing.T) {
	f := newFixture(t)

	t.Run("plain", func(t *testing.T) {
		props, err := New(f.state).GetProps()
		require.NoError(t, err)
		assert.ElementsMatch(t, f.root.Names(), keys(props))

		configure, ok := tree.AsNode(props["configure"])
		require.True(t, ok)
		assert.Equal(t, tree.TypeMethod, configure.Type())
		assert.NotContains(t, configure, "parameters")
	})

	t.Run("enriched does not touch the cache", func(t *testing.T) {
		props, err := New(f.state, WithMethodParameters(true)).GetProps()
		require.NoError(t, err)
		configure, _ := tree.AsNode(props["configure"])
		assert.Equal(t, map[string]any{"gain": "int", "offset": "float"}, configure["parameters"])

		cached, err := LookupNode(f.state.CacheValue(), "configure")
		require.NoError(t, err)
		assert.NotContains(t, cached, "parameters")
	})

	t.Run("getter failure is serialized", func(t *testing.T) {
		root := tree.NewObject("Broken").
			AddProperty("reading", func() (any, error) { return nil, errDevice }, nil)
		props, err := New(tree.NewStateManager(root)).GetProps()
		require.NoError(t, err)
		reading, _ := tree.AsNode(props["reading"])
		assert.Equal(t, tree.TypeException, reading.Type())
		assert.Equal(t, errDevice.Error(), reading.Value())
	})
}

func TestGetPropsIsRepeatable(t *testing.T) {
	for _, enrich := range []bool{false, true} {
		t.Run(fmt.Sprintf("parameters=%t", enrich), func(t *testing.T) {
			f := newFixture(t)
			i := New(f.state, WithMethodParameters(enrich))

			first, err := i.GetProps()
			require.NoError(t, err)
			second, err := i.GetProps()
			require.NoError(t, err)
			assert.Equal(t, first, second)

			assert.Equal(t, tree.Dump(f.root), f.state.CacheValue())
			cached, err := LookupNode(f.state.CacheValue(), "configure")
			require.NoError(t, err)
			assert.NotContains(t, cached, "parameters")
		})
	}
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestGetParam(t *testing.T) {
	f := newFixture(t)
	i := New(f.state)

	cases := []struct {
		path string
		want any
	}{
		{"count", 3},
		{"voltage", 5.0},
		{"mode", "A"},
		{"status", "green"},
		{"current", 1.0},
		{"ratio", 0.5},
		{"channel.gain", 2},
		{"channels[0].gain", 0},
		{"configure", "configure(gain, offset)"},
	}
	for _, c := range cases {
		t.Run(c.path, func(t *testing.T) {
			v, err := i.GetParam(c.path)
			require.NoError(t, err)
			assert.Equal(t, c.want, v)
		})
	}

	t.Run("object", func(t *testing.T) {
		v, err := i.GetParam("channel")
		require.NoError(t, err)
		n, ok := v.(tree.Node)
		require.True(t, ok)
		assert.Equal(t, "Channel", n["name"])
	})

	t.Run("enriched method", func(t *testing.T) {
		v, err := New(f.state, WithMethodParameters(true)).GetParam("configure")
		require.NoError(t, err)
		n, ok := v.(tree.Node)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"gain": "int", "offset": "float"}, n["parameters"])
		assert.Equal(t, "Apply gain and offset.", n.Doc())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := i.GetParam("no.such.attr")
		require.ErrorIs(t, err, ErrPathNotFound)
		assert.Contains(t, err.Error(), "no.such.attr")
	})
}

func TestSetThenGet(t *testing.T) {
	f := newFixture(t)
	i := New(f.state)

	require.NoError(t, i.SetParam("mode", 1))
	v, err := i.GetParam("mode")
	require.NoError(t, err)
	assert.Equal(t, "B", v)

	require.NoError(t, i.SetParam("voltage", 3.3))
	v, err = i.GetParam("voltage")
	require.NoError(t, err)
	assert.Equal(t, 3.3, v)

	require.NoError(t, i.SetParam("channels[1].gain", 9.0))
	v, err = i.GetParam("channels[1].gain")
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestRemoteCall(t *testing.T) {
	f := newFixture(t)
	i := New(f.state)

	t.Run("arguments are converted", func(t *testing.T) {
		v, err := i.RemoteCall("configure", 3.0, 1)
		require.NoError(t, err)
		assert.Equal(t, "gain=3 offset=1", v)
	})

	t.Run("nested method", func(t *testing.T) {
		v, err := i.RemoteCall("channel.reset")
		require.NoError(t, err)
		assert.Equal(t, "reset", v)
	})

	t.Run("result is not simplified", func(t *testing.T) {
		q := tree.Q(2, "V")
		v, err := i.RemoteCall("echo", q)
		require.NoError(t, err)
		assert.Equal(t, q, v)
	})

	t.Run("callee error", func(t *testing.T) {
		_, err := i.RemoteCall("fail")
		assert.ErrorIs(t, err, ErrCallFailure)
		assert.ErrorIs(t, err, errDevice)
	})

	t.Run("wrong arity", func(t *testing.T) {
		_, err := i.RemoteCall("configure", 1)
		assert.ErrorIs(t, err, ErrCallFailure)
		assert.ErrorIs(t, err, tree.ErrArgument)
	})

	t.Run("not a method", func(t *testing.T) {
		_, err := i.RemoteCall("count")
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := i.RemoteCall("nope")
		assert.ErrorIs(t, err, ErrPathNotFound)
	})
}

func TestObserver(t *testing.T) {
	f := newFixture(t)
	obs := &recordingObserver{}
	i := New(f.state, WithObserver(obs))

	_, _ = i.GetParam("count")
	_ = i.SetParam("nope", 1)
	_, _ = i.RemoteCall("channel.reset")

	require.Len(t, obs.calls, 3)
	assert.Equal(t, "get_param", obs.calls[0].op)
	assert.NoError(t, obs.calls[0].err)
	assert.Equal(t, "set_param", obs.calls[1].op)
	assert.ErrorIs(t, obs.calls[1].err, ErrPathNotFound)
	assert.Equal(t, "remote_call", obs.calls[2].op)
}

type inbox struct {
	mu  sync.Mutex
	got []any
}

func (b *inbox) deliver(m any) {
	b.mu.Lock()
	b.got = append(b.got, m)
	b.mu.Unlock()
}

func TestNotify(t *testing.T) {
	f := newFixture(t)
	i := New(f.state)

	// Without a notifier messages are dropped.
	i.Emit("nobody listens")

	box := &inbox{}
	i.SetNotifier(box.deliver)
	i.Emit("hello")
	i.Watch(f.state)

	require.NoError(t, i.SetParam("current", 4))
	require.NoError(t, i.SetParam("mode", "C"))
	require.NoError(t, i.SetParam("channel.gain", 5))
	require.NoError(t, i.SetParam("voltage", 1))

	assert.Equal(t, []any{
		"hello",
		Notification{Name: "current", Value: 4.0},
		Notification{Name: "mode", Value: "C"},
		Notification{Name: "channel.gain", Value: 5},
		Notification{Name: "voltage", Value: 1.0},
	}, box.got)
}

func TestChangeNotificationKeepsNonSliderValue(t *testing.T) {
	f := newFixture(t)
	i := New(f.state)

	root := tree.NewObject("Root").AddField("box", tree.NewObject("Box").AddField("value", 1))
	j := New(tree.NewStateManager(root))

	assert.Equal(t, Notification{Name: "box.value", Value: 1}, j.ChangeNotification("box.value", 1))
	assert.Equal(t, Notification{Name: "ratio", Value: 0.2}, i.ChangeNotification("ratio.value", 0.2))
}
