// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package history

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/treerpc/bridge"
	"github.com/luxfi/treerpc/tree"
)

type memWriter struct {
	points  []*write.Point
	flushes int
}

func (m *memWriter) WritePoint(p *write.Point) { m.points = append(m.points, p) }
func (m *memWriter) Flush()                    { m.flushes++ }

func TestRecord(t *testing.T) {
	w := &memWriter{}
	r := NewRecorder(w, "parameter", slog.Default())
	r.now = func() time.Time { return time.Unix(10, 0) }

	r.Record(bridge.Notification{Name: "voltage", Value: 1.5})
	r.Record(bridge.Notification{Name: "channels[1].gain", Value: 3})
	r.Record(bridge.Notification{Name: "mode", Value: "B"})
	r.Record(bridge.Notification{Name: "limits", Value: map[string]any{"upper": 2}})
	r.Record(bridge.Notification{Name: "note", Value: nil})
	r.Flush()

	require.Len(t, w.points, 4)
	lines := make([]string, len(w.points))
	for i, p := range w.points {
		lines[i] = strings.TrimSpace(write.PointToLineProtocol(p, time.Second))
	}
	assert.Equal(t, "parameter,path=voltage value=1.5 10", lines[0])
	assert.Equal(t, "parameter,path=channels[1].gain value=3i 10", lines[1])
	assert.Equal(t, "parameter,path=mode value=\"B\" 10", lines[2])
	assert.Equal(t, `parameter,path=limits value="{\"upper\":2}" 10`, lines[3])
	assert.Equal(t, 1, w.flushes)
}

func TestRecordFromState(t *testing.T) {
	root := tree.NewObject("Supply").
		AddField("current", tree.NewNumberSlider(tree.Q(1, "A"), 0, 2, 0.1))
	state := tree.NewStateManager(root)
	iface := bridge.New(state)

	w := &memWriter{}
	r := NewRecorder(w, "parameter", slog.Default())
	iface.Subscribe(state, r.Record)

	require.NoError(t, iface.SetParam("current", 1.25))
	require.Len(t, w.points, 1)
	assert.Contains(t, write.PointToLineProtocol(w.points[0], time.Second), "path=current value=1.25")
}
