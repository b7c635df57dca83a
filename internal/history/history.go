// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package history writes every parameter change to InfluxDB.
package history

import (
	"encoding/json"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/luxfi/treerpc/bridge"
	"github.com/luxfi/treerpc/internal/config"
)

// pointWriter is the part of api.WriteAPI the recorder uses.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// Recorder turns notifications into points.
type Recorder struct {
	w           pointWriter
	measurement string
	log         *slog.Logger
	now         func() time.Time
}

func NewRecorder(w pointWriter, measurement string, log *slog.Logger) *Recorder {
	return &Recorder{w: w, measurement: measurement, log: log, now: time.Now}
}

// Open connects to InfluxDB with the non-blocking write API. Asynchronous
// write errors are logged. The returned func flushes and closes the client.
func Open(cfg config.Influx, log *slog.Logger) (*Recorder, func()) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Error("influx write error", "bucket", cfg.Bucket, "err", err)
		}
	}()
	r := NewRecorder(writeAPI, cfg.Measurement, log)
	return r, func() {
		writeAPI.Flush()
		client.Close()
	}
}

// Record writes n as <measurement>,path=<name> value=<value>.
func (r *Recorder) Record(n bridge.Notification) {
	value, ok := fieldValue(n.Value)
	if !ok {
		r.log.Debug("change not recorded", "path", n.Name)
		return
	}
	r.w.WritePoint(influxdb2.NewPoint(
		r.measurement,
		map[string]string{"path": n.Name},
		map[string]any{"value": value},
		r.now(),
	))
}

// fieldValue converts v to a line protocol field value. Structured values
// are stored as JSON text.
func fieldValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case bool, string, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x, true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return string(b), true
}

// Flush writes buffered points.
func (r *Recorder) Flush() {
	r.w.Flush()
}
