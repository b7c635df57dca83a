// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package notify republishes bridge change notifications on an MQTT broker,
// one topic per parameter path.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/luxfi/treerpc/bridge"
	"github.com/luxfi/treerpc/tree"
)

const queueSize = 256

// Envelope is the published message body.
type Envelope struct {
	ID    string    `json:"id"`
	Time  time.Time `json:"time"`
	Name  string    `json:"name"`
	Value any       `json:"value"`
}

// Settings configures a Sink.
type Settings struct {
	TopicPrefix string
	// BreakerTrip consecutive failures open the breaker for BreakerOpen.
	BreakerTrip int
	BreakerOpen time.Duration
	// OnResult, if set, is told about every publish attempt.
	OnResult func(err error)
	Logger   *slog.Logger
}

// Sink queues notifications and publishes them through a circuit breaker.
type Sink struct {
	pub      Publisher
	prefix   string
	cb       *gobreaker.CircuitBreaker
	onResult func(error)
	log      *slog.Logger
	queue    chan bridge.Notification
	now      func() time.Time
}

func NewSink(pub Publisher, s Settings) *Sink {
	trip := s.BreakerTrip
	if trip < 1 {
		trip = 1
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	sink := &Sink{
		pub:      pub,
		prefix:   strings.TrimSuffix(s.TopicPrefix, "/"),
		onResult: s.OnResult,
		log:      log,
		queue:    make(chan bridge.Notification, queueSize),
		now:      time.Now,
	}
	sink.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-notify",
		Timeout: s.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(trip)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return sink
}

// Deliver queues n without blocking. When the queue is full n is dropped.
func (s *Sink) Deliver(n bridge.Notification) {
	select {
	case s.queue <- n:
	default:
		s.log.Warn("notification queue full, dropping", "name", n.Name)
	}
}

// Run publishes queued notifications until ctx is done.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.queue:
			if err := s.Publish(n); err != nil {
				s.log.Warn("notification not published", "name", n.Name, "err", err)
			}
		}
	}
}

// Publish sends n immediately.
func (s *Sink) Publish(n bridge.Notification) error {
	payload, err := json.Marshal(Envelope{
		ID:    uuid.NewString(),
		Time:  s.now().UTC(),
		Name:  n.Name,
		Value: n.Value,
	})
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", n.Name, err)
	}

	_, err = s.cb.Execute(func() (any, error) {
		return nil, s.pub.Publish(s.Topic(n.Name), payload)
	})
	if s.onResult != nil {
		s.onResult(err)
	}
	return err
}

// Topic maps a parameter path to its topic: channels[1].gain becomes
// <prefix>/channels/1/gain.
func (s *Sink) Topic(path string) string {
	parts := []string{s.prefix}
	segs, err := tree.ParsePath(path)
	if err != nil {
		return s.prefix + "/" + strings.ReplaceAll(path, ".", "/")
	}
	for _, seg := range segs {
		if seg.Kind == tree.SegIndex {
			parts = append(parts, strconv.Itoa(seg.Index))
		} else {
			parts = append(parts, seg.Name)
		}
	}
	return strings.Join(parts, "/")
}
