// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/olegiv/socmon/internal/model"
)

// Sink delivers one serialized event.
type Sink interface {
	Name() string
	Send(ctx context.Context, event Event, payload []byte) error
}

// CountryResolver maps an IP to an ISO country code, or "".
type CountryResolver interface {
	Country(ip string) string
}

// DeliveryObserver is told about every delivery attempt.
type DeliveryObserver interface {
	NotificationDelivered(sink string, err error)
}

// Config holds dispatcher configuration.
type Config struct {
	Workers   int // Number of concurrent delivery workers
	QueueSize int
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   2,
		QueueSize: 100,
	}
}

type queued struct {
	event   Event
	payload []byte
}

// Dispatcher queues events and delivers them to every sink from a pool of
// workers. A full queue drops the event.
type Dispatcher struct {
	sinks    []Sink
	geo      CountryResolver
	observer DeliveryObserver
	logger   *slog.Logger

	queue   chan queued
	workers int
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// NewDispatcher creates a Dispatcher. geo and observer may be nil.
func NewDispatcher(sinks []Sink, geo CountryResolver, observer DeliveryObserver, logger *slog.Logger, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		sinks:    sinks,
		geo:      geo,
		observer: observer,
		logger:   logger,
		queue:    make(chan queued, cfg.QueueSize),
		workers:  cfg.Workers,
		done:     make(chan struct{}),
	}
}

// Start starts the dispatcher workers. ctx bounds every delivery.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting notification dispatcher", "workers", d.workers, "sinks", len(d.sinks))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the workers after the events already queued are delivered.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping notification dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case q := <-d.queue:
			d.deliver(ctx, q)
		case <-ctx.Done():
			return
		case <-d.done:
			// Drain what is already queued
			for {
				select {
				case q := <-d.queue:
					d.deliver(ctx, q)
				default:
					d.logger.Debug("notification worker stopping", "worker_id", id)
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, q queued) {
	for _, s := range d.sinks {
		err := s.Send(ctx, q.event, q.payload)
		if d.observer != nil {
			d.observer.NotificationDelivered(s.Name(), err)
		}
		if err != nil {
			d.logger.Warn("notification delivery failed",
				"sink", s.Name(), "event_id", q.event.ID, "event_type", q.event.Type, "error", err)
			continue
		}
		d.logger.Debug("notification delivered", "sink", s.Name(), "event_id", q.event.ID)
	}
}

// Publish queues event without blocking. It reports whether the event was
// accepted.
func (d *Dispatcher) Publish(ctx context.Context, event Event) bool {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running || len(d.sinks) == 0 {
		return false
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to marshal event payload", "error", err, "event_type", event.Type)
		return false
	}

	select {
	case d.queue <- queued{event: event, payload: payload}:
		return true
	default:
		d.logger.WarnContext(ctx, "notification queue full, dropping event", "event_type", event.Type, "event_id", event.ID)
		return false
	}
}

// NotifyIncident publishes an incident.opened event for e.
func (d *Dispatcher) NotifyIncident(ctx context.Context, e model.LogEntry) {
	var country string
	if d.geo != nil {
		country = d.geo.Country(e.IP)
	}
	d.Publish(ctx, NewEvent(EventIncidentOpened, newIncidentData(e, country)))
}
