// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/metrics"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second

	// DefaultBuffer is the channel size used when a subscriber does not ask for a specific one.
	DefaultBuffer = 64

	msPerSecondToKmh = 3.6
)

// Provider defines an interface for location sensors. A provider streams samples until the
// context is cancelled or the sensor goes away, in which case the channel is closed.
type Provider interface {
	Name() string
	SampleStream(ctx context.Context) <-chan Sample
}

// Sample is a single position report of the location sensor.
type Sample struct {
	Lat, Lon       float64
	Alt            float64
	AccuracyMeters float64
	// SpeedMps is the ground speed in meters per second, NaN if the sensor did not report one.
	SpeedMps float64
	// Heading is the course over ground in degrees from true north, NaN if unknown.
	Heading float64
	Source  string
	At      time.Time
}

// Point returns the sample position as geomath.Point.
func (s Sample) Point() geomath.Point {
	return geomath.NewPoint(s.Lat, s.Lon)
}

// SpeedKmh returns the reported speed in km/h rounded to a whole number, or zero if unknown.
func (s Sample) SpeedKmh() float64 {
	if math.IsNaN(s.SpeedMps) || s.SpeedMps < 0 {
		return 0
	}
	return math.Round(s.SpeedMps * msPerSecondToKmh)
}

// HeadingOrZero returns the heading or zero if the sensor did not report one.
func (s Sample) HeadingOrZero() float64 {
	if math.IsNaN(s.Heading) {
		return 0
	}
	return s.Heading
}

// Subscriber is implemented by the GeoBus. Components depend on it instead of the bus itself.
type Subscriber interface {
	Subscribe(opts SubscribeOptions) (<-chan Sample, func())
}

// SubscribeOptions configures a subscription on the GeoBus.
type SubscribeOptions struct {
	// Buffer is the channel size. Samples are dropped for this subscriber when the buffer is full.
	Buffer int
	// MinDistance coalesces samples closer than this many meters to the last delivered sample.
	MinDistance float64
	// Replay delivers the last known sample right away if it is not older than MaxAge.
	Replay bool
	MaxAge time.Duration
}

type subscriber struct {
	ch          chan Sample
	minDistance float64
	last        Sample
	haveLast    bool
}

// GeoBus fans out the canonical stream of position samples to independent subscribers.
type GeoBus struct {
	mu       sync.RWMutex
	logger   *logger.Logger
	metrics  *metrics.Metrics
	last     Sample
	haveLast bool
	subs     map[*subscriber]struct{}
}

// Option configures a GeoBus.
type Option func(*GeoBus)

// WithMetrics counts published samples per source.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *GeoBus) {
		b.metrics = m
	}
}

// New initializes and returns a new instance of GeoBus.
func New(logger *logger.Logger, opts ...Option) *GeoBus {
	bus := &GeoBus{
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

func (b *GeoBus) NewOrchestrator(providers []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: providers,
	}
}

// Subscribe adds a subscriber and returns its sample channel and an unsubscribe function. The
// unsubscribe function closes the channel and may be called more than once.
func (b *GeoBus) Subscribe(opts SubscribeOptions) (<-chan Sample, func()) {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	sub := &subscriber{
		ch:          make(chan Sample, opts.Buffer),
		minDistance: opts.MinDistance,
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	if opts.Replay && b.haveLast && (opts.MaxAge <= 0 || time.Since(b.last.At) <= opts.MaxAge) {
		sub.deliver(b.last)
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}

	return sub.ch, unsub
}

// Publish hands a sample to all subscribers. Invalid coordinates and samples older than the last
// published one are dropped, so each subscription sees non-decreasing timestamps.
func (b *GeoBus) Publish(s Sample) {
	if !geomath.Valid(s.Point()) {
		return
	}
	if s.At.IsZero() {
		s.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.haveLast && s.At.Before(b.last.At) {
		b.logger.Debug("dropping out-of-order sample", slog.String("source", s.Source),
			slog.Time("at", s.At), slog.Time("last", b.last.At))
		return
	}
	b.last = s
	b.haveLast = true
	b.metrics.SamplePublished(s.Source)

	for sub := range b.subs {
		if !sub.deliver(s) {
			b.logger.Debug("subscriber buffer full, dropping sample", slog.String("source", s.Source))
		}
	}
}

// Last returns the most recently published sample.
func (b *GeoBus) Last() (Sample, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.haveLast
}

// deliver applies the subscriber's distance filter and performs a non-blocking send. It reports
// false only if the sample was dropped because the buffer was full.
func (s *subscriber) deliver(sample Sample) bool {
	if s.minDistance > 0 && s.haveLast && geomath.Distance(s.last.Point(), sample.Point()) < s.minDistance {
		return true
	}
	select {
	case s.ch <- sample:
		s.last = sample
		s.haveLast = true
		return true
	default:
		return false
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}
