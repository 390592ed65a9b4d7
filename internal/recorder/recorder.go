// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package recorder records the GPS trace of a ride and summarizes it once the ride is stopped.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/paulmach/orb"

	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/job"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/metrics"
)

const (
	// MinPoints is the number of trace points a trip needs to be summarized.
	MinPoints = 5
	// MinStepMeters is the minimum distance between two recorded points.
	MinStepMeters = 5

	tickInterval = time.Second
	metersPerKm  = 1000
)

var (
	ErrAlreadyRecording = errors.New("a recording is already running")
	ErrTripTooShort     = errors.New("trip too short to be saved")
)

// Mode selects how a recording was started.
type Mode int

const (
	// ModeFree is a free ride without a route. Starting one clears the displayed route state.
	ModeFree Mode = iota
	// ModeNavigation records alongside an active navigation.
	ModeNavigation
)

func (m Mode) String() string {
	if m == ModeNavigation {
		return "navigation"
	}
	return "free"
}

// TripPoint is a single accepted sample of the trace.
type TripPoint struct {
	Coordinates geomath.Point
	SpeedKmh    float64
	TimestampMs int64
}

// Live holds the running stats of the current recording.
type Live struct {
	SpeedKmh   float64
	DistanceKm float64
	Duration   time.Duration
}

// Summary describes a finished trip.
type Summary struct {
	LengthKm    float64
	DurationMin int
	Sinuosity   float64
	Vibe        geomath.Vibe
	MaxSpeedKmh float64
	AvgSpeedKmh float64
	StartedAt   time.Time
	EndedAt     time.Time
	// Night is set when the ride started between sunset and sunrise at its first point.
	Night  bool
	Points []TripPoint
}

// Path returns the trace as line string.
func (s Summary) Path() orb.LineString {
	return pointsPath(s.Points)
}

// Recorder is the trip recorder. A single recording runs at a time.
type Recorder struct {
	bus        geobus.Subscriber
	logger     *logger.Logger
	metrics    *metrics.Metrics
	onFreeRide func()

	mu        sync.Mutex
	recording bool
	mode      Mode
	points    []TripPoint
	live      Live
	distanceM float64
	startedAt time.Time
	endedAt   time.Time
	teardown  func()
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithFreeRideHook sets the function called when a free ride recording starts.
func WithFreeRideHook(fn func()) Option {
	return func(r *Recorder) {
		r.onFreeRide = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// New returns an idle Recorder consuming samples from bus.
func New(bus geobus.Subscriber, log *logger.Logger, opts ...Option) *Recorder {
	rec := &Recorder{
		bus:    bus,
		logger: log,
	}
	for _, opt := range opts {
		opt(rec)
	}
	return rec
}

// Start clears the previous trace and starts recording. The recording runs until Stop is called or
// ctx is cancelled.
func (r *Recorder) Start(ctx context.Context, mode Mode) error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.recording = true
	r.mode = mode
	r.points = nil
	r.live = Live{}
	r.distanceM = 0
	r.startedAt = time.Now()
	r.endedAt = time.Time{}

	samples, unsub := r.bus.Subscribe(geobus.SubscribeOptions{MinDistance: MinStepMeters})
	stopTicker := job.New(tickInterval, r.tick).Go(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.consume(ctx, samples)
	}()

	var once sync.Once
	r.teardown = func() {
		once.Do(func() {
			unsub()
			stopTicker()
			<-done
		})
	}
	r.mu.Unlock()

	if mode == ModeFree && r.onFreeRide != nil {
		r.onFreeRide()
	}
	r.logger.Info("trip recording started", slog.String("mode", mode.String()))
	return nil
}

// Stop ends the recording and returns the trip summary. It may be called more than once and
// without a prior Start. Trips with fewer than MinPoints points return ErrTripTooShort and keep
// their trace.
func (r *Recorder) Stop() (Summary, error) {
	r.mu.Lock()
	teardown := r.teardown
	r.teardown = nil
	wasRecording := r.recording
	r.recording = false
	if wasRecording {
		r.endedAt = time.Now()
	}
	r.mu.Unlock()

	if teardown != nil {
		teardown()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.points) < MinPoints {
		if wasRecording {
			r.metrics.TripRecorded("too_short")
			r.logger.Info("trip too short to be saved", slog.Int("points", len(r.points)))
		}
		return Summary{}, ErrTripTooShort
	}
	summary := r.summarize()
	if wasRecording {
		r.metrics.TripRecorded("summary")
		r.logger.Info("trip recording stopped", slog.Float64("length_km", summary.LengthKm),
			slog.Int("duration_min", summary.DurationMin), slog.String("vibe", summary.Vibe.String()))
	}
	return summary, nil
}

// Recording reports whether a recording is running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Mode returns the mode of the current or last recording.
func (r *Recorder) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Live returns the running stats.
func (r *Recorder) Live() Live {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Points returns a copy of the recorded trace.
func (r *Recorder) Points() []TripPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TripPoint, len(r.points))
	copy(out, r.points)
	return out
}

func (r *Recorder) consume(ctx context.Context, samples <-chan geobus.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			r.Accept(s)
		}
	}
}

// Accept adds a sample to the trace. Samples closer than MinStepMeters to the last point are
// skipped. It reports whether the sample was recorded.
func (r *Recorder) Accept(s geobus.Sample) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return false
	}

	pos := s.Point()
	if n := len(r.points); n > 0 {
		step := geomath.Distance(r.points[n-1].Coordinates, pos)
		if step < MinStepMeters {
			return false
		}
		r.distanceM += step
	}

	at := s.At
	if at.IsZero() {
		at = time.Now()
	}
	speed := s.SpeedKmh()
	r.points = append(r.points, TripPoint{
		Coordinates: pos,
		SpeedKmh:    speed,
		TimestampMs: at.UnixMilli(),
	})
	r.live.SpeedKmh = speed
	r.live.DistanceKm = r.distanceM / metersPerKm
	return true
}

func (r *Recorder) tick(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		r.live.Duration = time.Since(r.startedAt).Truncate(time.Second)
	}
}

// summarize requires the lock to be held and at least MinPoints points.
func (r *Recorder) summarize() Summary {
	path := pointsPath(r.points)
	length := geomath.PathLength(path)
	sinuosity := geomath.SinuosityOf(length, geomath.Distance(path[0], path[len(path)-1]))

	var maxSpeed, sumSpeed float64
	for _, p := range r.points {
		maxSpeed = max(maxSpeed, p.SpeedKmh)
		sumSpeed += p.SpeedKmh
	}

	elapsed := r.endedAt.Sub(r.startedAt)
	points := make([]TripPoint, len(r.points))
	copy(points, r.points)

	return Summary{
		LengthKm:    length / metersPerKm,
		DurationMin: int(elapsed.Seconds()) / 60,
		Sinuosity:   sinuosity,
		Vibe:        geomath.Classify(sinuosity),
		MaxSpeedKmh: math.Round(maxSpeed),
		AvgSpeedKmh: math.Round(sumSpeed / float64(len(r.points))),
		StartedAt:   r.startedAt,
		EndedAt:     r.endedAt,
		Night:       isNight(path[0], r.startedAt),
		Points:      points,
	}
}

func pointsPath(points []TripPoint) orb.LineString {
	path := make(orb.LineString, len(points))
	for i, p := range points {
		path[i] = p.Coordinates
	}
	return path
}

// isNight reports whether at lies outside of daylight at the given position. Sunrise and sunset
// are taken for the local solar date, the UTC date at western longitudes already being the next
// day in the evening. Positions without a sunrise or sunset on that day (polar day and night)
// count as daylight.
func isNight(pos geomath.Point, at time.Time) bool {
	solar := at.UTC().Add(time.Duration(pos.Lon() / 15 * float64(time.Hour)))
	rise, set := sunrise.SunriseSunset(pos.Lat(), pos.Lon(), solar.Year(), solar.Month(), solar.Day())
	if rise.IsZero() || set.IsZero() {
		return false
	}
	return at.Before(rise) || at.After(set)
}
