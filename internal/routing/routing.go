// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package routing turns the raw paths of a directions provider into a ranked batch of route
// candidates and keeps track of the selected one.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/wneessen/ridegrid/internal/directions"
	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/metrics"
)

const (
	// twistyCandidateMin is the sinuosity a candidate needs to be considered for the Twistiest rank.
	twistyCandidateMin = 1.1

	metersPerKm = 1000
)

var (
	ErrNotEnoughWaypoints = errors.New("at least two waypoints are required")
	ErrRoutingService     = errors.New("routing service error")
	ErrInvalidSelection   = errors.New("invalid candidate selection")
)

// Rank is the label a candidate gets within its batch.
type Rank int

const (
	Alternative Rank = iota
	Fastest
	Shortest
	Twistiest
	Straightest
)

func (r Rank) String() string {
	switch r {
	case Fastest:
		return "Fastest"
	case Shortest:
		return "Shortest"
	case Twistiest:
		return "Twistiest"
	case Straightest:
		return "Straightest"
	default:
		return "Alternative"
	}
}

// Waypoint is a planning input. Waypoints flagged as current location are resolved from a fresh
// position fix when the plan is requested.
type Waypoint struct {
	Coordinates       geomath.Point
	IsCurrentLocation bool
	Label             string
}

// Candidate is one scored route. Geometry and Maneuvers are shared with the batch and must not be
// modified.
type Candidate struct {
	ID          int
	Geometry    orb.LineString
	Maneuvers   []directions.Maneuver
	LengthKm    float64
	DurationMin int
	Sinuosity   float64
	Vibe        geomath.Vibe
	Rank        Rank

	durationSec float64
}

// Batch is the result of a single plan request.
type Batch struct {
	Candidates []Candidate
	Selected   int
}

// Active returns the selected candidate.
func (b Batch) Active() (Candidate, bool) {
	if b.Selected < 0 || b.Selected >= len(b.Candidates) {
		return Candidate{}, false
	}
	return b.Candidates[b.Selected], true
}

// Engine plans routes and owns the current batch.
type Engine struct {
	provider   directions.Provider
	locator    geobus.Locator
	fixTimeout time.Duration
	logger     *logger.Logger
	metrics    *metrics.Metrics

	mu    sync.RWMutex
	batch Batch
}

// Option configures an Engine.
type Option func(*Engine)

// WithFixTimeout bounds the wait for a current location fix.
func WithFixTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.fixTimeout = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New returns an Engine requesting paths from provider. The locator resolves waypoints flagged as
// current location.
func New(provider directions.Provider, locator geobus.Locator, log *logger.Logger, opts ...Option) *Engine {
	engine := &Engine{
		provider:   provider,
		locator:    locator,
		fixTimeout: geobus.DefaultFixTimeout,
		logger:     log,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Plan resolves the waypoints, requests alternatives and replaces the current batch with the
// ranked result. The fastest candidate is selected. On error the previous batch is kept.
func (e *Engine) Plan(ctx context.Context, waypoints []Waypoint) (Batch, error) {
	if len(waypoints) < 2 {
		return Batch{}, ErrNotEnoughWaypoints
	}

	coords, err := e.resolve(ctx, waypoints)
	if err != nil {
		e.metrics.RoutingFailed()
		return Batch{}, err
	}

	paths, err := e.provider.Route(ctx, coords)
	if err != nil {
		e.metrics.RoutingFailed()
		e.logger.Error("directions request failed", slog.String("provider", e.provider.Name()), logger.Err(err))
		return Batch{}, fmt.Errorf("%w: %w", ErrRoutingService, err)
	}

	candidates := score(paths)
	if len(candidates) == 0 {
		e.metrics.RoutingFailed()
		return Batch{}, fmt.Errorf("%w: no usable route returned by %s", ErrRoutingService, e.provider.Name())
	}
	fastest := rank(candidates)

	batch := Batch{Candidates: candidates, Selected: fastest}
	e.mu.Lock()
	e.batch = batch
	e.mu.Unlock()

	e.metrics.RoutePlanned(len(candidates))
	e.logger.Debug("route planned", slog.String("provider", e.provider.Name()),
		slog.Int("candidates", len(candidates)), slog.Int("selected", fastest))
	return batch, nil
}

// PlanTo plans a direct route from the current location to dest.
func (e *Engine) PlanTo(ctx context.Context, dest geomath.Point) (Batch, error) {
	return e.Plan(ctx, []Waypoint{
		{IsCurrentLocation: true, Label: "current location"},
		{Coordinates: dest, Label: "destination"},
	})
}

// Select changes the selected candidate. The batch itself is not touched.
func (e *Engine) Select(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.batch.Candidates) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidSelection, i, len(e.batch.Candidates))
	}
	e.batch.Selected = i
	return nil
}

// Active returns the selected candidate of the current batch.
func (e *Engine) Active() (Candidate, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.batch.Active()
}

// Batch returns the current batch.
func (e *Engine) Batch() Batch {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.batch
}

// Clear drops the current batch.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batch = Batch{}
}

// resolve returns the waypoint coordinates. All current location waypoints share one fix.
func (e *Engine) resolve(ctx context.Context, waypoints []Waypoint) ([]geomath.Point, error) {
	coords := make([]geomath.Point, len(waypoints))
	var (
		fix     geobus.Sample
		haveFix bool
	)
	for i, wp := range waypoints {
		if !wp.IsCurrentLocation {
			coords[i] = wp.Coordinates
			continue
		}
		if !haveFix {
			s, err := geobus.LocateWithTimeout(ctx, e.locator, e.fixTimeout)
			if err != nil {
				e.logger.Warn("failed to resolve current location", slog.String("waypoint", wp.Label),
					logger.Err(err))
				return nil, err
			}
			fix, haveFix = s, true
		}
		coords[i] = fix.Point()
	}
	return coords, nil
}

// score computes the stats of every usable path. Paths with fewer than two geometry points are
// dropped.
func score(paths []directions.Path) []Candidate {
	candidates := make([]Candidate, 0, len(paths))
	for _, p := range paths {
		if len(p.Geometry) < 2 {
			continue
		}
		length := geomath.PathLength(p.Geometry)
		crow := geomath.Distance(p.Geometry[0], p.Geometry[len(p.Geometry)-1])
		sinuosity := geomath.SinuosityOf(length, crow)
		candidates = append(candidates, Candidate{
			ID:          len(candidates),
			Geometry:    p.Geometry,
			Maneuvers:   p.Maneuvers,
			LengthKm:    length / metersPerKm,
			DurationMin: int(math.Round(p.DurationSec / 60)),
			Sinuosity:   sinuosity,
			Vibe:        geomath.Classify(sinuosity),
			durationSec: p.DurationSec,
		})
	}
	return candidates
}

// rank assigns the rank labels in candidate order and returns the index of the fastest candidate.
// If the fastest candidate is also the shortest, the shortest of the remaining candidates takes
// the Shortest rank.
func rank(candidates []Candidate) int {
	fastest := argBest(candidates, -1, func(a, b Candidate) bool { return a.durationSec < b.durationSec })
	shortest := argBest(candidates, -1, func(a, b Candidate) bool { return a.LengthKm < b.LengthKm })
	straightest := argBest(candidates, -1, func(a, b Candidate) bool { return a.Sinuosity < b.Sinuosity })
	twistiest := -1
	for i, c := range candidates {
		if c.Sinuosity > twistyCandidateMin && (twistiest == -1 || c.Sinuosity > candidates[twistiest].Sinuosity) {
			twistiest = i
		}
	}
	if fastest == shortest && len(candidates) > 1 {
		shortest = argBest(candidates, fastest, func(a, b Candidate) bool { return a.LengthKm < b.LengthKm })
	}

	for i := range candidates {
		switch i {
		case fastest:
			candidates[i].Rank = Fastest
		case shortest:
			candidates[i].Rank = Shortest
		case twistiest:
			candidates[i].Rank = Twistiest
		case straightest:
			candidates[i].Rank = Straightest
		default:
			candidates[i].Rank = Alternative
		}
	}
	return fastest
}

// argBest returns the index of the best candidate according to less, skipping the index skip.
// Ties keep the first candidate.
func argBest(candidates []Candidate, skip int, less func(a, b Candidate) bool) int {
	best := -1
	for i, c := range candidates {
		if i == skip {
			continue
		}
		if best == -1 || less(c, candidates[best]) {
			best = i
		}
	}
	return best
}
