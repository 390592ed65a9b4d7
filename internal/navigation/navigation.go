// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package navigation follows the rider through the maneuvers of an armed route candidate.
package navigation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/wneessen/ridegrid/internal/alert"
	"github.com/wneessen/ridegrid/internal/directions"
	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/metrics"
)

// DefaultAdvanceMeters is the distance to the next maneuver below which it counts as reached.
const DefaultAdvanceMeters = 30

var ErrNoManeuvers = errors.New("route candidate has no maneuvers")

// State is the navigation state.
type State int

const (
	Idle State = iota
	Active
	Completed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Completed:
		return "completed"
	default:
		return "idle"
	}
}

// Progress is the position within the maneuver list. DistanceToNext is +Inf until the first
// sample arrived and 0 once the last maneuver is current.
type Progress struct {
	StepIndex      int
	DistanceToNext float64
}

func resetProgress() Progress {
	return Progress{StepIndex: 0, DistanceToNext: math.Inf(1)}
}

// Navigator is the navigation state machine. Update is meant to be called from a single
// goroutine, the accessors are safe for concurrent readers.
type Navigator struct {
	sink          alert.Sink
	logger        *logger.Logger
	metrics       *metrics.Metrics
	advanceMeters float64

	mu        sync.RWMutex
	state     State
	maneuvers []directions.Maneuver
	progress  Progress
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithAdvanceMeters overrides DefaultAdvanceMeters.
func WithAdvanceMeters(m float64) Option {
	return func(n *Navigator) {
		if m > 0 {
			n.advanceMeters = m
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Navigator) {
		n.metrics = m
	}
}

// New returns an idle Navigator that pulses sink whenever a maneuver is reached.
func New(sink alert.Sink, log *logger.Logger, opts ...Option) *Navigator {
	if sink == nil {
		sink = alert.Nop{}
	}
	nav := &Navigator{
		sink:          sink,
		logger:        log,
		advanceMeters: DefaultAdvanceMeters,
		progress:      resetProgress(),
	}
	for _, opt := range opts {
		opt(nav)
	}
	return nav
}

// Arm starts navigating the given maneuvers. Re-arming resets the progress.
func (n *Navigator) Arm(maneuvers []directions.Maneuver) error {
	if len(maneuvers) == 0 {
		return ErrNoManeuvers
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.maneuvers = maneuvers
	n.state = Active
	n.progress = resetProgress()
	n.logger.Debug("navigation armed", slog.Int("maneuvers", len(maneuvers)))
	return nil
}

// Update advances the progress for a new position sample. Samples are ignored unless navigation
// is active.
func (n *Navigator) Update(sample geobus.Sample) {
	n.mu.Lock()
	if n.state != Active {
		n.mu.Unlock()
		return
	}

	last := len(n.maneuvers) - 1
	if n.progress.StepIndex >= last {
		n.progress.DistanceToNext = 0
		n.mu.Unlock()
		return
	}

	next := n.maneuvers[n.progress.StepIndex+1]
	dist := geomath.Distance(sample.Point(), next.Location)
	n.progress.DistanceToNext = dist
	reached := dist < n.advanceMeters
	if reached {
		n.progress.StepIndex = min(n.progress.StepIndex+1, last)
	}
	step := n.progress.StepIndex
	n.mu.Unlock()

	if reached {
		n.logger.Debug("maneuver reached", slog.Int("step", step), slog.String("instruction", next.Instruction))
		n.metrics.ManeuverReached()
		n.sink.Pulse(alert.KindManeuver)
	}
}

// Stop completes an active navigation. It is a no-op in any other state.
func (n *Navigator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == Active {
		n.state = Completed
	}
}

// Cancel returns to Idle and clears the maneuvers and progress.
func (n *Navigator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = Idle
	n.maneuvers = nil
	n.progress = resetProgress()
}

// Run feeds all samples of the subscription into Update until the context is done or the
// subscription is closed.
func (n *Navigator) Run(ctx context.Context, samples <-chan geobus.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			n.Update(s)
		}
	}
}

func (n *Navigator) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

func (n *Navigator) Progress() Progress {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.progress
}

// Current returns the maneuver at the current step.
func (n *Navigator) Current() (directions.Maneuver, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.state == Idle || len(n.maneuvers) == 0 {
		return directions.Maneuver{}, false
	}
	return n.maneuvers[n.progress.StepIndex], true
}

// Next returns the maneuver after the current step, if there is one.
func (n *Navigator) Next() (directions.Maneuver, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.state == Idle || n.progress.StepIndex+1 >= len(n.maneuvers) {
		return directions.Maneuver{}, false
	}
	return n.maneuvers[n.progress.StepIndex+1], true
}
