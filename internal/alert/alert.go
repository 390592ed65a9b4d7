// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package alert delivers fire-and-forget rider alerts, the desktop equivalent of a haptic pulse.
package alert

import (
	"log/slog"
	"sync"

	"github.com/wneessen/ridegrid/internal/logger"
)

// Kind identifies what triggered an alert.
type Kind int

const (
	// KindManeuver fires when navigation advances to the next maneuver.
	KindManeuver Kind = iota + 1
	// KindProximity fires when a peer rider comes close.
	KindProximity
)

func (k Kind) String() string {
	switch k {
	case KindManeuver:
		return "maneuver"
	case KindProximity:
		return "proximity"
	default:
		return "unknown"
	}
}

// Sink receives alert pulses. Implementations must not block the caller for long, wrap slow
// sinks with Async.
type Sink interface {
	Pulse(kind Kind)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(kind Kind)

func (f SinkFunc) Pulse(kind Kind) {
	f(kind)
}

// Nop discards all pulses.
type Nop struct{}

func (Nop) Pulse(Kind) {}

// Log writes every pulse to the logger.
type Log struct {
	Logger *logger.Logger
}

func (l Log) Pulse(kind Kind) {
	l.Logger.Info("rider alert", slog.String("kind", kind.String()))
}

// Multi fans a pulse out to several sinks.
type Multi []Sink

func (m Multi) Pulse(kind Kind) {
	for _, s := range m {
		s.Pulse(kind)
	}
}

// Async dispatches pulses to the wrapped sink in their own goroutine. Panics of the wrapped sink
// are recovered and logged.
type Async struct {
	sink   Sink
	logger *logger.Logger
}

func NewAsync(sink Sink, log *logger.Logger) *Async {
	return &Async{sink: sink, logger: log}
}

func (a *Async) Pulse(kind Kind) {
	go func() {
		defer func() {
			if r := recover(); r != nil && a.logger != nil {
				a.logger.Error("alert sink panicked", slog.String("kind", kind.String()), slog.Any("panic", r))
			}
		}()
		a.sink.Pulse(kind)
	}()
}

// Recorder keeps every pulse in memory.
type Recorder struct {
	mu    sync.Mutex
	kinds []Kind
}

func (r *Recorder) Pulse(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

// Count returns how often the given kind was pulsed.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// Kinds returns a copy of all recorded pulses in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}
