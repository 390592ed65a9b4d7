// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpsd streams position samples from a local gpsd daemon.
package gpsd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/ridegrid/internal/geobus"
)

const (
	name = "gpsd"

	// DefaultHost and DefaultPort point to gpsd's well-known local endpoint.
	DefaultHost = "localhost"
	DefaultPort = "2947"

	// minCourseSpeed is the speed in m/s below which gpsd's track is considered noise.
	minCourseSpeed = 0.5

	fallbackAccuracy = 10
)

// ErrWatchEnded is returned by a watch function when the gpsd connection went away.
var ErrWatchEnded = errors.New("gpsd watch ended")

type watchFunc func(ctx context.Context, emit func(*gpsd.TPVReport)) error

// GeolocationGPSDProvider streams every TPV report with at least a 2D fix. Identical consecutive
// positions are suppressed, so a parked bike does not flood the bus.
type GeolocationGPSDProvider struct {
	name    string
	addr    string
	period  time.Duration
	watchFn watchFunc
}

// NewGeolocationGPSDProvider returns a provider for the gpsd at host:port.
func NewGeolocationGPSDProvider(host, port string) *GeolocationGPSDProvider {
	if host == "" {
		host = DefaultHost
	}
	if port == "" {
		port = DefaultPort
	}
	provider := &GeolocationGPSDProvider{
		name:   name,
		addr:   net.JoinHostPort(host, port),
		period: time.Second * 5,
	}
	provider.watchFn = provider.watch
	return provider
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

// SampleStream dials gpsd and emits samples until the context is cancelled. A lost connection is
// retried after the provider period.
func (p *GeolocationGPSDProvider) SampleStream(ctx context.Context) <-chan geobus.Sample {
	out := make(chan geobus.Sample)

	go func() {
		defer close(out)
		state := geobus.SampleState{}

		emit := func(tpv *gpsd.TPVReport) {
			sample, ok := tpvSample(tpv)
			if !ok || !state.HasChanged(sample, 0) {
				return
			}
			state.Update(sample)

			select {
			case <-ctx.Done():
			case out <- sample:
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := p.watchFn(ctx, emit); err != nil && ctx.Err() == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.period):
				}
			}
		}
	}()

	return out
}

// watch connects to gpsd and dispatches TPV reports until the session ends.
func (p *GeolocationGPSDProvider) watch(ctx context.Context, emit func(*gpsd.TPVReport)) error {
	session, err := gpsd.Dial(p.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to gpsd at %q: %w", p.addr, err)
	}

	session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		emit(tpv)
	})

	// go-gpsd has no Close(), the session is torn down once the daemon hangs up.
	done := session.Watch()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrWatchEnded
	}
}

// tpvSample converts a TPV report into a sample. Reports without a 2D fix are rejected.
func tpvSample(tpv *gpsd.TPVReport) (geobus.Sample, bool) {
	if tpv == nil || tpv.Mode < gpsd.Mode2D {
		return geobus.Sample{}, false
	}

	acc := fallbackAccuracy
	if tpv.Epx > 0 && tpv.Epy > 0 {
		acc = int(math.Ceil(math.Hypot(tpv.Epx, tpv.Epy)))
	}
	heading := math.NaN()
	if tpv.Speed >= minCourseSpeed {
		heading = tpv.Track
	}
	at := tpv.Time
	if at.IsZero() {
		at = time.Now()
	}

	return geobus.Sample{
		Lat:            tpv.Lat,
		Lon:            tpv.Lon,
		Alt:            tpv.Alt,
		AccuracyMeters: float64(acc),
		SpeedMps:       tpv.Speed,
		Heading:        heading,
		Source:         name,
		At:             at,
	}, true
}
