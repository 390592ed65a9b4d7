// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpxreplay plays back a recorded GPX track as a live position stream. It is used for
// testing rides without leaving the desk.
package gpxreplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/geomath"
)

const (
	name = "gpxreplay"

	// DefaultInterval is used between points that carry no timestamps.
	DefaultInterval = time.Second

	accuracy = 5
)

var ErrNoTrackPoints = errors.New("gpx file contains no track points")

// Provider replays the track points of a GPX file. Samples are stamped with the playback time,
// the gaps between recorded points are kept and divided by the speed factor.
type Provider struct {
	name   string
	points []gpx.GPXPoint
	speed  float64
	loop   bool
}

// Option configures the replay.
type Option func(*Provider)

// WithSpeed plays the track faster (>1) or slower (<1) than recorded.
func WithSpeed(factor float64) Option {
	return func(p *Provider) {
		if factor > 0 {
			p.speed = factor
		}
	}
}

// WithLoop restarts the track from the beginning once the last point has been emitted.
func WithLoop() Option {
	return func(p *Provider) {
		p.loop = true
	}
}

// NewFromFile parses the GPX file at path.
func NewFromFile(path string, opts ...Option) (*Provider, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gpx file %q: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	return New(file, opts...)
}

// New parses a GPX document and flattens all tracks and segments into a single point list.
func New(r io.Reader, opts ...Option) (*Provider, error) {
	doc, err := gpx.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gpx: %w", err)
	}

	var points []gpx.GPXPoint
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			points = append(points, segment.Points...)
		}
	}
	if len(points) == 0 {
		return nil, ErrNoTrackPoints
	}

	provider := &Provider{
		name:   name,
		points: points,
		speed:  1,
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider, nil
}

func (p *Provider) Name() string {
	return p.name
}

// Len returns the number of track points in the replay.
func (p *Provider) Len() int {
	return len(p.points)
}

// SampleStream emits the track points in order and closes the channel after the last one,
// unless the replay loops.
func (p *Provider) SampleStream(ctx context.Context) <-chan geobus.Sample {
	out := make(chan geobus.Sample)
	go func() {
		defer close(out)
		for {
			if !p.playOnce(ctx, out) || !p.loop {
				return
			}
		}
	}()
	return out
}

func (p *Provider) playOnce(ctx context.Context, out chan<- geobus.Sample) bool {
	for i := range p.points {
		if i > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(p.gap(i)):
			}
		}

		select {
		case <-ctx.Done():
			return false
		case out <- p.sample(i):
		}
	}
	return true
}

// gap returns the scaled wait time between point i-1 and point i.
func (p *Provider) gap(i int) time.Duration {
	prev, cur := p.points[i-1].Timestamp, p.points[i].Timestamp
	d := DefaultInterval
	if !prev.IsZero() && !cur.IsZero() && cur.After(prev) {
		d = cur.Sub(prev)
	}
	return time.Duration(float64(d) / p.speed)
}

// sample converts point i. Speed and heading are derived from the previous point, since GPX
// track points rarely carry them.
func (p *Provider) sample(i int) geobus.Sample {
	pt := p.points[i]
	s := geobus.Sample{
		Lat:            pt.Latitude,
		Lon:            pt.Longitude,
		AccuracyMeters: accuracy,
		SpeedMps:       math.NaN(),
		Heading:        math.NaN(),
		Source:         p.name,
		At:             time.Now(),
	}
	if pt.Elevation.NotNull() {
		s.Alt = pt.Elevation.Value()
	}
	if i == 0 {
		return s
	}

	prev := p.points[i-1]
	from := geomath.NewPoint(prev.Latitude, prev.Longitude)
	to := geomath.NewPoint(pt.Latitude, pt.Longitude)
	if dist := geomath.Distance(from, to); dist > 0 {
		s.Heading = geomath.Bearing(from, to)
		if !prev.Timestamp.IsZero() && pt.Timestamp.After(prev.Timestamp) {
			s.SpeedMps = dist / pt.Timestamp.Sub(prev.Timestamp).Seconds()
		}
	}
	return s
}
