// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geomath provides the distance and shape calculations used for routes and recorded trips.
// Points are orb.Point values, which store longitude first.
package geomath

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	// MinSinuosity is the sinuosity of a perfectly straight path.
	MinSinuosity = 1.0
	// MaxSinuosity caps the sinuosity so loops and near-closed paths do not explode the ratio.
	MaxSinuosity = 5.0

	curvyThreshold  = 1.2
	twistyThreshold = 1.5
)

// Point is a geographic position as [lon, lat].
type Point = orb.Point

// Vibe is the qualitative classification of a path derived from its sinuosity.
type Vibe int

const (
	Straight Vibe = iota
	Curvy
	Twisty
)

func (v Vibe) String() string {
	switch v {
	case Curvy:
		return "Curvy"
	case Twisty:
		return "Twisty"
	default:
		return "Straight"
	}
}

// NewPoint returns a Point for the given latitude and longitude.
func NewPoint(lat, lon float64) Point {
	return Point{lon, lat}
}

// Valid reports whether the point is a valid WGS84 coordinate.
func Valid(p Point) bool {
	return p.Lat() >= -90 && p.Lat() <= 90 && p.Lon() >= -180 && p.Lon() <= 180
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// Bearing returns the initial course from a to b in degrees within [0, 360).
func Bearing(a, b Point) float64 {
	return math.Mod(geo.Bearing(a, b)+360, 360)
}

// PathLength returns the length of the path in meters, summed segment by segment.
func PathLength(path orb.LineString) float64 {
	if len(path) < 2 {
		return 0
	}
	return geo.LengthHaversine(path)
}

// Sinuosity returns the ratio between the length of the path and the straight-line distance between
// its first and last point. The result is clamped to [MinSinuosity, MaxSinuosity]. A path whose ends
// coincide has no defined ratio and yields MinSinuosity.
func Sinuosity(path orb.LineString) float64 {
	if len(path) < 2 {
		return MinSinuosity
	}
	return SinuosityOf(PathLength(path), Distance(path[0], path[len(path)-1]))
}

// SinuosityOf computes the clamped sinuosity from a path length and the crow distance between the
// path ends. Both values must use the same unit.
func SinuosityOf(length, crow float64) float64 {
	if crow <= 0 || math.IsNaN(length) {
		return MinSinuosity
	}
	s := length / crow
	switch {
	case s > MaxSinuosity:
		return MaxSinuosity
	case s < MinSinuosity:
		return MinSinuosity
	}
	return s
}

// Classify maps a sinuosity value to its Vibe.
func Classify(sinuosity float64) Vibe {
	switch {
	case sinuosity > twistyThreshold:
		return Twisty
	case sinuosity > curvyThreshold:
		return Curvy
	default:
		return Straight
	}
}

// Truncate cuts x down to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}

// Round rounds x to the given number of decimal places.
func Round(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(x*p) / p
}
