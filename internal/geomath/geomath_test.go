// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geomath

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestDistance(t *testing.T) {
	t.Run("distance along the equator", func(t *testing.T) {
		// one thousandth of a degree on the equator is roughly 111 meters
		got := Distance(NewPoint(0, 0), NewPoint(0, 0.001))
		if math.Abs(got-111.3) > 0.5 {
			t.Errorf("expected distance to be around 111.3m, got %f", got)
		}
	})
	t.Run("distance is symmetric", func(t *testing.T) {
		a, b := NewPoint(52.5163, 13.3777), NewPoint(52.5200, 13.4050)
		if math.Abs(Distance(a, b)-Distance(b, a)) > 1e-9 {
			t.Error("expected distance to be symmetric")
		}
	})
	t.Run("same point has zero distance", func(t *testing.T) {
		p := NewPoint(13.0827, 80.2707)
		if Distance(p, p) != 0 {
			t.Errorf("expected zero distance, got %f", Distance(p, p))
		}
	})
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"north", NewPoint(0.01, 0), 0},
		{"east", NewPoint(0, 0.01), 90},
		{"south", NewPoint(-0.01, 0), 180},
		{"west", NewPoint(0, -0.01), 270},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Bearing(NewPoint(0, 0), tc.to)
			if math.Abs(got-tc.want) > 0.01 {
				t.Errorf("expected bearing %f, got %f", tc.want, got)
			}
		})
	}
}

func TestPathLength(t *testing.T) {
	t.Run("empty and single point paths have no length", func(t *testing.T) {
		if PathLength(nil) != 0 {
			t.Error("expected nil path to have zero length")
		}
		if PathLength(orb.LineString{NewPoint(1, 1)}) != 0 {
			t.Error("expected single point path to have zero length")
		}
	})
	t.Run("path length is the sum of its segments", func(t *testing.T) {
		path := orb.LineString{NewPoint(0, 0), NewPoint(0, 0.01), NewPoint(0.01, 0.01)}
		want := Distance(path[0], path[1]) + Distance(path[1], path[2])
		if math.Abs(PathLength(path)-want) > 1e-6 {
			t.Errorf("expected path length %f, got %f", want, PathLength(path))
		}
	})
}

func TestSinuosity(t *testing.T) {
	tests := []struct {
		name string
		path orb.LineString
		want float64
		vibe Vibe
	}{
		{
			"straight line",
			orb.LineString{NewPoint(0, 0), NewPoint(0, 0.005), NewPoint(0, 0.01)},
			1.0, Straight,
		},
		{
			"right angle",
			orb.LineString{NewPoint(0, 0), NewPoint(0, 0.01), NewPoint(0.01, 0.01)},
			math.Sqrt2, Curvy,
		},
		{
			"closed loop has no crow distance",
			orb.LineString{NewPoint(0, 0), NewPoint(0, 0.01), NewPoint(0.01, 0.01), NewPoint(0, 0)},
			1.0, Straight,
		},
		{
			"back and forth is clamped",
			orb.LineString{
				NewPoint(0, 0), NewPoint(0, 0.01), NewPoint(0, 0.0001), NewPoint(0, 0.01),
				NewPoint(0, 0.0001), NewPoint(0, 0.01), NewPoint(0, 0.001),
			},
			MaxSinuosity, Twisty,
		},
		{
			"single point",
			orb.LineString{NewPoint(0, 0)},
			1.0, Straight,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Sinuosity(tc.path)
			if math.Abs(got-tc.want) > 0.01 {
				t.Errorf("expected sinuosity %f, got %f", tc.want, got)
			}
			if got < MinSinuosity || got > MaxSinuosity {
				t.Errorf("sinuosity %f out of bounds", got)
			}
			if Classify(got) != tc.vibe {
				t.Errorf("expected vibe %s, got %s", tc.vibe, Classify(got))
			}
		})
	}
}

func TestSinuosityOf(t *testing.T) {
	t.Run("ratio is length over crow distance", func(t *testing.T) {
		if got := SinuosityOf(3, 2); got != 1.5 {
			t.Errorf("expected 1.5, got %f", got)
		}
	})
	t.Run("ratio is clamped to the lower bound", func(t *testing.T) {
		if got := SinuosityOf(1.9, 2); got != MinSinuosity {
			t.Errorf("expected %f, got %f", MinSinuosity, got)
		}
	})
	t.Run("ratio is clamped to the upper bound", func(t *testing.T) {
		if got := SinuosityOf(100, 2); got != MaxSinuosity {
			t.Errorf("expected %f, got %f", MaxSinuosity, got)
		}
	})
	t.Run("zero crow distance falls back to a straight path", func(t *testing.T) {
		if got := SinuosityOf(10, 0); got != MinSinuosity {
			t.Errorf("expected %f, got %f", MinSinuosity, got)
		}
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		sinuosity float64
		want      Vibe
	}{
		{1.0, Straight},
		{1.2, Straight},
		{1.21, Curvy},
		{1.5, Curvy},
		{1.51, Twisty},
		{5.0, Twisty},
	}
	for _, tc := range tests {
		if got := Classify(tc.sinuosity); got != tc.want {
			t.Errorf("Classify(%f): expected %s, got %s", tc.sinuosity, tc.want, got)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid(NewPoint(52.5, 13.4)) {
		t.Error("expected point to be valid")
	}
	if Valid(NewPoint(91, 0)) {
		t.Error("expected latitude 91 to be invalid")
	}
	if Valid(NewPoint(0, -181)) {
		t.Error("expected longitude -181 to be invalid")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate(52.123456, 4); got != 52.1234 {
		t.Errorf("expected 52.1234, got %f", got)
	}
	if got := Round(52.12345, 1); got != 52.1 {
		t.Errorf("expected 52.1, got %f", got)
	}
}
