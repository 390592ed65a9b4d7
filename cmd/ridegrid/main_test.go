// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/routing"
)

func TestParseCoordinates(t *testing.T) {
	t.Run("valid coordinates are parsed", func(t *testing.T) {
		p, err := parseCoordinates("51.9, 9.2")
		if err != nil {
			t.Fatalf("failed to parse coordinates: %s", err)
		}
		if p.Lat() != 51.9 || p.Lon() != 9.2 {
			t.Errorf("expected 51.9,9.2, got %f,%f", p.Lat(), p.Lon())
		}
	})
	t.Run("invalid coordinates fail", func(t *testing.T) {
		for _, val := range []string{"", "51.9", "abc,9.2", "51.9,abc", "91,9.2", "51.9,181"} {
			if _, err := parseCoordinates(val); !errors.Is(err, errInvalidCoordinates) {
				t.Errorf("expected error for %q to be %s, got %v", val, errInvalidCoordinates, err)
			}
		}
	})
}

func TestParseWaypoints(t *testing.T) {
	t.Run("missing start uses the current location", func(t *testing.T) {
		waypoints, err := parseWaypoints("", "51.8,10.6", []string{"51.9,10.4"})
		if err != nil {
			t.Fatalf("failed to parse waypoints: %s", err)
		}
		if len(waypoints) != 3 {
			t.Fatalf("expected 3 waypoints, got %d", len(waypoints))
		}
		if !waypoints[0].IsCurrentLocation {
			t.Error("expected the start to be the current location")
		}
		if waypoints[2].Coordinates != geomath.NewPoint(51.8, 10.6) {
			t.Errorf("expected destination last, got %v", waypoints[2].Coordinates)
		}
	})
	t.Run("explicit start", func(t *testing.T) {
		waypoints, err := parseWaypoints("51.9,9.2", "51.8,10.6", nil)
		if err != nil {
			t.Fatalf("failed to parse waypoints: %s", err)
		}
		if len(waypoints) != 2 || waypoints[0].IsCurrentLocation {
			t.Errorf("expected two fixed waypoints, got %+v", waypoints)
		}
	})
	t.Run("invalid destination fails", func(t *testing.T) {
		if _, err := parseWaypoints("", "nowhere", nil); !errors.Is(err, errInvalidCoordinates) {
			t.Errorf("expected error to be %s, got %v", errInvalidCoordinates, err)
		}
	})
}

func TestPrintCandidates(t *testing.T) {
	batch := routing.Batch{
		Candidates: []routing.Candidate{
			{Rank: routing.Fastest, LengthKm: 12.3, DurationMin: 18},
			{Rank: routing.Twistiest, LengthKm: 15.1, DurationMin: 25, Vibe: geomath.Twisty},
		},
		Selected: 1,
	}
	buf := bytes.NewBuffer(nil)
	printCandidates(buf, batch)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "* 1  Twistiest") {
		t.Errorf("expected the selected candidate to be marked, got %q", lines[1])
	}
	if !strings.Contains(lines[0], "12.3 km") || !strings.Contains(lines[0], "18 min") {
		t.Errorf("expected length and duration, got %q", lines[0])
	}
}
