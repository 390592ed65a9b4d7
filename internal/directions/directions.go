// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package directions defines the boundary to external routing services. Providers return the raw
// candidate paths, scoring and ranking happen in the routing package.
package directions

import (
	"context"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/wneessen/ridegrid/internal/geomath"
)

// Provider requests alternative paths through the ordered coordinates. An empty result without
// error means the service found no route.
type Provider interface {
	Name() string
	Route(ctx context.Context, coords []geomath.Point) ([]Path, error)
}

// Maneuver is a single turn-by-turn instruction and the location it applies to.
type Maneuver struct {
	Instruction string
	Location    geomath.Point
}

// Path is one route returned by a directions service.
type Path struct {
	Geometry    orb.LineString
	DurationSec float64
	DistanceM   float64
	Maneuvers   []Maneuver
}

// Response is the OSRM-compatible route response, which Mapbox Directions v5 also speaks.
type Response struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Routes  []Route `json:"routes"`
}

type Route struct {
	Geometry *geojson.Geometry `json:"geometry"`
	Duration float64           `json:"duration"`
	Distance float64           `json:"distance"`
	Legs     []Leg             `json:"legs"`
}

type Leg struct {
	Steps []Step `json:"steps"`
}

type Step struct {
	Name     string       `json:"name"`
	Distance float64      `json:"distance"`
	Maneuver StepManeuver `json:"maneuver"`
}

type StepManeuver struct {
	Instruction string    `json:"instruction"`
	Type        string    `json:"type"`
	Modifier    string    `json:"modifier"`
	Location    []float64 `json:"location"`
}

// Paths converts all routes of the response. Routes without a LineString geometry are kept with
// an empty geometry, the routing engine drops them.
func (r Response) Paths() []Path {
	paths := make([]Path, 0, len(r.Routes))
	for _, route := range r.Routes {
		path := Path{
			DurationSec: route.Duration,
			DistanceM:   route.Distance,
		}
		if route.Geometry != nil {
			if line, ok := route.Geometry.Geometry().(orb.LineString); ok {
				path.Geometry = line
			}
		}
		for _, leg := range route.Legs {
			for _, step := range leg.Steps {
				if len(step.Maneuver.Location) < 2 {
					continue
				}
				path.Maneuvers = append(path.Maneuvers, Maneuver{
					Instruction: step.Instruction(),
					Location:    orb.Point{step.Maneuver.Location[0], step.Maneuver.Location[1]},
				})
			}
		}
		paths = append(paths, path)
	}
	return paths
}

// Instruction returns the service-provided instruction text. Services that only return maneuver
// types (plain OSRM) get a short English instruction composed from type, modifier and road name.
func (s Step) Instruction() string {
	if s.Maneuver.Instruction != "" {
		return s.Maneuver.Instruction
	}

	var verb string
	switch s.Maneuver.Type {
	case "depart":
		verb = "Head " + orDefault(s.Maneuver.Modifier, "out")
	case "arrive":
		return "You have arrived at your destination"
	case "roundabout", "rotary":
		verb = "Enter the roundabout"
	case "merge":
		verb = "Merge " + orDefault(s.Maneuver.Modifier, "ahead")
	case "fork":
		verb = "Keep " + orDefault(s.Maneuver.Modifier, "straight")
	default:
		switch s.Maneuver.Modifier {
		case "", "straight":
			verb = "Continue straight"
		case "uturn":
			verb = "Make a uturn"
		default:
			verb = "Turn " + s.Maneuver.Modifier
		}
	}
	if s.Name == "" {
		return verb
	}
	return fmt.Sprintf("%s onto %s", verb, s.Name)
}

// CoordinateString joins the coordinates into the "lon,lat;lon,lat" path segment both services
// expect.
func CoordinateString(coords []geomath.Point) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%.6f,%.6f", c.Lon(), c.Lat())
	}
	return strings.Join(parts, ";")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
