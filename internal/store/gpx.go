// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package store

import (
	"fmt"
	"io"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/wneessen/ridegrid/internal/recorder"
)

const gpxCreator = "ridegrid"

// ExportGPX writes the points as a single GPX 1.1 track.
func ExportGPX(w io.Writer, name string, points []recorder.TripPoint) error {
	segment := gpx.GPXTrackSegment{Points: make([]gpx.GPXPoint, 0, len(points))}
	for _, p := range points {
		segment.Points = append(segment.Points, gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  p.Coordinates.Lat(),
				Longitude: p.Coordinates.Lon(),
			},
			Timestamp: time.UnixMilli(p.TimestampMs).UTC(),
		})
	}

	doc := gpx.GPX{
		Name:    name,
		Creator: gpxCreator,
		Tracks: []gpx.GPXTrack{{
			Name:     name,
			Segments: []gpx.GPXTrackSegment{segment},
		}},
	}
	data, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("failed to encode GPX: %w", err)
	}
	if _, err = w.Write(data); err != nil {
		return fmt.Errorf("failed to write GPX: %w", err)
	}
	return nil
}
