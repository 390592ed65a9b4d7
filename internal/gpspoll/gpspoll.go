// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpspoll implements a one-shot position fix against a local gpsd.
package gpspoll

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/wneessen/ridegrid/internal/geobus"
)

const (
	fallbackAccuracy3DFix = 10  // ~10 m typical consumer GPS in open sky
	fallbackAccuracy2DFix = 25  // worse than 3D, but still accurate enough
	fallbackAccuracyNoFix = 1e6 // effectively unusable
	watchTimeout          = time.Second * 2

	name = "gpspoll"
)

// ErrNoFix is returned if gpsd answered but has no 2D fix yet.
var ErrNoFix = errors.New("gpsd has no position fix")

// Client is a minimal GPSd client
type Client struct {
	Addr string
}

// Fix represents a single GPS fix from gpsd.
type Fix struct {
	Lat   float64
	Lon   float64
	Alt   float64
	Acc   float64
	Speed float64
	Track float64
	Time  time.Time
	Mode  int
}

// tpvResponse matches the subset of gpsd's TPV report we care about. Speed and track are
// pointers because gpsd omits them when unknown.
type tpvResponse struct {
	Class string    `json:"class"`
	Time  time.Time `json:"time"`
	Lat   float64   `json:"lat"`
	Lon   float64   `json:"lon"`
	Alt   float64   `json:"alt"`
	Mode  int       `json:"mode"`
	Speed *float64  `json:"speed"`
	Track *float64  `json:"track"`
	Epx   float64   `json:"epx"`
	Epy   float64   `json:"epy"`
	Eph   float64   `json:"eph"`
	Epv   float64   `json:"epv"`
}

// New constructs a new Client for the given host and port.
func New(host, port string) *Client {
	return &Client{
		Addr: net.JoinHostPort(host, port),
	}
}

// Poll connects to gpsd, enables a WATCH and returns the first TPV report. The connection
// is closed before returning.
func (c *Client) Poll(ctx context.Context) (Fix, error) {
	var zero Fix

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return zero, fmt.Errorf("gpspoll: dial gpsd: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	// Respect context deadline if present, otherwise we add a safety net so we don't hang
	// forever if ctx has no deadline.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(watchTimeout))
	}

	if _, err = fmt.Fprint(conn, `?WATCH={"enable":true,"json":true}`+"\n"); err != nil {
		return zero, fmt.Errorf("gpspoll: write WATCH: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var resp tpvResponse

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		if err = json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		if resp.Class != "TPV" {
			continue
		}

		fix := Fix{
			Lat:   resp.Lat,
			Lon:   resp.Lon,
			Alt:   resp.Alt,
			Acc:   horizontalAccuracyMeters(resp),
			Speed: math.NaN(),
			Track: math.NaN(),
			Time:  resp.Time,
			Mode:  resp.Mode,
		}
		if resp.Speed != nil {
			fix.Speed = *resp.Speed
		}
		if resp.Track != nil {
			fix.Track = *resp.Track
		}
		return fix, nil
	}

	if err = scanner.Err(); err != nil {
		return zero, fmt.Errorf("failed to scan GPSd response: %w", err)
	}

	return zero, fmt.Errorf("no TPV response received from GPSd")
}

// Locate implements geobus.Locator. Fixes without at least a 2D solution are rejected.
func (c *Client) Locate(ctx context.Context) (geobus.Sample, error) {
	fix, err := c.Poll(ctx)
	if err != nil {
		return geobus.Sample{}, err
	}
	if !fix.Has2DFix() {
		return geobus.Sample{}, ErrNoFix
	}
	return fix.Sample(), nil
}

// Has2DFix reports whether the fix has at least a 2D fix.
func (f Fix) Has2DFix() bool {
	return f.Mode >= 2
}

// Sample converts the fix into a geobus.Sample.
func (f Fix) Sample() geobus.Sample {
	at := f.Time
	if at.IsZero() {
		at = time.Now()
	}
	return geobus.Sample{
		Lat:            f.Lat,
		Lon:            f.Lon,
		Alt:            f.Alt,
		AccuracyMeters: f.Acc,
		SpeedMps:       f.Speed,
		Heading:        f.Track,
		Source:         name,
		At:             at,
	}
}

func horizontalAccuracyMeters(tpv tpvResponse) float64 {
	switch {
	case tpv.Eph > 0:
		return tpv.Eph
	case tpv.Epx > 0 && tpv.Epy > 0:
		// sqrt(epx² + epy²)
		return math.Hypot(tpv.Epx, tpv.Epy)
	default:
		return horizontalAccuracyFallback(tpv)
	}
}

func horizontalAccuracyFallback(tpv tpvResponse) float64 {
	switch tpv.Mode {
	case 3:
		return fallbackAccuracy3DFix
	case 2:
		return fallbackAccuracy2DFix
	default:
		return fallbackAccuracyNoFix
	}
}
