// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geolocation_file

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/ridegrid/internal/geobus"
)

const (
	name = "geolocation_file"

	// Accuracy is reported for every sample read from the file. A hand-maintained position is
	// only ever as good as a street address.
	Accuracy = 25
)

var ErrNoCoordinates = fmt.Errorf("no valid coordinates found in geolocation file")

// GeolocationFileProvider reads a fixed position from a file and emits it as a sample whenever
// the content changes. It serves as a fallback for stationary setups without a GPS receiver.
type GeolocationFileProvider struct {
	name     string
	path     string
	period   time.Duration
	locateFn func() (lat, lon float64, err error)
}

// NewGeolocationFileProvider initializes a GeolocationFileProvider with a file path and the
// default reload interval.
func NewGeolocationFileProvider(path string) *GeolocationFileProvider {
	provider := &GeolocationFileProvider{
		name:   name,
		path:   path,
		period: time.Minute * 2,
	}
	provider.locateFn = provider.readFile
	return provider
}

// Name returns the name of the GeolocationFileProvider instance.
func (p *GeolocationFileProvider) Name() string {
	return p.name
}

// SampleStream periodically reads the file and emits a sample when the position changed.
func (p *GeolocationFileProvider) SampleStream(ctx context.Context) <-chan geobus.Sample {
	out := make(chan geobus.Sample)
	go func() {
		defer close(out)
		state := geobus.SampleState{}
		firstRun := true

		for {
			if !firstRun {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.period):
				}
			}
			firstRun = false

			lat, lon, err := p.locateFn()
			if err != nil {
				continue
			}
			sample := p.createSample(lat, lon)
			if !state.HasChanged(sample, 0) {
				continue
			}
			state.Update(sample)

			select {
			case <-ctx.Done():
				return
			case out <- sample:
			}
		}
	}()
	return out
}

// Locate implements geobus.Locator by reading the file once.
func (p *GeolocationFileProvider) Locate(_ context.Context) (geobus.Sample, error) {
	lat, lon, err := p.locateFn()
	if err != nil {
		return geobus.Sample{}, err
	}
	return p.createSample(lat, lon), nil
}

func (p *GeolocationFileProvider) createSample(lat, lon float64) geobus.Sample {
	return geobus.Sample{
		Lat:            lat,
		Lon:            lon,
		AccuracyMeters: Accuracy,
		SpeedMps:       math.NaN(),
		Heading:        math.NaN(),
		Source:         p.name,
		At:             time.Now(),
	}
}

// readFile returns the first "lat,lon" line of the file. Empty lines and lines starting with
// # are skipped.
func (p *GeolocationFileProvider) readFile() (lat, lon float64, err error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read geolocation file %q: %w", p.path, err)
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		coords := strings.Split(line, ",")
		if len(coords) != 2 {
			continue
		}
		lat, err = strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			continue
		}
		lon, err = strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			continue
		}
		return lat, lon, nil
	}
	return 0, 0, ErrNoCoordinates
}
