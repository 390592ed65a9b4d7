// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/ridegrid/internal/geobus"
)

const (
	testLat = 40.7185
	testLon = -74.0025
)

func TestNewGeolocationGPSDProvider(t *testing.T) {
	t.Run("new GPSd provider succeeds", func(t *testing.T) {
		provider := NewGeolocationGPSDProvider("", "")
		if provider == nil {
			t.Fatal("expected provider to be non-nil")
		}
		if provider.addr != "localhost:2947" {
			t.Errorf("expected default address, got %s", provider.addr)
		}
	})
	t.Run("custom host and port are used", func(t *testing.T) {
		provider := NewGeolocationGPSDProvider("10.0.0.1", "1234")
		if provider.addr != "10.0.0.1:1234" {
			t.Errorf("expected address to be 10.0.0.1:1234, got %s", provider.addr)
		}
	})
}

func TestGeolocationGPSDProvider_Name(t *testing.T) {
	provider := NewGeolocationGPSDProvider("", "")
	if !strings.EqualFold(provider.Name(), name) {
		t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
	}
}

func TestTpvSample(t *testing.T) {
	t.Run("reports without a 2D fix are rejected", func(t *testing.T) {
		if _, ok := tpvSample(&gpsd.TPVReport{Mode: gpsd.NoFix, Lat: testLat, Lon: testLon}); ok {
			t.Error("expected report without fix to be rejected")
		}
		if _, ok := tpvSample(nil); ok {
			t.Error("expected nil report to be rejected")
		}
	})
	t.Run("moving report carries speed and heading", func(t *testing.T) {
		at := time.Date(2025, 11, 24, 10, 44, 41, 0, time.UTC)
		sample, ok := tpvSample(&gpsd.TPVReport{
			Mode: gpsd.Mode3D, Time: at, Lat: testLat, Lon: testLon, Alt: 12,
			Epx: 3, Epy: 4, Speed: 13.9, Track: 271.5,
		})
		if !ok {
			t.Fatal("expected report to be accepted")
		}
		if sample.Lat != testLat || sample.Lon != testLon {
			t.Errorf("expected %f/%f, got %f/%f", testLat, testLon, sample.Lat, sample.Lon)
		}
		if sample.AccuracyMeters != 5 {
			t.Errorf("expected accuracy to be 5, got %f", sample.AccuracyMeters)
		}
		if sample.Heading != 271.5 {
			t.Errorf("expected heading to be 271.5, got %f", sample.Heading)
		}
		if sample.SpeedKmh() != 50 {
			t.Errorf("expected speed to be 50 km/h, got %f", sample.SpeedKmh())
		}
		if !sample.At.Equal(at) {
			t.Errorf("expected sample time %s, got %s", at, sample.At)
		}
	})
	t.Run("stationary report has no heading", func(t *testing.T) {
		sample, ok := tpvSample(&gpsd.TPVReport{Mode: gpsd.Mode2D, Lat: testLat, Lon: testLon, Track: 90})
		if !ok {
			t.Fatal("expected report to be accepted")
		}
		if !math.IsNaN(sample.Heading) {
			t.Errorf("expected unknown heading, got %f", sample.Heading)
		}
		if sample.AccuracyMeters != fallbackAccuracy {
			t.Errorf("expected fallback accuracy, got %f", sample.AccuracyMeters)
		}
	})
}

func TestGeolocationGPSDProvider_SampleStream(t *testing.T) {
	t.Run("failing watch is retried and duplicate fixes are suppressed", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			runCount := 0
			provider := NewGeolocationGPSDProvider("", "")
			provider.period = time.Millisecond * 10
			provider.watchFn = func(ctx context.Context, emit func(*gpsd.TPVReport)) error {
				runCount++
				if runCount == 1 {
					return errors.New("intentionally failing")
				}
				emit(&gpsd.TPVReport{Mode: gpsd.NoFix, Lat: 1, Lon: 1})
				emit(&gpsd.TPVReport{Mode: gpsd.Mode2D, Lat: 1, Lon: 2})
				emit(&gpsd.TPVReport{Mode: gpsd.Mode2D, Lat: 1, Lon: 2})
				emit(&gpsd.TPVReport{Mode: gpsd.Mode3D, Lat: 1.001, Lon: 2})
				<-ctx.Done()
				return ctx.Err()
			}

			out := provider.SampleStream(ctx)
			var samples []geobus.Sample
			for len(samples) < 2 {
				select {
				case s := <-out:
					samples = append(samples, s)
				case <-ctx.Done():
					t.Fatalf("context done before samples: %v", ctx.Err())
				}
			}
			cancel()
			synctest.Wait()

			if samples[0].Lon != 2 || samples[0].Lat != 1 {
				t.Errorf("expected first sample at 1/2, got %f/%f", samples[0].Lat, samples[0].Lon)
			}
			if samples[1].Lat != 1.001 {
				t.Errorf("expected second sample to have moved, got %f", samples[1].Lat)
			}
			if runCount != 2 {
				t.Errorf("expected watch to run twice, got %d", runCount)
			}
		})
	})
}
