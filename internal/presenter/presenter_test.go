// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/vorlif/spreak"

	"github.com/wneessen/ridegrid/internal/config"
	"github.com/wneessen/ridegrid/internal/directions"
	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/i18n"
	"github.com/wneessen/ridegrid/internal/navigation"
	"github.com/wneessen/ridegrid/internal/radar"
	"github.com/wneessen/ridegrid/internal/recorder"
	"github.com/wneessen/ridegrid/internal/routing"
)

var (
	now   = time.Date(2026, time.May, 1, 16, 56, 0, 0, time.UTC)
	input = Input{
		Position:    geobus.Sample{Lat: 52.5, Lon: 13.4, SpeedMps: 10, Heading: 90},
		HasPosition: true,
		NavState:    navigation.Active,
		Progress:    navigation.Progress{StepIndex: 1, DistanceToNext: 1234},
		Current:     directions.Maneuver{Instruction: "Turn left onto Hauptstraße", Location: geomath.NewPoint(52.5, 13.41)},
		Next:        directions.Maneuver{Instruction: "Arrive at your destination", Location: geomath.NewPoint(52.5, 13.42)},
		HasNext:     true,
		Recording:   true,
		Live:        recorder.Live{SpeedKmh: 36, DistanceKm: 0.4567, Duration: 83 * time.Second},
		Batch: routing.Batch{
			Candidates: []routing.Candidate{
				{ID: 0, LengthKm: 12.34, DurationMin: 18, Rank: routing.Fastest, Vibe: geomath.Curvy},
				{ID: 1, LengthKm: 10.5, DurationMin: 21, Rank: routing.Shortest, Vibe: geomath.Straight},
			},
			Selected: 0,
		},
		RadarActive: true,
		Channel:     "sync_harz",
		Peers:       2,
	}
)

func testConfLang(t *testing.T) (*config.Config, *spreak.Localizer) {
	t.Helper()
	conf, err := config.New()
	if err != nil {
		t.Fatalf("failed to create config: %s", err)
	}
	lang, err := i18n.New("en")
	if err != nil {
		t.Fatalf("failed to create localizer: %s", err)
	}
	return conf, lang
}

func TestNew(t *testing.T) {
	t.Run("creating a new presenter succeeds", func(t *testing.T) {
		conf, lang := testConfLang(t)
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		if pres == nil {
			t.Fatal("expected presenter to be non-nil")
		}
	})
	t.Run("creating presenter with invalid templates fails", func(t *testing.T) {
		tests := []struct {
			name       string
			templateFn func(conf *config.Config)
		}{
			{"text", func(conf *config.Config) { conf.Templates.Text = "{{invalid" }},
			{"tooltip", func(conf *config.Config) { conf.Templates.Tooltip = "{{invalid" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				conf, lang := testConfLang(t)
				tt.templateFn(conf)
				_, err := New(conf, lang)
				if err == nil {
					t.Fatal("expected presenter to fail, but didn't")
				}
				wantErr := "failed to parse"
				if !strings.Contains(err.Error(), wantErr) {
					t.Errorf("expected error to contain %q, got %q", wantErr, err)
				}
			})
		}
	})
	t.Run("creating presenter with template execution errors fails", func(t *testing.T) {
		tests := []struct {
			name       string
			templateFn func(conf *config.Config)
		}{
			{"text", func(conf *config.Config) { conf.Templates.Text = "{{.Data}}" }},
			{"tooltip", func(conf *config.Config) { conf.Templates.Tooltip = "{{.Data}}" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				conf, lang := testConfLang(t)
				tt.templateFn(conf)
				_, err := New(conf, lang)
				if err == nil {
					t.Fatal("expected presenter to fail, but didn't")
				}
				wantErr := "failed to render"
				if !strings.Contains(err.Error(), wantErr) {
					t.Errorf("expected error to contain %q, got %q", wantErr, err)
				}
			})
		}
	})
}

func TestPresenter_BuildContext(t *testing.T) {
	t.Run("building context succeeds", func(t *testing.T) {
		conf, lang := testConfLang(t)
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		ctx := pres.BuildContext(input, now)

		if !ctx.HasPosition || ctx.Latitude != 52.5 || ctx.Longitude != 13.4 {
			t.Errorf("unexpected position: %f, %f", ctx.Latitude, ctx.Longitude)
		}
		if ctx.Speed != "36 km/h" {
			t.Errorf("expected speed 36 km/h, got %q", ctx.Speed)
		}
		if ctx.Updated != "4:56 p.m." {
			t.Errorf("expected localized update time, got %q", ctx.Updated)
		}
		if !ctx.Nav.Active || ctx.Nav.State != "Navigating" {
			t.Errorf("unexpected navigation state: %+v", ctx.Nav)
		}
		if ctx.Nav.IconKind != IconLeft || ctx.Nav.Icon != Icons[IconLeft] {
			t.Errorf("expected left turn icon, got %s", ctx.Nav.IconKind)
		}
		if ctx.Nav.Distance != "1.2 km" {
			t.Errorf("expected distance 1.2 km, got %q", ctx.Nav.Distance)
		}
		if ctx.Nav.NextInstruction != "Arrive at your destination" || ctx.Nav.NextIcon != Icons[IconArrive] {
			t.Errorf("unexpected next instruction: %+v", ctx.Nav)
		}
		if ctx.Trip.Distance != "457 m" || ctx.Trip.Duration != "1:23" || ctx.Trip.Speed != "36 km/h" {
			t.Errorf("unexpected trip view: %+v", ctx.Trip)
		}
		if !ctx.Route.Available || ctx.Route.Rank != "Fastest" || ctx.Route.Vibe != "Curvy" ||
			ctx.Route.Length != "12.3 km" || ctx.Route.Duration != "18 min" || ctx.Route.Candidates != 2 {
			t.Errorf("unexpected route view: %+v", ctx.Route)
		}
		if ctx.Radar.Channel != "Group harz" || ctx.Radar.PeersLabel != "2 riders" {
			t.Errorf("unexpected radar view: %+v", ctx.Radar)
		}
	})
	t.Run("building an empty context", func(t *testing.T) {
		conf, lang := testConfLang(t)
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		ctx := pres.BuildContext(Input{}, now)
		if ctx.HasPosition || ctx.Nav.Active || ctx.Trip.Recording || ctx.Route.Available || ctx.Radar.Active {
			t.Errorf("expected an empty context, got %+v", ctx)
		}
		if ctx.Nav.State != "Idle" || ctx.Radar.Channel != "Off" {
			t.Errorf("unexpected labels: %q, %q", ctx.Nav.State, ctx.Radar.Channel)
		}
	})
	t.Run("public channel and unknown distance", func(t *testing.T) {
		conf, lang := testConfLang(t)
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		in := input
		in.Channel = radar.PublicChannel
		in.Peers = 1
		in.Progress = navigation.Progress{DistanceToNext: math.Inf(1)}
		ctx := pres.BuildContext(in, now)
		if ctx.Radar.Channel != "Public" || ctx.Radar.PeersLabel != "1 rider" {
			t.Errorf("unexpected radar view: %+v", ctx.Radar)
		}
		if ctx.Nav.Distance != "" {
			t.Errorf("expected unknown distance to render empty, got %q", ctx.Nav.Distance)
		}
	})
	t.Run("german labels", func(t *testing.T) {
		conf, _ := testConfLang(t)
		lang, err := i18n.New("de")
		if err != nil {
			t.Fatalf("failed to create localizer: %s", err)
		}
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		ctx := pres.BuildContext(input, now)
		if ctx.Nav.State != "Navigation" || ctx.Route.Rank != "Schnellste" || ctx.Radar.Channel != "Gruppe harz" {
			t.Errorf("unexpected german labels: %q, %q, %q", ctx.Nav.State, ctx.Route.Rank, ctx.Radar.Channel)
		}
		if ctx.Updated != "16:56" {
			t.Errorf("expected 24h update time, got %q", ctx.Updated)
		}
	})
}

func TestPresenter_Render(t *testing.T) {
	t.Run("rendering succeeds", func(t *testing.T) {
		conf, lang := testConfLang(t)
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		out, err := pres.Render(pres.BuildContext(input, now))
		if err != nil {
			t.Fatalf("failed to render: %s", err)
		}
		wantText := Icons[IconLeft] + " 1.2 km"
		wantTooltip := `Next: Turn left onto Hauptstraße
Then: Arrive at your destination
Speed: 36 km/h
Distance: 457 m
Duration: 1:23
Route: Fastest (12.3 km, 18 min)
Radar: Group harz (2)`
		if out.Text != wantText {
			t.Errorf("expected text output to be %q, got %q", wantText, out.Text)
		}
		if out.Tooltip != wantTooltip {
			t.Errorf("expected tooltip output to be %q, got %q", wantTooltip, out.Tooltip)
		}
		if out.Class != "navigating" {
			t.Errorf("expected class navigating, got %q", out.Class)
		}
	})
	t.Run("css class follows the most important activity", func(t *testing.T) {
		conf, lang := testConfLang(t)
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		tests := []struct {
			name string
			in   Input
			want string
		}{
			{"idle", Input{}, "idle"},
			{"radar", Input{RadarActive: true, Channel: radar.PublicChannel}, "radar"},
			{"recording", Input{Recording: true, RadarActive: true}, "recording"},
			{"navigating", Input{NavState: navigation.Active, Recording: true}, "navigating"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				out, err := pres.Render(pres.BuildContext(tt.in, now))
				if err != nil {
					t.Fatalf("failed to render: %s", err)
				}
				if out.Class != tt.want {
					t.Errorf("expected class %q, got %q", tt.want, out.Class)
				}
			})
		}
	})
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		name     string
		meters   float64
		imperial bool
		want     string
	}{
		{"zero", 0, false, "0 m"},
		{"meters are rounded", 999.4, false, "999 m"},
		{"kilometers", 1000, false, "1.0 km"},
		{"kilometers with decimal", 12345, false, "12.3 km"},
		{"unknown", math.Inf(1), false, ""},
		{"feet", 100, true, "328 ft"},
		{"miles", 1609.344, true, "1.0 mi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDistance(tt.meters, tt.imperial); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatSpeedAndDuration(t *testing.T) {
	if got := FormatSpeed(100, true); got != "62 mph" {
		t.Errorf("expected 62 mph, got %q", got)
	}
	if got := FormatDuration(3*time.Second + 400*time.Millisecond); got != "0:03" {
		t.Errorf("expected 0:03, got %q", got)
	}
	if got := FormatDuration(time.Hour + 2*time.Minute + 3*time.Second); got != "1:02:03" {
		t.Errorf("expected 1:02:03, got %q", got)
	}
}

func TestIconKindOf(t *testing.T) {
	tests := []struct {
		instruction string
		want        IconKind
	}{
		{"Turn left onto Main Street", IconLeft},
		{"Keep right at the fork", IconRight},
		{"You have arrived at your destination", IconArrive},
		{"Make a U-turn", IconUTurn},
		{"Continue on B2", IconStraight},
		{"", IconStraight},
	}
	for _, tt := range tests {
		t.Run(tt.instruction, func(t *testing.T) {
			if got := IconKindOf(tt.instruction); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
