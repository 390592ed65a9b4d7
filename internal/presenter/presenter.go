// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter turns the state of the ride components into the waybar module output.
package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/vorlif/spreak"

	"github.com/wneessen/ridegrid/internal/config"
	"github.com/wneessen/ridegrid/internal/directions"
	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/navigation"
	"github.com/wneessen/ridegrid/internal/radar"
	"github.com/wneessen/ridegrid/internal/recorder"
	"github.com/wneessen/ridegrid/internal/routing"
	"github.com/wneessen/ridegrid/internal/template"
)

// Input is a snapshot of the component state taken by the service.
type Input struct {
	Position    geobus.Sample
	HasPosition bool

	NavState navigation.State
	Progress navigation.Progress
	Current  directions.Maneuver
	Next     directions.Maneuver
	HasNext  bool

	Recording bool
	Live      recorder.Live

	Batch routing.Batch

	RadarActive bool
	Channel     string
	Peers       int
}

type NavView struct {
	Active          bool
	State           string
	Instruction     string
	NextInstruction string
	IconKind        IconKind
	Icon            string
	NextIcon        string
	Distance        string
}

type TripView struct {
	Recording bool
	Speed     string
	Distance  string
	Duration  string
}

type RouteView struct {
	Available  bool
	Rank       string
	Vibe       string
	Length     string
	Duration   string
	Candidates int
}

type RadarView struct {
	Active     bool
	Icon       string
	Channel    string
	Peers      int
	PeersLabel string
}

type TemplateContext struct {
	Latitude    float64
	Longitude   float64
	HasPosition bool
	Speed       string
	UpdateTime  time.Time
	Updated     string

	Nav   NavView
	Trip  TripView
	Route RouteView
	Radar RadarView
}

// Output is a single line of the waybar custom module protocol.
type Output struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
}

type Presenter struct {
	templates *template.Templates
	localizer *spreak.Localizer
	imperial  bool
}

// New parses the configured templates and checks that they render against an empty context.
func New(conf *config.Config, loc *spreak.Localizer) (*Presenter, error) {
	tpls, err := template.New(conf, loc)
	if err != nil {
		return nil, err
	}
	p := &Presenter{
		templates: tpls,
		localizer: loc,
		imperial:  strings.EqualFold(conf.Units, "imperial"),
	}
	if _, err = p.Render(p.BuildContext(Input{}, time.Now())); err != nil {
		return nil, fmt.Errorf("failed to render templates: %w", err)
	}
	return p, nil
}

func (p *Presenter) BuildContext(in Input, now time.Time) TemplateContext {
	ctx := TemplateContext{
		HasPosition: in.HasPosition,
		UpdateTime:  now,
		Updated:     p.templates.LocalizedTime(now),
		Nav:         p.navView(in),
		Trip:        p.tripView(in),
		Route:       p.routeView(in.Batch),
		Radar:       p.radarView(in),
	}
	if in.HasPosition {
		ctx.Latitude = in.Position.Lat
		ctx.Longitude = in.Position.Lon
		ctx.Speed = FormatSpeed(in.Position.SpeedKmh(), p.imperial)
	}
	return ctx
}

// Render executes the templates and selects the CSS class of the module.
func (p *Presenter) Render(ctx TemplateContext) (Output, error) {
	text, tooltip, err := p.templates.Execute(ctx)
	if err != nil {
		return Output{}, err
	}
	return Output{Text: text, Tooltip: tooltip, Class: cssClass(ctx)}, nil
}

func (p *Presenter) navView(in Input) NavView {
	view := NavView{
		Active: in.NavState == navigation.Active,
		State:  p.templates.Localize(navStateLabels[in.NavState]),
	}
	if in.NavState == navigation.Idle {
		return view
	}
	view.Instruction = in.Current.Instruction
	view.IconKind = IconKindOf(in.Current.Instruction)
	view.Icon = Icons[view.IconKind]
	view.Distance = FormatDistance(in.Progress.DistanceToNext, p.imperial)
	if in.HasNext {
		view.NextInstruction = in.Next.Instruction
		view.NextIcon = Icons[IconKindOf(in.Next.Instruction)]
	}
	return view
}

func (p *Presenter) tripView(in Input) TripView {
	if !in.Recording {
		return TripView{}
	}
	return TripView{
		Recording: true,
		Speed:     FormatSpeed(in.Live.SpeedKmh, p.imperial),
		Distance:  FormatDistance(in.Live.DistanceKm*1000, p.imperial),
		Duration:  FormatDuration(in.Live.Duration),
	}
}

func (p *Presenter) routeView(batch routing.Batch) RouteView {
	c, ok := batch.Active()
	if !ok {
		return RouteView{}
	}
	return RouteView{
		Available:  true,
		Rank:       p.templates.Localize(c.Rank.String()),
		Vibe:       p.templates.Localize(c.Vibe.String()),
		Length:     FormatDistance(c.LengthKm*1000, p.imperial),
		Duration:   fmt.Sprintf("%d min", c.DurationMin),
		Candidates: len(batch.Candidates),
	}
}

func (p *Presenter) radarView(in Input) RadarView {
	if !in.RadarActive {
		return RadarView{Channel: p.templates.Localize("Off")}
	}
	return RadarView{
		Active:     true,
		Icon:       radarIcon,
		Channel:    p.channelLabel(in.Channel),
		Peers:      in.Peers,
		PeersLabel: p.localizer.NGetf("%d rider", "%d riders", in.Peers, in.Peers),
	}
}

func (p *Presenter) channelLabel(channel string) string {
	if channel == radar.PublicChannel {
		return p.templates.Localize("Public")
	}
	if group, ok := strings.CutPrefix(channel, "sync_"); ok {
		return p.templates.Localize("Group") + " " + group
	}
	return channel
}

func cssClass(ctx TemplateContext) string {
	switch {
	case ctx.Nav.Active:
		return "navigating"
	case ctx.Trip.Recording:
		return "recording"
	case ctx.Radar.Active:
		return "radar"
	default:
		return "idle"
	}
}
