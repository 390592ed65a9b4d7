// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/ridegrid/internal/alert"
	"github.com/wneessen/ridegrid/internal/directions"
	"github.com/wneessen/ridegrid/internal/directions/mapbox"
	"github.com/wneessen/ridegrid/internal/directions/osrm"
	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/geobus/provider/geolocation_file"
	"github.com/wneessen/ridegrid/internal/geobus/provider/gpsd"
	"github.com/wneessen/ridegrid/internal/geobus/provider/gpxreplay"
	"github.com/wneessen/ridegrid/internal/gpspoll"
	"github.com/wneessen/ridegrid/internal/http"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/presence"
)

// fixMaxAge is the age up to which a sample on the bus answers a one-shot fix.
const fixMaxAge = 30 * time.Second

func (s *Service) selectGeobusProviders() ([]geobus.Provider, error) {
	var provider []geobus.Provider

	if s.config.Location.GPXReplay != "" {
		replay, err := gpxreplay.NewFromFile(s.config.Location.GPXReplay,
			gpxreplay.WithSpeed(s.config.Location.ReplaySpeed))
		if err != nil {
			return nil, fmt.Errorf("failed to create GPX replay provider: %w", err)
		}
		// A replayed track replaces the live sensors.
		return append(provider, replay), nil
	}

	if !s.config.Location.DisableGeolocationFile {
		provider = append(provider, geolocation_file.NewGeolocationFileProvider(s.config.Location.File))
	}

	if !s.config.Location.DisableGPSD {
		provider = append(provider, gpsd.NewGeolocationGPSDProvider(s.config.Location.GPSDHost,
			s.config.Location.GPSDPort))
	}

	if len(provider) == 0 {
		return nil, fmt.Errorf("no location providers enabled")
	}

	return provider, nil
}

// selectLocator answers one-shot fixes from the bus first and polls gpsd directly if the bus has
// nothing recent.
func (s *Service) selectLocator() geobus.Locator {
	locators := []geobus.Locator{geobus.NewBusLocator(s.geobus, fixMaxAge)}
	if !s.config.Location.DisableGPSD && s.config.Location.GPXReplay == "" {
		locators = append(locators, gpspoll.New(s.config.Location.GPSDHost, s.config.Location.GPSDPort))
	}
	return geobus.FirstOf(locators...)
}

func (s *Service) selectDirectionsProvider() (directions.Provider, error) {
	client := http.New(s.logger)

	switch strings.ToLower(s.config.Directions.Provider) {
	case "osrm":
		return osrm.New(client, s.config.Directions.OSRMURL, s.config.Directions.Profile), nil
	case "mapbox":
		provider, err := mapbox.New(client, s.config.Directions.MapboxToken, s.config.Directions.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to create Mapbox directions provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported directions provider: %s", s.config.Directions.Provider)
	}
}

// selectPresenceChannel connects to NATS when presence sharing is enabled. Otherwise the radar
// runs on a process-local hub and only ever sees the own rider.
func (s *Service) selectPresenceChannel() (presence.Channel, error) {
	if !s.config.Presence.Enabled {
		return presence.NewHub().Channel(), nil
	}
	channel, err := presence.Connect(s.config.Presence.NATSURL, s.logger, presence.WithTTL(s.config.Presence.TTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create presence channel: %w", err)
	}
	return channel, nil
}

// selectAlertSink logs every alert and, unless disabled, shows it as desktop notification.
func (s *Service) selectAlertSink() alert.Sink {
	sinks := alert.Multi{alert.Log{Logger: s.logger}}
	if !s.config.Alerts.DisableDesktop {
		messages := make(map[alert.Kind]alert.Message, len(alert.DefaultMessages))
		for kind, msg := range alert.DefaultMessages {
			messages[kind] = alert.Message{
				Summary: s.localizer.Get(msg.Summary),
				Body:    s.localizer.Get(msg.Body),
				Icon:    msg.Icon,
			}
		}
		notifier, err := alert.NewDBusNotifier(s.logger, messages)
		if err != nil {
			s.logger.Warn("desktop notifications unavailable", logger.Err(err))
		} else {
			sinks = append(sinks, notifier)
		}
	}
	return alert.NewAsync(sinks, s.logger)
}
