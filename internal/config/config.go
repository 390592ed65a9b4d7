// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kkyr/fig"
)

const (
	configEnv         = "RIDEGRID"
	DefaultTextTpl    = "{{if .Nav.Active}}{{.Nav.Icon}} {{.Nav.Distance}}{{else if .Trip.Recording}}{{.Trip.Speed}}{{else}}{{.Radar.Icon}}{{end}}"
	DefaultTooltipTpl = "{{if .Nav.Active}}{{loc \"Next\"}}: {{.Nav.Instruction}}\n{{loc \"Then\"}}: {{.Nav.NextInstruction}}\n{{end}}" +
		"{{if .Trip.Recording}}{{loc \"Speed\"}}: {{.Trip.Speed}}\n{{loc \"Distance\"}}: {{.Trip.Distance}}\n" +
		"{{loc \"Duration\"}}: {{.Trip.Duration}}\n{{end}}" +
		"{{if .Route.Available}}{{loc \"Route\"}}: {{.Route.Rank}} ({{.Route.Length}}, {{.Route.Duration}})\n{{end}}" +
		"{{loc \"Radar\"}}: {{.Radar.Channel}} ({{.Radar.Peers}})"

	ridegridDir = "ridegrid"
)

// Config represents the application's configuration structure.
type Config struct {
	// Allowed values: metric, imperial
	Units    string     `fig:"units" default:"metric"`
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Rider struct {
		ID      string `fig:"id"`
		GroupID string `fig:"group_id"`
	} `fig:"rider"`

	Navigation struct {
		// Allowed value: 5 to 500
		AdvanceMeters float64 `fig:"advance_meters" default:"30"`
	} `fig:"navigation"`

	Location struct {
		FixTimeout             time.Duration `fig:"fix_timeout" default:"10s"`
		GPSDHost               string        `fig:"gpsd_host" default:"localhost"`
		GPSDPort               string        `fig:"gpsd_port" default:"2947"`
		File                   string        `fig:"file"`
		GPXReplay              string        `fig:"gpx_replay"`
		ReplaySpeed            float64       `fig:"replay_speed" default:"1"`
		DisableGPSD            bool          `fig:"disable_gpsd"`
		DisableGeolocationFile bool          `fig:"disable_geolocation_file"`
	} `fig:"location"`

	Directions struct {
		// Allowed values: osrm, mapbox
		Provider    string `fig:"provider" default:"osrm"`
		Profile     string `fig:"profile" default:"driving"`
		MapboxToken string `fig:"mapbox_token"`
		OSRMURL     string `fig:"osrm_url" default:"https://router.project-osrm.org"`
	} `fig:"directions"`

	Presence struct {
		Enabled bool          `fig:"enabled"`
		NATSURL string        `fig:"nats_url" default:"nats://127.0.0.1:4222"`
		TTL     time.Duration `fig:"ttl" default:"30s"`
	} `fig:"presence"`

	Store struct {
		Path string `fig:"path"`
	} `fig:"store"`

	Intervals struct {
		Output    time.Duration `fig:"output" default:"5s"`
		PeerSweep time.Duration `fig:"peer_sweep" default:"10s"`
	} `fig:"intervals"`

	Templates struct {
		Text    string `fig:"text"`
		Tooltip string `fig:"tooltip"`
	} `fig:"templates"`

	Metrics struct {
		Listen string `fig:"listen"`
	} `fig:"metrics"`

	Alerts struct {
		DisableDesktop bool `fig:"disable_desktop"`
	} `fig:"alerts"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Units != "metric" && c.Units != "imperial" {
		return fmt.Errorf("invalid units: %s", c.Units)
	}
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Rider.ID == "" {
		c.Rider.ID = defaultRiderID()
	}
	if c.Navigation.AdvanceMeters < 5 || c.Navigation.AdvanceMeters > 500 {
		return fmt.Errorf("invalid advance distance: %.0f", c.Navigation.AdvanceMeters)
	}
	if c.Location.FixTimeout <= 0 {
		return fmt.Errorf("invalid fix timeout: %s", c.Location.FixTimeout)
	}
	if c.Location.ReplaySpeed <= 0 {
		return fmt.Errorf("invalid replay speed: %f", c.Location.ReplaySpeed)
	}
	switch strings.ToLower(c.Directions.Provider) {
	case "osrm":
	case "mapbox":
		if c.Directions.MapboxToken == "" {
			return fmt.Errorf("mapbox directions provider requires an access token")
		}
	default:
		return fmt.Errorf("unsupported directions provider: %s", c.Directions.Provider)
	}
	if c.Presence.TTL < time.Second {
		return fmt.Errorf("invalid presence ttl: %s", c.Presence.TTL)
	}
	if c.Intervals.Output <= 0 || c.Intervals.PeerSweep <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}
	home, _ := os.UserHomeDir()
	if c.Location.File == "" {
		c.Location.File = filepath.Join(home, ".config", ridegridDir, "geolocation")
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(home, ".local", "share", ridegridDir, "ridegrid.db")
	}

	return nil
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}

// defaultRiderID derives a stable rider id from the host and user name, so restarts keep the
// same identity on the presence channel.
func defaultRiderID() string {
	host, _ := os.Hostname()
	name := "rider"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name+"@"+host)).String()
}
