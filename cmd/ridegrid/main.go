// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the ridegrid service and its command line tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vorlif/spreak"

	"github.com/wneessen/ridegrid/internal/config"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/i18n"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/presenter"
	"github.com/wneessen/ridegrid/internal/routing"
	"github.com/wneessen/ridegrid/internal/service"
	"github.com/wneessen/ridegrid/internal/store"
	"github.com/wneessen/ridegrid/internal/template"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var errInvalidCoordinates = errors.New("coordinates must be given as lat,lon")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		confPath    string
		replay      string
		replaySpeed float64
	)

	cmd := &cobra.Command{
		Use:           "ridegrid",
		Short:         "Motorcycle ride companion for waybar",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd.Context(), confPath, replay, replaySpeed)
		},
	}
	cmd.PersistentFlags().StringVarP(&confPath, "config", "c", "", "path to the config file")
	cmd.PersistentFlags().StringVar(&replay, "replay", "", "replay a GPX track instead of the live sensors")
	cmd.PersistentFlags().Float64Var(&replaySpeed, "replay-speed", 0, "replay speed factor (0 keeps the configured one)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the waybar module service",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runService(cmd.Context(), confPath, replay, replaySpeed)
			},
		},
		planCmd(&confPath),
		routesCmd(&confPath),
		tripsCmd(&confPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ridegrid %s (commit: %s, built: %s)\n", version, commit, date)
			},
		},
	)
	return cmd
}

func runService(ctx context.Context, confPath, replay string, replaySpeed float64) error {
	conf, log, t, err := setup(confPath)
	if err != nil {
		return err
	}
	if replay != "" {
		conf.Location.GPXReplay = replay
	}
	if replaySpeed > 0 {
		conf.Location.ReplaySpeed = replaySpeed
	}

	serv, err := service.New(conf, log, t)
	if err != nil {
		return fmt.Errorf("failed to initialize ridegrid service: %w", err)
	}

	log.Info(t.Get("starting ridegrid service"), slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date))
	if err = serv.Run(ctx); err != nil {
		log.Error(t.Get("failed to start ridegrid service"), logger.Err(err))
	}
	log.Info(t.Get("shutting down ridegrid service"))
	return nil
}

func planCmd(confPath *string) *cobra.Command {
	var (
		from, to      string
		via           []string
		selected      int
		name          string
		vibe, surface string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan route alternatives and optionally save one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			waypoints, err := parseWaypoints(from, to, via)
			if err != nil {
				return err
			}
			serv, err := cliService(*confPath)
			if err != nil {
				return err
			}
			defer func() { _ = serv.Close() }()

			batch, err := serv.Plan(cmd.Context(), waypoints)
			if err != nil {
				return err
			}
			printCandidates(cmd.OutOrStdout(), batch)

			if name == "" {
				return nil
			}
			if err = serv.SelectRoute(selected); err != nil {
				return err
			}
			return serv.SaveRoute(cmd.Context(), store.Meta{Name: name, Vibe: vibe, Surface: surface})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start as lat,lon (defaults to the current location)")
	cmd.Flags().StringVar(&to, "to", "", "destination as lat,lon")
	cmd.Flags().StringSliceVar(&via, "via", nil, "intermediate stop as lat,lon, may be repeated")
	cmd.Flags().IntVar(&selected, "select", 0, "candidate to save")
	cmd.Flags().StringVar(&name, "save", "", "save the selected candidate under this name")
	cmd.Flags().StringVar(&vibe, "vibe", "", "vibe of the saved route (scenic, twisty, straight)")
	cmd.Flags().StringVar(&surface, "surface", "tarmac", "surface of the saved route (tarmac, gravel, mixed)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func routesCmd(confPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List saved routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(*confPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			routes, err := st.Routes(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range routes {
				_, _ = fmt.Fprintf(out, "%s  %s %s %s %s\n", r.ID[:8], template.Pad(r.Name, 24),
					template.Pad(r.Vibe, 9), template.Pad(presenter.FormatDistance(r.LengthKm*1000, false), 10),
					r.CreatedAt.Local().Format("2006-01-02"))
			}
			return nil
		},
	}
}

func tripsCmd(confPath *string) *cobra.Command {
	var exportID, outPath string

	cmd := &cobra.Command{
		Use:   "trips",
		Short: "List recorded trips or export one as GPX",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(*confPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			trips, err := st.Trips(cmd.Context())
			if err != nil {
				return err
			}
			if exportID == "" {
				out := cmd.OutOrStdout()
				for _, trip := range trips {
					night := ""
					if trip.Night {
						night = "🌙"
					}
					_, _ = fmt.Fprintf(out, "%s  %s %s %s %s %s\n", trip.ID[:8], template.Pad(trip.Name, 24),
						template.Pad(presenter.FormatDistance(trip.LengthKm*1000, false), 10),
						template.Pad(strconv.Itoa(trip.DurationMin)+" min", 8),
						trip.StartedAt.Local().Format("2006-01-02 15:04"), night)
				}
				return nil
			}

			for _, trip := range trips {
				if !strings.HasPrefix(trip.ID, exportID) {
					continue
				}
				return exportTrip(cmd.OutOrStdout(), trip, outPath)
			}
			return fmt.Errorf("no trip with ID %q", exportID)
		},
	}
	cmd.Flags().StringVar(&exportID, "export", "", "ID or ID prefix of the trip to export")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "GPX output file (defaults to stdout)")
	return cmd
}

func exportTrip(stdout io.Writer, trip store.Trip, outPath string) error {
	points, err := trip.TripPoints()
	if err != nil {
		return err
	}
	if outPath == "" {
		return store.ExportGPX(stdout, trip.Name, points)
	}

	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create GPX file: %w", err)
	}
	if err = store.ExportGPX(file, trip.Name, points); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func printCandidates(w io.Writer, batch routing.Batch) {
	for i, c := range batch.Candidates {
		marker := " "
		if i == batch.Selected {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s %d  %s %s %s %s\n", marker, i, template.Pad(c.Rank.String(), 12),
			template.Pad(presenter.FormatDistance(c.LengthKm*1000, false), 10),
			template.Pad(strconv.Itoa(c.DurationMin)+" min", 8), c.Vibe.String())
	}
}

// parseWaypoints builds the waypoint list. An empty start is resolved from the current location.
func parseWaypoints(from, to string, via []string) ([]routing.Waypoint, error) {
	start := routing.Waypoint{IsCurrentLocation: true, Label: "current location"}
	if from != "" {
		p, err := parseCoordinates(from)
		if err != nil {
			return nil, err
		}
		start = routing.Waypoint{Coordinates: p, Label: from}
	}
	waypoints := []routing.Waypoint{start}

	for _, v := range append(via, to) {
		p, err := parseCoordinates(v)
		if err != nil {
			return nil, err
		}
		waypoints = append(waypoints, routing.Waypoint{Coordinates: p, Label: v})
	}
	return waypoints, nil
}

func parseCoordinates(val string) (geomath.Point, error) {
	latStr, lonStr, ok := strings.Cut(val, ",")
	if !ok {
		return geomath.Point{}, fmt.Errorf("%w: %q", errInvalidCoordinates, val)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geomath.Point{}, fmt.Errorf("%w: %q", errInvalidCoordinates, val)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return geomath.Point{}, fmt.Errorf("%w: %q", errInvalidCoordinates, val)
	}
	p := geomath.NewPoint(lat, lon)
	if !geomath.Valid(p) {
		return geomath.Point{}, fmt.Errorf("%w: %q is out of range", errInvalidCoordinates, val)
	}
	return p, nil
}

func cliService(confPath string) (*service.Service, error) {
	conf, log, t, err := setup(confPath)
	if err != nil {
		return nil, err
	}
	conf.Alerts.DisableDesktop = true
	return service.New(conf, log, t, service.WithOutput(io.Discard))
}

func openStore(confPath string) (*store.Store, error) {
	conf, log, _, err := setup(confPath)
	if err != nil {
		return nil, err
	}
	return store.Open(conf.Store.Path, log)
}

// setup loads the configuration and creates the logger and localizer.
func setup(confPath string) (*config.Config, *logger.Logger, *spreak.Localizer, error) {
	conf, err := loadConfig(confPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.New(conf.LogLevel)
	t, err := i18n.New(conf.Locale)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize localizer: %w", err)
	}
	return conf, log, t, nil
}

func loadConfig(confPath string) (*config.Config, error) {
	if confPath != "" {
		conf, err := config.NewFromFile(filepath.Dir(confPath), filepath.Base(confPath))
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		return conf, nil
	}

	// Check if we have a config file in the default location
	if path, file := findConfigFile(); path != "" && file != "" {
		conf, err := config.NewFromFile(path, file)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		return conf, nil
	}

	conf, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return conf, nil
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "ridegrid", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
