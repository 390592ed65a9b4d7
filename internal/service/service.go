// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package service wires the ride components into the long-running waybar module.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"

	"github.com/wneessen/ridegrid/internal/alert"
	"github.com/wneessen/ridegrid/internal/config"
	"github.com/wneessen/ridegrid/internal/directions"
	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/metrics"
	"github.com/wneessen/ridegrid/internal/navigation"
	"github.com/wneessen/ridegrid/internal/presence"
	"github.com/wneessen/ridegrid/internal/presenter"
	"github.com/wneessen/ridegrid/internal/radar"
	"github.com/wneessen/ridegrid/internal/recorder"
	"github.com/wneessen/ridegrid/internal/routing"
	"github.com/wneessen/ridegrid/internal/store"
)

const (
	metricsShutdownTimeout = 5 * time.Second
	storeDirPerm           = 0o750
)

// ErrNoActiveRoute is returned when navigation or saving needs a selected route candidate.
var ErrNoActiveRoute = errors.New("no active route candidate")

// sweeper is implemented by presence channels whose membership expires.
type sweeper interface {
	Sweep()
}

type Service struct {
	config       *config.Config
	geobus       *geobus.GeoBus
	localizer    *spreak.Localizer
	logger       *logger.Logger
	metrics      *metrics.Metrics
	orchestrator *geobus.Orchestrator
	output       io.Writer
	presenter    *presenter.Presenter
	scheduler    gocron.Scheduler
	signals      signalSource

	alerts    alert.Sink
	channel   presence.Channel
	navigator *navigation.Navigator
	radar     *radar.Radar
	recorder  *recorder.Recorder
	routing   *routing.Engine
	store     *store.Store

	radarLock    sync.Mutex
	radarSession *radar.Session

	outputLock sync.Mutex
}

// Option overrides a collaborator of the service.
type Option func(*options)

type options struct {
	output     io.Writer
	directions directions.Provider
	channel    presence.Channel
	providers  []geobus.Provider
	alerts     alert.Sink
	signals    signalSource
}

// WithOutput sets the writer the waybar JSON lines are written to. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

func WithDirections(p directions.Provider) Option {
	return func(o *options) {
		o.directions = p
	}
}

func WithPresenceChannel(c presence.Channel) Option {
	return func(o *options) {
		o.channel = c
	}
}

func WithLocationProviders(p ...geobus.Provider) Option {
	return func(o *options) {
		o.providers = p
	}
}

func WithAlertSink(sink alert.Sink) Option {
	return func(o *options) {
		o.alerts = sink
	}
}

func New(conf *config.Config, log *logger.Logger, loc *spreak.Localizer, opts ...Option) (*Service, error) {
	o := &options{output: os.Stdout, signals: stdLibSignalSource{}}
	for _, opt := range opts {
		opt(o)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	pres, err := presenter.New(conf, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	m := metrics.New()
	s := &Service{
		config:    conf,
		geobus:    geobus.New(log, geobus.WithMetrics(m)),
		localizer: loc,
		logger:    log,
		metrics:   m,
		output:    o.output,
		presenter: pres,
		scheduler: scheduler,
		signals:   o.signals,
	}

	providers := o.providers
	if providers == nil {
		if providers, err = s.selectGeobusProviders(); err != nil {
			return nil, err
		}
	}
	s.orchestrator = s.geobus.NewOrchestrator(providers)

	dirProvider := o.directions
	if dirProvider == nil {
		if dirProvider, err = s.selectDirectionsProvider(); err != nil {
			return nil, err
		}
	}
	s.routing = routing.New(dirProvider, s.selectLocator(), log,
		routing.WithFixTimeout(conf.Location.FixTimeout), routing.WithMetrics(m))

	s.alerts = o.alerts
	if s.alerts == nil {
		s.alerts = s.selectAlertSink()
	}
	s.navigator = navigation.New(s.alerts, log, navigation.WithAdvanceMeters(conf.Navigation.AdvanceMeters),
		navigation.WithMetrics(m))
	s.recorder = recorder.New(s.geobus, log, recorder.WithFreeRideHook(s.onFreeRide), recorder.WithMetrics(m))

	s.channel = o.channel
	if s.channel == nil {
		if s.channel, err = s.selectPresenceChannel(); err != nil {
			return nil, err
		}
	}
	s.radar = radar.New(s.channel, s.geobus, s.alerts, log, radar.WithMetrics(m))

	if err = os.MkdirAll(filepath.Dir(conf.Store.Path), storeDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if s.store, err = store.Open(conf.Store.Path, log, store.WithMetrics(m)); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) Run(ctx context.Context) error {
	// Start scheduled jobs
	if err := s.createScheduledJob(ctx, s.config.Intervals.Output, s.printStatus,
		"status_output_job"); err != nil {
		return err
	}
	if sw, ok := s.channel.(sweeper); ok {
		if err := s.createScheduledJob(ctx, s.config.Intervals.PeerSweep, func(context.Context) { sw.Sweep() },
			"peer_sweep_job"); err != nil {
			return err
		}
	}
	s.scheduler.Start()

	// Feed the navigator from its own subscription
	samples, unsub := s.geobus.Subscribe(geobus.SubscribeOptions{})
	go s.navigator.Run(ctx, samples)
	go s.orchestrator.Track(ctx)
	go s.monitorSleepResume(ctx)

	sigChan := make(chan os.Signal, 1)
	s.signals.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	go s.HandleToggleSignals(ctx, sigChan)

	if s.config.Metrics.Listen != "" {
		go s.serveMetrics(ctx)
	}

	// Wait for the context to cancel
	<-ctx.Done()
	s.signals.Stop(sigChan)
	unsub()
	s.shutdown()
	return s.scheduler.Shutdown()
}

// Close releases the store. It is only needed when Run was never called.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) shutdown() {
	if s.recorder.Recording() {
		if _, err := s.StopTrip(context.Background(), store.Meta{}); err != nil &&
			!errors.Is(err, recorder.ErrTripTooShort) {
			s.logger.Error("failed to save trip on shutdown", logger.Err(err))
		}
	}
	if err := s.StopRadar(); err != nil {
		s.logger.Error("failed to deactivate radar", logger.Err(err))
	}
	if closer, ok := s.channel.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("failed to close presence channel", logger.Err(err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close store", logger.Err(err))
	}
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// Plan requests route alternatives through the waypoints.
func (s *Service) Plan(ctx context.Context, waypoints []routing.Waypoint) (routing.Batch, error) {
	return s.routing.Plan(ctx, waypoints)
}

// PlanTo requests route alternatives from the current location to dest.
func (s *Service) PlanTo(ctx context.Context, dest geomath.Point) (routing.Batch, error) {
	return s.routing.PlanTo(ctx, dest)
}

// SelectRoute makes the i-th candidate of the current batch the active one.
func (s *Service) SelectRoute(i int) error {
	return s.routing.Select(i)
}

// StartNavigation arms the navigator with the active candidate and records the ride.
func (s *Service) StartNavigation(ctx context.Context) error {
	candidate, ok := s.routing.Active()
	if !ok {
		return ErrNoActiveRoute
	}
	if err := s.navigator.Arm(candidate.Maneuvers); err != nil {
		return err
	}
	if err := s.recorder.Start(ctx, recorder.ModeNavigation); err != nil &&
		!errors.Is(err, recorder.ErrAlreadyRecording) {
		return err
	}
	s.logger.Info("navigation started", slog.String("rank", candidate.Rank.String()),
		slog.Int("maneuvers", len(candidate.Maneuvers)))
	return nil
}

func (s *Service) StopNavigation() {
	s.navigator.Stop()
}

// StartTrip starts recording a trip.
func (s *Service) StartTrip(ctx context.Context, mode recorder.Mode) error {
	return s.recorder.Start(ctx, mode)
}

// StopTrip ends the recording and saves the trip. Empty name and surface get defaults, an empty
// vibe is derived from the trip.
func (s *Service) StopTrip(ctx context.Context, meta store.Meta) (recorder.Summary, error) {
	summary, err := s.recorder.Stop()
	if err != nil {
		return summary, err
	}
	if meta.Name == "" {
		meta.Name = "Ride " + summary.StartedAt.Local().Format("2006-01-02 15:04")
	}
	if meta.Surface == "" {
		meta.Surface = "tarmac"
	}
	if err = s.store.SaveTrip(ctx, meta, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// SaveRoute stores the active route candidate.
func (s *Service) SaveRoute(ctx context.Context, meta store.Meta) error {
	candidate, ok := s.routing.Active()
	if !ok {
		return ErrNoActiveRoute
	}
	if meta.Vibe == "" {
		meta.Vibe = store.VibeOf(candidate.Vibe)
	}
	return s.store.SaveRoute(ctx, meta, candidate.Geometry, store.RouteStats{
		LengthKm:    candidate.LengthKm,
		DurationMin: candidate.DurationMin,
		Sinuosity:   candidate.Sinuosity,
	})
}

func (s *Service) Store() *store.Store {
	return s.store
}

// StartRadar joins the presence channel of the configured rider. The session lives until StopRadar
// is called or ctx is cancelled.
func (s *Service) StartRadar(ctx context.Context) error {
	s.radarLock.Lock()
	defer s.radarLock.Unlock()

	session, err := s.radar.Activate(ctx, radar.Membership{
		RiderID: s.config.Rider.ID,
		GroupID: s.config.Rider.GroupID,
	})
	if err != nil {
		return err
	}
	s.radarSession = session
	return nil
}

func (s *Service) StopRadar() error {
	s.radarLock.Lock()
	session := s.radarSession
	s.radarSession = nil
	s.radarLock.Unlock()
	return s.radar.Deactivate(session)
}

// onFreeRide drops the planned routes and cancels guidance when a free ride starts.
func (s *Service) onFreeRide() {
	s.routing.Clear()
	s.navigator.Cancel()
}

// printStatus renders the current state and writes it as waybar JSON line.
func (s *Service) printStatus(context.Context) {
	tplCtx := s.presenter.BuildContext(s.snapshot(), time.Now())
	output, err := s.presenter.Render(tplCtx)
	if err != nil {
		s.logger.Error("failed to render status", logger.Err(err))
		return
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if err = json.NewEncoder(s.output).Encode(output); err != nil {
		s.logger.Error("failed to encode status output", logger.Err(err))
	}
}

func (s *Service) snapshot() presenter.Input {
	in := presenter.Input{
		NavState:    s.navigator.State(),
		Progress:    s.navigator.Progress(),
		Recording:   s.recorder.Recording(),
		Live:        s.recorder.Live(),
		Batch:       s.routing.Batch(),
		RadarActive: s.radar.Active(),
		Peers:       len(s.radar.Peers()),
	}
	in.Position, in.HasPosition = s.geobus.Last()
	in.Current, _ = s.navigator.Current()
	in.Next, in.HasNext = s.navigator.Next()

	s.radarLock.Lock()
	if s.radarSession != nil {
		in.Channel = s.radarSession.ChannelID
	}
	s.radarLock.Unlock()
	return in
}

// serveMetrics exposes the Prometheus metrics until ctx is cancelled.
func (s *Service) serveMetrics(ctx context.Context) {
	mux := stdhttp.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	server := &stdhttp.Server{
		Addr:              s.config.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shut down metrics listener", logger.Err(err))
		}
	}()

	s.logger.Info("serving metrics", slog.String("addr", s.config.Metrics.Listen))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		s.logger.Error("metrics listener failed", logger.Err(err))
	}
}
