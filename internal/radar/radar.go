// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package radar shows the riders sharing a presence channel and raises proximity alerts.
package radar

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wneessen/ridegrid/internal/alert"
	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/metrics"
	"github.com/wneessen/ridegrid/internal/presence"
)

const (
	// ProximityMeters is the distance below which a peer triggers an alert.
	ProximityMeters = 50
	// ProximityDebounce is the minimum time between two proximity alerts, shared by all peers.
	ProximityDebounce = 10 * time.Second
	// MaxTrail is the number of positions kept per peer.
	MaxTrail = 20

	// PublicChannel is joined by riders outside of a sync group.
	PublicChannel = "public_global"

	groupChannelPrefix = "sync_"
	replayMaxAge       = time.Minute
)

var ErrPresenceChannel = errors.New("presence channel error")

// Membership describes the local rider.
type Membership struct {
	RiderID string
	// GroupID is the sync group the rider belongs to, empty if none.
	GroupID string
}

// ChannelID returns the presence channel for the membership.
func ChannelID(m Membership) string {
	if m.GroupID != "" {
		return groupChannelPrefix + m.GroupID
	}
	return PublicChannel
}

// Rider is a peer on the radar.
type Rider struct {
	ID       string
	Lat      float64
	Lon      float64
	Heading  float64
	Trail    []geomath.Point
	LastSeen time.Time
}

// Session is the handle of an active radar. It is ended by Deactivate, by cancelling the context
// passed to Activate or by a broadcast failure.
type Session struct {
	ChannelID string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed once the session ended and the channel was left.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the broadcast failure that ended the session, if any. It is only valid after Done
// was closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Radar keeps the peer map of the joined presence channel.
type Radar struct {
	channel presence.Channel
	bus     geobus.Subscriber
	sink    alert.Sink
	clock   clockwork.Clock
	logger  *logger.Logger
	metrics *metrics.Metrics

	lifecycle sync.Mutex

	mu        sync.Mutex
	session   *Session
	self      string
	local     geomath.Point
	haveLocal bool
	peers     map[string]*Rider
	lastAlert time.Time
}

// Option configures a Radar.
type Option func(*Radar)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Radar) {
		r.clock = clock
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Radar) {
		r.metrics = m
	}
}

// New returns an inactive radar on the given channel.
func New(channel presence.Channel, bus geobus.Subscriber, sink alert.Sink, log *logger.Logger, opts ...Option) *Radar {
	if sink == nil {
		sink = alert.Nop{}
	}
	r := &Radar{
		channel: channel,
		bus:     bus,
		sink:    sink,
		clock:   clockwork.NewRealClock(),
		logger:  log,
		peers:   make(map[string]*Rider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Activate joins the channel selected by the membership and starts broadcasting the local
// position. Activating an active radar returns the existing session.
func (r *Radar) Activate(ctx context.Context, m Membership) (*Session, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if r.session != nil {
		s := r.session
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	channelID := ChannelID(m)
	r.channel.OnSync(r.sync)
	if err := r.channel.Join(ctx, channelID, m.RiderID); err != nil {
		r.logger.Error("failed to join presence channel", slog.String("channel", channelID), logger.Err(err))
		r.clearPeers()
		return nil, fmt.Errorf("%w: %w", ErrPresenceChannel, err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	session := &Session{ChannelID: channelID, cancel: cancel, done: make(chan struct{})}
	samples, unsub := r.bus.Subscribe(geobus.SubscribeOptions{Replay: true, MaxAge: replayMaxAge})

	r.mu.Lock()
	r.session = session
	r.self = m.RiderID
	r.peers = make(map[string]*Rider)
	r.mu.Unlock()

	go func() {
		err := r.broadcast(sessCtx, samples)
		unsub()
		r.end(session, err)
		cancel()
		close(session.done)
	}()

	r.logger.Info("radar activated", slog.String("channel", channelID))
	return session, nil
}

// Deactivate ends the session, leaves the channel and clears the peer map. It is safe to call
// with a nil or already ended session.
func (r *Radar) Deactivate(s *Session) error {
	if s == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return s.Err()
}

// Active reports whether the radar has a running session.
func (r *Radar) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Peers returns a copy of all peers ordered by id.
func (r *Radar) Peers() []Rider {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]Rider, 0, len(r.peers))
	for _, p := range r.peers {
		c := *p
		c.Trail = slices.Clone(p.Trail)
		peers = append(peers, c)
	}
	slices.SortFunc(peers, func(a, b Rider) int { return cmp.Compare(a.ID, b.ID) })
	return peers
}

func (r *Radar) broadcast(ctx context.Context, samples <-chan geobus.Sample) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-samples:
			if !ok {
				return nil
			}
			r.observe(s)
			err := r.channel.Track(ctx, presence.State{Lat: s.Lat, Lng: s.Lon, Heading: s.HeadingOrZero()})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// observe records the local position used for the proximity check.
func (r *Radar) observe(s geobus.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = s.Point()
	r.haveLocal = true
}

func (r *Radar) end(s *Session, err error) {
	r.mu.Lock()
	if r.session == s {
		r.session = nil
		r.self = ""
		r.peers = make(map[string]*Rider)
	}
	r.mu.Unlock()
	r.metrics.SetPeersVisible(0)

	if leaveErr := r.channel.Leave(); leaveErr != nil {
		r.logger.Warn("failed to leave presence channel", slog.String("channel", s.ChannelID),
			logger.Err(leaveErr))
	}
	if err != nil {
		s.err = fmt.Errorf("%w: %w", ErrPresenceChannel, err)
		r.logger.Error("presence broadcast failed, radar deactivated", slog.String("channel", s.ChannelID),
			logger.Err(err))
		return
	}
	r.logger.Info("radar deactivated", slog.String("channel", s.ChannelID))
}

func (r *Radar) clearPeers() {
	r.mu.Lock()
	r.peers = make(map[string]*Rider)
	r.mu.Unlock()
	r.metrics.SetPeersVisible(0)
}

// sync replaces the peer map with the snapshot. Known peers keep their trail.
func (r *Radar) sync(snap presence.Snapshot) {
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return
	}

	now := r.clock.Now()
	fire := false
	peers := make(map[string]*Rider, len(snap))
	for id, state := range snap {
		if id == r.self {
			continue
		}
		rider, ok := r.peers[id]
		if !ok {
			rider = &Rider{ID: id}
		}
		pos := geomath.NewPoint(state.Lat, state.Lng)
		rider.Lat, rider.Lon, rider.Heading = state.Lat, state.Lng, state.Heading
		rider.LastSeen = state.OnlineAt
		if rider.LastSeen.IsZero() {
			rider.LastSeen = now
		}
		rider.Trail = appendTrail(rider.Trail, pos)
		peers[id] = rider

		if r.haveLocal && geomath.Distance(r.local, pos) <= ProximityMeters &&
			(r.lastAlert.IsZero() || now.Sub(r.lastAlert) >= ProximityDebounce) {
			r.lastAlert = now
			fire = true
			r.logger.Debug("peer in proximity", slog.String("rider", id))
		}
	}
	r.peers = peers
	visible := len(peers)
	r.mu.Unlock()

	r.metrics.SetPeersVisible(visible)
	if fire {
		r.metrics.ProximityAlert()
		r.sink.Pulse(alert.KindProximity)
	}
}

// appendTrail appends pos unless it equals the last trail point and keeps the newest MaxTrail
// points.
func appendTrail(trail []geomath.Point, pos geomath.Point) []geomath.Point {
	if n := len(trail); n > 0 && trail[n-1] == pos {
		return trail
	}
	trail = append(trail, pos)
	if len(trail) > MaxTrail {
		trail = slices.Clone(trail[len(trail)-MaxTrail:])
	}
	return trail
}
