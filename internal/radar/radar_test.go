// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package radar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"testing/synctest"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wneessen/ridegrid/internal/alert"
	"github.com/wneessen/ridegrid/internal/geobus"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/presence"
)

// metersNorth returns the latitude offset of roughly the given distance.
func metersNorth(m float64) float64 {
	return m / 111320
}

func testLogger() *logger.Logger {
	return logger.NewLogger(slog.LevelError, io.Discard)
}

// stubChannel is a presence channel whose sync events are driven by the test.
type stubChannel struct {
	joinErr  error
	trackErr error
	joined   []string
	tracked  []presence.State
	left     int
	onSync   func(presence.Snapshot)
}

func (c *stubChannel) Join(_ context.Context, channelID, _ string) error {
	if c.joinErr != nil {
		return c.joinErr
	}
	c.joined = append(c.joined, channelID)
	return nil
}

func (c *stubChannel) Track(_ context.Context, s presence.State) error {
	if c.trackErr != nil {
		return c.trackErr
	}
	c.tracked = append(c.tracked, s)
	return nil
}

func (c *stubChannel) OnSync(fn func(presence.Snapshot)) { c.onSync = fn }

func (c *stubChannel) Leave() error {
	c.left++
	return nil
}

func TestChannelID(t *testing.T) {
	if got := ChannelID(Membership{RiderID: "a", GroupID: "42"}); got != "sync_42" {
		t.Errorf("expected channel sync_42, got %s", got)
	}
	if got := ChannelID(Membership{RiderID: "a"}); got != PublicChannel {
		t.Errorf("expected channel %s, got %s", PublicChannel, got)
	}
}

func TestRadar_Activate(t *testing.T) {
	t.Run("activation is idempotent", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ch := &stubChannel{}
			r := New(ch, geobus.New(testLogger()), nil, testLogger())
			first, err := r.Activate(t.Context(), Membership{RiderID: "me", GroupID: "7"})
			if err != nil {
				t.Fatalf("failed to activate radar: %s", err)
			}
			second, err := r.Activate(t.Context(), Membership{RiderID: "me", GroupID: "7"})
			if err != nil {
				t.Fatalf("failed to re-activate radar: %s", err)
			}
			if first != second {
				t.Error("expected re-activation to return the existing session")
			}
			if len(ch.joined) != 1 || ch.joined[0] != "sync_7" {
				t.Errorf("expected a single join of sync_7, got %v", ch.joined)
			}
			if err = r.Deactivate(first); err != nil {
				t.Errorf("failed to deactivate radar: %s", err)
			}
		})
	})
	t.Run("join failure leaves the radar inactive", func(t *testing.T) {
		ch := &stubChannel{joinErr: errors.New("connection refused")}
		r := New(ch, geobus.New(testLogger()), nil, testLogger())
		s, err := r.Activate(context.Background(), Membership{RiderID: "me"})
		if !errors.Is(err, ErrPresenceChannel) {
			t.Errorf("expected error to be %s, got %v", ErrPresenceChannel, err)
		}
		if s != nil || r.Active() || len(r.Peers()) != 0 {
			t.Error("expected radar to stay inactive without peers")
		}
		if err = r.Deactivate(s); err != nil {
			t.Errorf("expected deactivating a nil session to succeed, got %s", err)
		}
	})
	t.Run("samples are broadcast", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ch := &stubChannel{}
			bus := geobus.New(testLogger())
			r := New(ch, bus, nil, testLogger())
			s, err := r.Activate(t.Context(), Membership{RiderID: "me"})
			if err != nil {
				t.Fatalf("failed to activate radar: %s", err)
			}
			bus.Publish(geobus.Sample{Lat: 52.5, Lon: 13.4, Heading: 180, SpeedMps: 5})
			bus.Publish(geobus.Sample{Lat: 52.6, Lon: 13.4, Heading: math.NaN(), SpeedMps: 5})
			synctest.Wait()
			_ = r.Deactivate(s)

			if len(ch.tracked) != 2 {
				t.Fatalf("expected 2 tracked states, got %d", len(ch.tracked))
			}
			if ch.tracked[0].Lat != 52.5 || ch.tracked[0].Lng != 13.4 || ch.tracked[0].Heading != 180 {
				t.Errorf("unexpected tracked state: %+v", ch.tracked[0])
			}
			if ch.tracked[1].Heading != 0 {
				t.Errorf("expected unknown heading to be sent as 0, got %f", ch.tracked[1].Heading)
			}
			if ch.left != 1 {
				t.Errorf("expected channel to be left once, got %d", ch.left)
			}
		})
	})
	t.Run("broadcast failure ends the session", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ch := &stubChannel{trackErr: errors.New("broken pipe")}
			bus := geobus.New(testLogger())
			r := New(ch, bus, nil, testLogger())
			s, err := r.Activate(t.Context(), Membership{RiderID: "me"})
			if err != nil {
				t.Fatalf("failed to activate radar: %s", err)
			}
			ch.onSync(presence.Snapshot{"peer": {User: "peer", Lat: 1, Lng: 1}})
			bus.Publish(geobus.Sample{Lat: 52.5, Lon: 13.4})
			<-s.Done()
			if !errors.Is(s.Err(), ErrPresenceChannel) {
				t.Errorf("expected session error to be %s, got %v", ErrPresenceChannel, s.Err())
			}
			if r.Active() || len(r.Peers()) != 0 {
				t.Error("expected radar to be inactive without peers")
			}
			if !errors.Is(r.Deactivate(s), ErrPresenceChannel) {
				t.Error("expected deactivate to report the session error")
			}
		})
	})
}

func TestRadar_Trail(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ch := &stubChannel{}
		r := New(ch, geobus.New(testLogger()), nil, testLogger())
		s, err := r.Activate(t.Context(), Membership{RiderID: "me"})
		if err != nil {
			t.Fatalf("failed to activate radar: %s", err)
		}
		defer func() { _ = r.Deactivate(s) }()

		ch.onSync(presence.Snapshot{
			"me": {User: "me", Lat: 5, Lng: 5},
			"x":  {User: "x", Lat: 0, Lng: 0},
		})
		ch.onSync(presence.Snapshot{"x": {User: "x", Lat: 0.0001, Lng: 0.0001}})
		ch.onSync(presence.Snapshot{"x": {User: "x", Lat: 0.0001, Lng: 0.0001}})

		peers := r.Peers()
		if len(peers) != 1 || peers[0].ID != "x" {
			t.Fatalf("expected only peer x, got %+v", peers)
		}
		if len(peers[0].Trail) != 2 {
			t.Errorf("expected trail length 2, got %d", len(peers[0].Trail))
		}

		step, last := 0.0001, 21
		for i := 2; i <= last; i++ {
			ch.onSync(presence.Snapshot{"x": {User: "x", Lat: float64(i) * step, Lng: 0}})
		}
		peers = r.Peers()
		if len(peers[0].Trail) != MaxTrail {
			t.Fatalf("expected trail length %d, got %d", MaxTrail, len(peers[0].Trail))
		}
		if peers[0].Trail[0] == geomath.NewPoint(0, 0) {
			t.Error("expected the oldest trail point to be evicted")
		}
		if peers[0].Trail[MaxTrail-1] != geomath.NewPoint(float64(last)*step, 0) {
			t.Errorf("expected newest point last, got %v", peers[0].Trail[MaxTrail-1])
		}

		ch.onSync(presence.Snapshot{})
		if len(r.Peers()) != 0 {
			t.Error("expected peers missing from the snapshot to be evicted")
		}
	})
}

func TestRadar_Proximity(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ch := &stubChannel{}
		clock := clockwork.NewFakeClock()
		rec := &alert.Recorder{}
		r := New(ch, geobus.New(testLogger()), rec, testLogger(), WithClock(clock))
		s, err := r.Activate(t.Context(), Membership{RiderID: "me"})
		if err != nil {
			t.Fatalf("failed to activate radar: %s", err)
		}
		defer func() { _ = r.Deactivate(s) }()

		ch.onSync(presence.Snapshot{"far": {User: "far", Lat: 0, Lng: 0}})
		if rec.Count(alert.KindProximity) != 0 {
			t.Fatal("expected no alert without a local position")
		}

		r.observe(geobus.Sample{Lat: 0, Lon: 0})
		ch.onSync(presence.Snapshot{"a": {User: "a", Lat: metersNorth(40), Lng: 0}})
		if rec.Count(alert.KindProximity) != 1 {
			t.Fatalf("expected 1 alert, got %d", rec.Count(alert.KindProximity))
		}

		clock.Advance(2 * time.Second)
		ch.onSync(presence.Snapshot{
			"a": {User: "a", Lat: metersNorth(40), Lng: 0},
			"b": {User: "b", Lat: metersNorth(10), Lng: 0},
		})
		if rec.Count(alert.KindProximity) != 1 {
			t.Errorf("expected the shared debounce to suppress the alert, got %d", rec.Count(alert.KindProximity))
		}

		clock.Advance(9 * time.Second)
		ch.onSync(presence.Snapshot{"c": {User: "c", Lat: metersNorth(40), Lng: 0}})
		if rec.Count(alert.KindProximity) != 2 {
			t.Errorf("expected a second alert after 11s, got %d", rec.Count(alert.KindProximity))
		}

		clock.Advance(11 * time.Second)
		ch.onSync(presence.Snapshot{"d": {User: "d", Lat: metersNorth(60), Lng: 0}})
		if rec.Count(alert.KindProximity) != 2 {
			t.Errorf("expected no alert for a peer 60m away, got %d", rec.Count(alert.KindProximity))
		}
	})
}

func TestRadar_Memory(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		hub := presence.NewHub()
		busA, busB := geobus.New(testLogger()), geobus.New(testLogger())
		recA := &alert.Recorder{}
		a := New(hub.Channel(), busA, recA, testLogger())
		b := New(hub.Channel(), busB, nil, testLogger())

		sa, err := a.Activate(t.Context(), Membership{RiderID: "alice", GroupID: "1"})
		if err != nil {
			t.Fatalf("failed to activate radar: %s", err)
		}
		sb, err := b.Activate(t.Context(), Membership{RiderID: "bob", GroupID: "1"})
		if err != nil {
			t.Fatalf("failed to activate radar: %s", err)
		}

		busA.Publish(geobus.Sample{Lat: 52.5, Lon: 13.4})
		synctest.Wait()
		busB.Publish(geobus.Sample{Lat: 52.5 + metersNorth(20), Lon: 13.4})
		synctest.Wait()

		peers := a.Peers()
		if len(peers) != 1 || peers[0].ID != "bob" {
			t.Fatalf("expected alice to see bob, got %+v", peers)
		}
		if recA.Count(alert.KindProximity) != 1 {
			t.Errorf("expected alice to be alerted once, got %d", recA.Count(alert.KindProximity))
		}

		_ = b.Deactivate(sb)
		if len(a.Peers()) != 0 {
			t.Error("expected bob to disappear after leaving")
		}
		_ = a.Deactivate(sa)
		if a.Active() {
			t.Error("expected radar to be inactive")
		}
	})
}
