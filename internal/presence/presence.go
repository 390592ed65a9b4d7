// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presence implements the realtime channel riders use to share their position with the
// other members of a sync group.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

const (
	kindState = "state"
	kindLeave = "leave"
)

var (
	ErrNotJoined     = errors.New("presence channel not joined")
	ErrAlreadyJoined = errors.New("presence channel already joined")
)

// State is the presence payload a rider broadcasts.
type State struct {
	User     string    `json:"user"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Heading  float64   `json:"heading"`
	OnlineAt time.Time `json:"online_at"`
}

// Snapshot is the full membership of a channel, keyed by rider id. It includes the local rider.
type Snapshot map[string]State

// Channel is a presence channel. OnSync handlers receive a new snapshot whenever the membership
// changes and must not call back into the channel.
type Channel interface {
	Join(ctx context.Context, channelID, selfID string) error
	Track(ctx context.Context, state State) error
	OnSync(fn func(Snapshot))
	Leave() error
}

// message is the wire envelope of the NATS channel.
type message struct {
	Kind  string `json:"kind"`
	State State  `json:"state"`
}

func encode(kind string, state State) ([]byte, error) {
	data, err := json.Marshal(message{Kind: kind, State: state})
	if err != nil {
		return nil, fmt.Errorf("failed to encode presence message: %w", err)
	}
	return data, nil
}

func decode(data []byte) (message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode presence message: %w", err)
	}
	if msg.State.User == "" {
		return msg, errors.New("presence message without user")
	}
	if msg.Kind != kindState && msg.Kind != kindLeave {
		return msg, fmt.Errorf("unknown presence message kind %q", msg.Kind)
	}
	return msg, nil
}

// members is a membership map with last-write-wins semantics per rider.
type members map[string]State

// apply merges a message into the map and reports whether the membership changed. States older
// than the known one are ignored.
func (m members) apply(msg message) bool {
	current, ok := m[msg.State.User]
	switch msg.Kind {
	case kindLeave:
		if !ok {
			return false
		}
		delete(m, msg.State.User)
		return true
	default:
		if ok && msg.State.OnlineAt.Before(current.OnlineAt) {
			return false
		}
		if ok && current.equal(msg.State) {
			return false
		}
		m[msg.State.User] = msg.State
		return true
	}
}

// expire drops all entries last seen before cutoff and reports whether any were dropped.
func (m members) expire(cutoff time.Time) bool {
	dropped := false
	for id, s := range m {
		if s.OnlineAt.Before(cutoff) {
			delete(m, id)
			dropped = true
		}
	}
	return dropped
}

func (m members) snapshot() Snapshot {
	return Snapshot(maps.Clone(m))
}

func (s State) equal(o State) bool {
	return s.User == o.User && s.Lat == o.Lat && s.Lng == o.Lng && s.Heading == o.Heading &&
		s.OnlineAt.Equal(o.OnlineAt)
}
