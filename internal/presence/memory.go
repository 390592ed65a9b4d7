// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presence

import (
	"context"
	"sync"
	"time"
)

// Hub connects in-process presence channels. Sync handlers run on the goroutine that caused the
// change.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[*Memory]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*Memory]struct{})}
}

// Channel returns a new, unjoined channel attached to the hub.
func (h *Hub) Channel() *Memory {
	return &Memory{hub: h}
}

// Members returns the number of channels joined to channelID.
func (h *Hub) Members(channelID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channelID])
}

func (h *Hub) broadcast(channelID string, msg message) {
	h.mu.Lock()
	peers := make([]*Memory, 0, len(h.channels[channelID]))
	for m := range h.channels[channelID] {
		peers = append(peers, m)
	}
	h.mu.Unlock()

	for _, m := range peers {
		m.receive(msg)
	}
}

// Memory is a presence channel served by a Hub.
type Memory struct {
	hub *Hub

	mu        sync.Mutex
	channelID string
	self      string
	joined    bool
	members   members
	onSync    func(Snapshot)
}

func (m *Memory) Join(_ context.Context, channelID, selfID string) error {
	m.mu.Lock()
	if m.joined {
		m.mu.Unlock()
		return ErrAlreadyJoined
	}
	m.channelID, m.self, m.joined = channelID, selfID, true
	m.members = make(members)
	m.mu.Unlock()

	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	if m.hub.channels[channelID] == nil {
		m.hub.channels[channelID] = make(map[*Memory]struct{})
	}
	m.hub.channels[channelID][m] = struct{}{}
	return nil
}

func (m *Memory) Track(_ context.Context, state State) error {
	m.mu.Lock()
	if !m.joined {
		m.mu.Unlock()
		return ErrNotJoined
	}
	state.User = m.self
	if state.OnlineAt.IsZero() {
		state.OnlineAt = time.Now()
	}
	channelID := m.channelID
	m.mu.Unlock()

	m.hub.broadcast(channelID, message{Kind: kindState, State: state})
	return nil
}

func (m *Memory) OnSync(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSync = fn
}

func (m *Memory) Leave() error {
	m.mu.Lock()
	if !m.joined {
		m.mu.Unlock()
		return nil
	}
	channelID, self := m.channelID, m.self
	m.joined = false
	m.members = nil
	m.mu.Unlock()

	m.hub.mu.Lock()
	delete(m.hub.channels[channelID], m)
	if len(m.hub.channels[channelID]) == 0 {
		delete(m.hub.channels, channelID)
	}
	m.hub.mu.Unlock()

	m.hub.broadcast(channelID, message{Kind: kindLeave, State: State{User: self}})
	return nil
}

func (m *Memory) receive(msg message) {
	m.mu.Lock()
	if !m.joined || !m.members.apply(msg) {
		m.mu.Unlock()
		return
	}
	snap, fn := m.members.snapshot(), m.onSync
	m.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
