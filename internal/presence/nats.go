// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"

	"github.com/wneessen/ridegrid/internal/logger"
)

const (
	// SubjectPrefix is prepended to the channel id to form the NATS subject.
	SubjectPrefix = "ridegrid.presence."
	// DefaultTTL is the time after which a silent member is dropped from the membership.
	DefaultTTL = 30 * time.Second

	clientName = "ridegrid"
)

// Conn is the part of a NATS connection the channel uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler nats.MsgHandler) (Subscription, error)
	Close()
}

type Subscription interface {
	Unsubscribe() error
}

type natsConn struct {
	nc *nats.Conn
}

func (c natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c natsConn) Subscribe(subject string, handler nats.MsgHandler) (Subscription, error) {
	return c.nc.Subscribe(subject, handler)
}

func (c natsConn) Close() {
	c.nc.Close()
}

// NATS is a presence channel on top of a NATS subject. Every member publishes its state to the
// subject and keeps its own membership map from what it receives.
type NATS struct {
	conn   Conn
	clock  clockwork.Clock
	ttl    time.Duration
	logger *logger.Logger

	mu      sync.Mutex
	subject string
	self    string
	sub     Subscription
	members members
	onSync  func(Snapshot)
}

// Option configures a NATS channel.
type Option func(*NATS)

func WithTTL(ttl time.Duration) Option {
	return func(n *NATS) {
		if ttl > 0 {
			n.ttl = ttl
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(n *NATS) {
		n.clock = clock
	}
}

// Connect dials the NATS server at url and returns an unjoined channel on that connection.
func Connect(url string, log *logger.Logger, opts ...Option) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("presence connection lost", logger.Err(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("presence connection restored", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewNATS(natsConn{nc: nc}, log, opts...), nil
}

// NewNATS returns an unjoined channel on the given connection.
func NewNATS(conn Conn, log *logger.Logger, opts ...Option) *NATS {
	n := &NATS{
		conn:   conn,
		clock:  clockwork.NewRealClock(),
		ttl:    DefaultTTL,
		logger: log,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subject returns the NATS subject of a channel id.
func Subject(channelID string) string {
	return SubjectPrefix + channelID
}

func (n *NATS) Join(_ context.Context, channelID, selfID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sub != nil {
		return ErrAlreadyJoined
	}

	subject := Subject(channelID)
	sub, err := n.conn.Subscribe(subject, n.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	n.subject, n.self, n.sub = subject, selfID, sub
	n.members = make(members)
	n.logger.Debug("joined presence channel", slog.String("subject", subject))
	return nil
}

func (n *NATS) Track(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	if n.sub == nil {
		n.mu.Unlock()
		return ErrNotJoined
	}
	state.User = n.self
	state.OnlineAt = n.clock.Now()
	subject := n.subject
	n.mu.Unlock()

	data, err := encode(kindState, state)
	if err != nil {
		return err
	}
	if err = n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish presence state: %w", err)
	}
	return nil
}

func (n *NATS) OnSync(fn func(Snapshot)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onSync = fn
}

// Leave publishes a tombstone and unsubscribes. It is a no-op if the channel is not joined.
func (n *NATS) Leave() error {
	n.mu.Lock()
	if n.sub == nil {
		n.mu.Unlock()
		return nil
	}
	sub, subject, self := n.sub, n.subject, n.self
	n.sub = nil
	n.members = nil
	n.mu.Unlock()

	data, err := encode(kindLeave, State{User: self, OnlineAt: n.clock.Now()})
	if err != nil {
		return err
	}
	pubErr := n.conn.Publish(subject, data)
	if err = sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", subject, err)
	}
	if pubErr != nil {
		return fmt.Errorf("failed to publish presence tombstone: %w", pubErr)
	}
	n.logger.Debug("left presence channel", slog.String("subject", subject))
	return nil
}

// Sweep drops members that were silent for longer than the TTL and emits a snapshot if the
// membership changed.
func (n *NATS) Sweep() {
	n.mu.Lock()
	if n.sub == nil || !n.members.expire(n.clock.Now().Add(-n.ttl)) {
		n.mu.Unlock()
		return
	}
	snap, fn := n.members.snapshot(), n.onSync
	n.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// Close leaves the channel and closes the connection.
func (n *NATS) Close() error {
	err := n.Leave()
	n.conn.Close()
	return err
}

func (n *NATS) handle(msg *nats.Msg) {
	decoded, err := decode(msg.Data)
	if err != nil {
		n.logger.Warn("dropping invalid presence message", slog.String("subject", msg.Subject), logger.Err(err))
		return
	}

	n.mu.Lock()
	if n.sub == nil {
		n.mu.Unlock()
		return
	}
	changed := n.members.apply(decoded)
	if n.members.expire(n.clock.Now().Add(-n.ttl)) {
		changed = true
	}
	if !changed {
		n.mu.Unlock()
		return
	}
	snap, fn := n.members.snapshot(), n.onSync
	n.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
