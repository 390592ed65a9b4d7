// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package alert

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/ridegrid/internal/logger"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = "org.freedesktop.Notifications.Notify"

	appName       = "ridegrid"
	expireTimeout = int32(4000)
	urgencyNormal = byte(1)
	urgencyHigh   = byte(2)
)

// Message is the notification text shown for an alert kind.
type Message struct {
	Summary string
	Body    string
	Icon    string
}

// DefaultMessages are used for kinds without a configured message.
var DefaultMessages = map[Kind]Message{
	KindManeuver:  {Summary: "Maneuver", Body: "Next maneuver reached", Icon: "go-next"},
	KindProximity: {Summary: "Rider nearby", Body: "A rider of your group is close", Icon: "dialog-information"},
}

// busObject is the subset of dbus.BusObject the notifier needs.
type busObject interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBusNotifier shows a desktop notification via org.freedesktop.Notifications for every pulse.
// Consecutive notifications of the same kind replace each other.
type DBusNotifier struct {
	obj      busObject
	logger   *logger.Logger
	messages map[Kind]Message

	mu       sync.Mutex
	replaces map[Kind]uint32
}

// NewDBusNotifier connects to the session bus.
func NewDBusNotifier(log *logger.Logger, messages map[Kind]Message) (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return newDBusNotifier(conn.Object(notifyDest, notifyPath), log, messages), nil
}

func newDBusNotifier(obj busObject, log *logger.Logger, messages map[Kind]Message) *DBusNotifier {
	merged := make(map[Kind]Message, len(DefaultMessages))
	for k, m := range DefaultMessages {
		merged[k] = m
	}
	for k, m := range messages {
		merged[k] = m
	}
	return &DBusNotifier{
		obj:      obj,
		logger:   log,
		messages: merged,
		replaces: make(map[Kind]uint32),
	}
}

func (n *DBusNotifier) Pulse(kind Kind) {
	msg, ok := n.messages[kind]
	if !ok {
		return
	}
	urgency := urgencyNormal
	if kind == KindProximity {
		urgency = urgencyHigh
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	hints := map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgency)}
	call := n.obj.Call(notifyMethod, 0, appName, n.replaces[kind], msg.Icon, msg.Summary, msg.Body,
		[]string{}, hints, expireTimeout)
	if call.Err != nil {
		n.logger.Error("failed to send desktop notification", slog.String("kind", kind.String()),
			logger.Err(call.Err))
		return
	}
	var id uint32
	if err := call.Store(&id); err == nil {
		n.replaces[kind] = id
	}
}
