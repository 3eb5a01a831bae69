// Package ui provides the tray indicator and desktop notifications.
// This file contains the notification system for connection events.
package ui

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/yllada/ssht-client/autoconnect"
	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
)

// NotificationType represents the type of notification.
type NotificationType int

const (
	NotificationInfo NotificationType = iota
	NotificationSuccess
	NotificationWarning
	NotificationError
)

// Notification represents a desktop notification.
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	Icon    string
}

// Backend delivers notifications to the desktop.
type Backend = common.Notifier

type desktopBackend struct{}

func (desktopBackend) Notify(title, message, iconPath string) error {
	return beeep.Notify(title, message, iconPath)
}

func (desktopBackend) Alert(title, message, iconPath string) error {
	return beeep.Alert(title, message, iconPath)
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithBackend replaces the desktop backend.
func WithBackend(b Backend) NotifierOption {
	return func(n *Notifier) {
		n.backend = b
	}
}

// Notifier shows connection notifications when enabled.
type Notifier struct {
	enabled bool
	backend Backend
}

// NewNotifier creates a notifier. A disabled notifier drops everything.
func NewNotifier(enabled bool, opts ...NotifierOption) *Notifier {
	n := &Notifier{enabled: enabled, backend: desktopBackend{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Show delivers n. Errors become alerts through Backend.Alert.
func (n *Notifier) Show(note Notification) {
	if n == nil || !n.enabled {
		return
	}

	var err error
	if note.Type == NotificationError {
		err = n.backend.Alert(note.Title, note.Message, note.Icon)
	} else {
		err = n.backend.Notify(note.Title, note.Message, note.Icon)
	}
	if err != nil {
		common.LogWarn("Error showing notification: %v", err)
	}
}

// NotifyConnected shows a notification when the tunnel comes up.
func (n *Notifier) NotifyConnected(profileName string) {
	n.Show(Notification{
		Title:   common.AppName,
		Message: "Connected to " + profileName,
		Type:    NotificationSuccess,
	})
}

// NotifyDisconnected shows a notification when the tunnel goes down.
func (n *Notifier) NotifyDisconnected(profileName string) {
	msg := "Disconnected"
	if profileName != "" {
		msg = "Disconnected from " + profileName
	}
	n.Show(Notification{Title: common.AppName, Message: msg, Type: NotificationInfo})
}

// NotifyTransition announces a tunnel state change for profile and
// reports whether a notification was due.
func (n *Notifier) NotifyTransition(old, cur bridge.TunnelState, profile string) bool {
	if old == cur {
		return false
	}
	switch cur {
	case bridge.StateConnected:
		n.NotifyConnected(profile)
	case bridge.StateAuthFailed, bridge.StateNoNetwork:
		n.NotifyError(profile, cur.Label())
	case bridge.StateDisconnected:
		if old != bridge.StateConnected {
			return false
		}
		n.NotifyDisconnected(profile)
	default:
		return false
	}
	return true
}

// NotifyError shows a connection error.
func (n *Notifier) NotifyError(profileName, errorMsg string) {
	msg := errorMsg
	if profileName != "" {
		msg = profileName + ": " + errorMsg
	}
	n.Show(Notification{Title: "Connection Error", Message: msg, Type: NotificationError})
}

// NotifyAutoConnect summarises an auto-connect run.
func (n *Notifier) NotifyAutoConnect(res autoconnect.Result) {
	n.Show(AutoConnectNotification(res))
}

// AutoConnectNotification builds the notification for a finished run.
func AutoConnectNotification(res autoconnect.Result) Notification {
	switch {
	case res.Succeeded():
		return Notification{
			Title:   "Auto-connect",
			Message: fmt.Sprintf("Connected with %s after %d test(s)", res.Winner.Name, len(res.Trials)),
			Type:    NotificationSuccess,
		}
	case res.Cancelled:
		return Notification{
			Title:   "Auto-connect",
			Message: "Test cancelled",
			Type:    NotificationWarning,
		}
	default:
		return Notification{
			Title:   "Auto-connect",
			Message: fmt.Sprintf("No profile worked (%d tested)", len(res.Trials)),
			Type:    NotificationError,
		}
	}
}
