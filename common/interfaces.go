// Package common provides shared constants, types, and utilities
// used across the SSH T client.
package common

// Notifier defines the interface for sending desktop notifications.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message, iconPath string) error
	// Alert sends an urgent notification.
	Alert(title, message, iconPath string) error
}

// Logger defines the interface for printf-style logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}

var _ Logger = (*AppLogger)(nil)
