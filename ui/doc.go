// Package ui provides the desktop surface of the SSH T client.
//
// It has two parts:
//
//   - TrayIndicator: a system tray icon (fyne.io/systray) showing the
//     tunnel state with connect, disconnect, auto-connect and profile items
//   - Notifier: desktop notifications (gen2brain/beeep) for connection
//     changes and auto-connect results
//
// # Thread Safety
//
// systray.Run must be called from the main goroutine. Menu clicks and
// host events arrive on other goroutines; menu item setters are safe to
// call from any of them.
//
// # File Organization
//
//   - tray.go: System tray indicator
//   - icons.go: Icon generation for tray
//   - notifications.go: Desktop notification integration
package ui
