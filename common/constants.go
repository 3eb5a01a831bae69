// Package common provides shared constants, types, and utilities
// used across the SSH T client.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.sshtproject.client"
	// AppName is the display name of the application.
	AppName = "SSH T PROJECT"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "ssht-client"
)

// File names used by the application.
const (
	ConfigFileName      = "config.yaml"
	StorageFileName     = "storage.db"
	CredentialsFileName = ".credentials"
	LogFileName         = "ssht-client.log"
)

// Default timeouts and intervals.
const (
	// ConnectionTimeout is how long an auto-connect trial waits for CONNECTED.
	ConnectionTimeout = 10 * time.Second
	// ProbeTimeout bounds a single reachability probe.
	ProbeTimeout = 4 * time.Second
	// PollInterval is how often tunnel state is re-read while waiting.
	PollInterval = 500 * time.Millisecond
	// StatsInterval is how often traffic counters are sampled.
	StatsInterval = 2 * time.Second
	// HotspotPollInterval is how often hotspot state is re-read after a toggle.
	HotspotPollInterval = 500 * time.Millisecond
)

// Remote endpoints.
const (
	// ProbeURL answers 204 when the internet is reachable.
	ProbeURL = "https://www.google.com/generate_204"
	// APIBaseURL is the sales and account API.
	APIBaseURL = "http://bot.sshtproject.com"
)

// Auto-connect profile type filters.
const (
	ConfigTypeAll   = "all"
	ConfigTypeSSH   = "ssh"
	ConfigTypeV2Ray = "v2ray"
)

// StoragePrefix namespaces every local storage key.
const StoragePrefix = "@sshproject:"
