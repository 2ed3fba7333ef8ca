// Package config holds the trailctl flag state shared by commands,
// handlers and display.
package config

import (
	"fmt"

	configDefaults "github.com/concave-dev/trail/internal/config"
	"github.com/concave-dev/trail/internal/version"
)

// DefaultAPIAddr is the API address of a local traild.
var DefaultAPIAddr = fmt.Sprintf("127.0.0.1:%d", configDefaults.DefaultAPIPort)

// Version is the trailctl version.
var Version = version.TrailctlVersion

// Global flags
var Global struct {
	APIAddr  string // traild API address
	LogLevel string // Log level for CLI operations
	Timeout  int    // Request timeout in seconds
	Verbose  bool   // Show more columns
	Output   string // Output format: table, json
}

// Batch command flags
var Batch struct {
	Author  string // Only batches by this author
	Type    string // Only batches of this type
	Pending bool   // Only batches not yet completed
	Limit   int    // Max batches listed
	Watch   bool   // Refresh the listing every 2s
}

// Member command flags
var Member struct {
	Owned bool // Only members owned by this node
	Limit int  // Max members listed
}

// Peer command flags
var Peer struct {
	StatusFilter string // alive, failed, left
	Watch        bool   // Refresh the listing every 2s
}
