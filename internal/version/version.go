// Package version holds the release versions of the trail binaries. traild
// and trailctl are versioned independently so the CLI can ship fixes without
// a daemon release.
package version

// TraildVersion is the current traild daemon version (semver).
const TraildVersion = "0.1.0-dev"

// TrailctlVersion is the current trailctl CLI version (semver).
const TrailctlVersion = "0.1.0-dev"
