// Package handlers holds the RunE functions of the trailctl commands.
//
// Each handler fetches from the traild API through client and renders
// through display. Logging goes to the trail logger and is silenced unless
// DEBUG=true, so output stays parseable.
package handlers
