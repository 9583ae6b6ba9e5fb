// Package api defines the daemon control API payloads and the HTTP client the
// CLI uses to drive a running session.
package api
