// Package daemon runs the long-lived visuallab session: it holds the
// per-state-directory flock, reconciles the operation journal on start, and
// serves the local control API that the CLI drives.
package daemon
