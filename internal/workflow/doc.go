// Package workflow implements the dataset → profile → train → download state
// machine.
//
// The Orchestrator is the single writer of State. Intents are validated by the
// stage gate under a mutex, marked in flight, executed against the backend
// without the lock, and their results merged back in completion order. Each
// transition is published to a Hub so consumers can follow snapshots by
// version instead of polling.
package workflow
