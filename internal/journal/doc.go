// Package journal persists the history of accepted workflow operations in a
// local SQLite database (modernc.org/sqlite, no cgo).
//
// Each upload, training run, and download gets a pending row when the
// orchestrator accepts it and is updated with its outcome when the result is
// applied. Store satisfies workflow.Recorder.
package journal
