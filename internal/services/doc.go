// Package services defines the failure taxonomy and context helpers shared by
// the backend transport client and the workflow orchestrator.
//
// Key responsibilities:
//   - Typed errors (Error) whose Kind marks network, server, malformed
//     response, precondition, and concurrency failures so the orchestrator can
//     turn them into displayable error records.
//   - Context helpers that stamp operation IDs, operation kinds, stages, and
//     correlation identifiers for logging.
//
// Use these helpers when adding new backend calls so classification and
// observability stay uniform across the workflow.
package services
