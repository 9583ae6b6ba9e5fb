// Package backend implements the HTTP transport to the remote processing
// service: dataset ingestion, training, and artifact retrieval.
//
// Every failure is a *services.Error classified as network, server,
// malformed_response, or precondition so the orchestrator can record it
// without inspecting transport details.
package backend
