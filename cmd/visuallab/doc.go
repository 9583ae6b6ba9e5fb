// Command visuallab drives the dataset upload, profiling, training, and
// artifact download workflow against a processing service.
//
// `visuallab serve` runs the session-owning daemon; the other commands talk to
// it over the local control API. `visuallab run` performs a one-shot session
// in-process without a daemon.
package main
