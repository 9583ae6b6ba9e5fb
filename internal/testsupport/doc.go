// Package testsupport holds shared fixtures for package tests: temp-dir
// configs, an in-process fake processing service, and journal helpers.
package testsupport
