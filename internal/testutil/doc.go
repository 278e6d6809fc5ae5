// Package testutil provides an in-process stand-in for the Synapse admin
// registration API, used by the package tests and by cmd/fakesynapse.
package testutil
