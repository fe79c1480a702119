// Package testutil provides shared helpers for package tests.
package testutil

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a logger that writes through t.Log, so output shows up
// only for failing tests under go test.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t))
}
