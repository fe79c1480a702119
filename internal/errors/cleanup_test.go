package errors

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type failingCloser struct{}

func (failingCloser) Close() error { return fmt.Errorf("already closed") }

func TestDeferClose_LogsCloseFailure(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	DeferClose(log, failingCloser{}, "closing image layer")
	assert.Contains(t, buf.String(), "closing image layer")

	// A nil closer is a no-op.
	buf.Reset()
	DeferClose(log, nil, "ignored")
	assert.Empty(t, buf.String())
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(nil, "fine") })
	assert.Panics(t, func() { Must(fmt.Errorf("boom"), "initializing") })
}
