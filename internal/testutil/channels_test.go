package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitForChannel(t *testing.T) {
	t.Parallel()
	ch := make(chan struct{})
	close(ch)
	WaitForChannel(t, ch, DefaultTestTimeout, "closed channel must not block")
}

func TestWaitForError(t *testing.T) {
	t.Parallel()
	errCh := make(chan error, 1)
	errCh <- errors.New("boom")
	assert.EqualError(t, WaitForError(t, errCh, DefaultTestTimeout, "error expected"), "boom")
}
