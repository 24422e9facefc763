package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeForMapsKnownCodes(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(errors.New("generic")))
	assert.Equal(t, 2, exitCodeFor(&exitError{code: 2, err: errors.New("timeout")}))
	assert.Equal(t, 3, exitCodeFor(&exitError{code: 3, err: errors.New("queue")}))
}
