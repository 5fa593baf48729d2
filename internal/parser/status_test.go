package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Vargock/Mahaon-Parser/internal/parser"
)

func TestStatusLive(t *testing.T) {
	assert.True(t, parser.StatusInProgress.Live())
	assert.True(t, parser.StatusAwaitingConfirmation.Live())

	assert.False(t, parser.StatusIdle.Live())
	assert.False(t, parser.StatusCompleted.Live())
	assert.False(t, parser.StatusError.Live())
	assert.False(t, parser.StatusCanceled.Live())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, parser.StatusCompleted.Terminal())
	assert.True(t, parser.StatusError.Terminal())
	assert.True(t, parser.StatusCanceled.Terminal())

	assert.False(t, parser.StatusIdle.Terminal())
	assert.False(t, parser.StatusInProgress.Terminal())
	assert.False(t, parser.StatusAwaitingConfirmation.Terminal())
}

func TestStatusStringDefaultsToIdle(t *testing.T) {
	assert.Equal(t, "idle", parser.Status("").String())
	assert.Equal(t, "in_progress", parser.StatusInProgress.String())
}
