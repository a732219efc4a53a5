package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_InvalidLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestInit_Reconfigure(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Encoding: "console"}))
	first := Get()
	require.NoError(t, Init(Config{Level: "warn"}))
	second := Get()

	assert.NotSame(t, first, second)
	assert.False(t, second.Core().Enabled(-1)) // debug disabled at warn
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithStream(context.Background(), "ds-table")
	WithContext(ctx, base).Info("exporting")
	WithContext(context.Background(), base).Info("bare")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]interface{}{"stream": "ds-table"}, entries[0].ContextMap())
	assert.Empty(t, entries[1].ContextMap())

	assert.NotNil(t, WithContext(context.Background(), nil))
}
