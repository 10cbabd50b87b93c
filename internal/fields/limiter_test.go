package fields

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinIntervalGate_Disabled(t *testing.T) {
	var nilGate *MinIntervalGate
	assert.NoError(t, nilGate.Wait(context.Background()))

	gate := NewMinIntervalGate(0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, gate.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestMinIntervalGate_SpacesCalls(t *testing.T) {
	gate := NewMinIntervalGate(30 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, gate.Wait(context.Background()))
	}
	// Three slots at t, t+30ms, t+60ms.
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestMinIntervalGate_ContextCancel(t *testing.T) {
	gate := NewMinIntervalGate(time.Hour)
	require.NoError(t, gate.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gate.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
