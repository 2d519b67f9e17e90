package fastmath

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = 1.0 / TableSize

func TestLogTable(t *testing.T) {
	s := NewThreadState(context.Background(), 0, Sizes{})

	assert.InDelta(t, math.Log(0.5), s.Log(0.5), bucket)
	assert.Equal(t, float32(0), s.Log(0.999))
	assert.Equal(t, float32(0), s.Log(0.99))
	assert.Equal(t, float32(0), s.Log(3))
	assert.InDelta(t, math.Log(1e-5/TableSize), s.Log(-1), 1e-3, "negative input clamps to the first bucket")
}

func TestSigmoidTable(t *testing.T) {
	s := NewThreadState(context.Background(), 0, Sizes{})

	assert.InDelta(t, 0.5, s.Sigmoid(0), bucket)
	assert.Equal(t, float32(1), s.Sigmoid(100))
	assert.Equal(t, float32(0), s.Sigmoid(-100))
	assert.Equal(t, float32(1), s.Sigmoid(7.9))
	assert.Equal(t, float32(0), s.Sigmoid(-7.9))
	assert.Less(t, s.Sigmoid(-2), s.Sigmoid(2))
}

func TestTablesAreDeterministic(t *testing.T) {
	a := NewThreadState(context.Background(), 0, Sizes{})
	b := NewThreadState(context.Background(), 3, Sizes{})
	assert.Equal(t, a.logTable, b.logTable)
	assert.Equal(t, a.sigmoidTable, b.sigmoidTable)
}

func TestLossAccounting(t *testing.T) {
	s := NewThreadState(context.Background(), 1, Sizes{Hidden: 4, Output: 1})
	assert.Equal(t, 0.0, s.Loss(), "no examples yields zero loss")

	s.AddLoss(1)
	s.AddLoss(2)
	s.AddLoss(3)
	assert.Equal(t, 2.0, s.Loss())
	assert.Equal(t, int64(3), s.Examples())

	s.Gradient[0] = 5
	s.Reset()
	assert.Equal(t, int64(0), s.Examples())
	assert.Equal(t, float32(0), s.Gradient[0])
}

func TestBuffersAreSizedAndPrivate(t *testing.T) {
	states := NewThreadStates(context.Background(), 3, Sizes{Hidden: 8, Output: 2})
	require.Len(t, states, 3)

	for i, s := range states {
		assert.Equal(t, i, s.Worker)
		assert.Len(t, s.Hidden, 8)
		assert.Len(t, s.Gradient, 8)
		assert.Len(t, s.Output, 2)
	}
	states[0].Hidden[0] = 1
	assert.Equal(t, float32(0), states[1].Hidden[0])
}

func TestOnlyWorkerZeroOwnsHistory(t *testing.T) {
	states := NewThreadStates(context.Background(), 2, Sizes{})
	require.NotNil(t, states[0].History)
	assert.Nil(t, states[1].History)

	states[0].History.Record(1, 0.7, 10)
	states[0].History.Record(2, 0.4, 10)
	last, ok := states[0].History.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.Epoch)
	assert.Len(t, states[0].History.Points(), 2)
}

func TestCancellationIsShared(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	states := NewThreadStates(ctx, 4, Sizes{})
	for _, s := range states {
		assert.False(t, s.Cancelled())
	}
	cancel()
	for _, s := range states {
		assert.True(t, s.Cancelled())
	}
}
