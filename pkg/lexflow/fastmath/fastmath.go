// Package fastmath holds per-worker training state for trainable stages:
// private numeric buffers, lookup-table approximations of log and sigmoid,
// running loss and a cooperative cancellation signal.
//
// A ThreadState is owned by exactly one goroutine. Tables are filled once at
// construction and only read afterwards, so duplicating them per worker
// removes all sharing from the per-token hot path.
package fastmath

import (
	"context"
	"math"
)

const (
	// TableSize is the number of entries in the log and sigmoid tables.
	TableSize = 512
	// MaxSigmoid bounds the sigmoid table domain to [-MaxSigmoid, MaxSigmoid].
	MaxSigmoid = 8

	logSaturation     = 0.99
	sigmoidSaturation = 7.9
)

// Sizes describes the buffers a model needs per worker.
type Sizes struct {
	Hidden int
	Output int
}

// ThreadState is the private scratch space of one training worker.
type ThreadState struct {
	Worker   int
	Hidden   []float32
	Output   []float32
	Gradient []float32
	// History is only set for worker 0.
	History *History

	logTable     [TableSize]float32
	sigmoidTable [TableSize]float32

	loss     float64
	examples int64

	ctx context.Context
}

// NewThreadState creates the state for one worker. ctx is the shared
// cancellation signal; the state only ever reads it.
func NewThreadState(ctx context.Context, worker int, sz Sizes) *ThreadState {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &ThreadState{
		Worker:   worker,
		Hidden:   make([]float32, sz.Hidden),
		Output:   make([]float32, sz.Output),
		Gradient: make([]float32, sz.Hidden),
		ctx:      ctx,
	}
	if worker == 0 {
		s.History = NewHistory()
	}
	s.initTables()
	return s
}

// NewThreadStates creates one state per worker, all sharing ctx.
func NewThreadStates(ctx context.Context, workers int, sz Sizes) []*ThreadState {
	if workers < 1 {
		workers = 1
	}
	states := make([]*ThreadState, workers)
	for i := range states {
		states[i] = NewThreadState(ctx, i, sz)
	}
	return states
}

func (s *ThreadState) initTables() {
	for i := 0; i < TableSize; i++ {
		s.logTable[i] = float32(math.Log((float64(i) + 1e-5) / TableSize))

		x := float64(i)*2*MaxSigmoid/TableSize - MaxSigmoid
		s.sigmoidTable[i] = float32(1 / (1 + math.Exp(-x)))
	}
}

// Log approximates ln(x) for x in (0, 1). Inputs at or above 0.99 saturate to 0.
func (s *ThreadState) Log(x float32) float32 {
	if x >= logSaturation {
		return 0
	}
	i := int(x * TableSize)
	if i < 0 {
		i = 0
	}
	return s.logTable[i]
}

// Sigmoid approximates 1/(1+e^-x), saturating to 0 and 1 outside ±7.9.
func (s *ThreadState) Sigmoid(x float32) float32 {
	if x <= -sigmoidSaturation {
		return 0
	}
	if x >= sigmoidSaturation {
		return 1
	}
	return s.sigmoidTable[int((x+MaxSigmoid)*TableSize/MaxSigmoid/2)]
}

// AddLoss accumulates the loss of one example.
func (s *ThreadState) AddLoss(loss float64) {
	s.loss += loss
	s.examples++
}

// Loss returns the mean loss over the examples seen since the last Reset.
func (s *ThreadState) Loss() float64 {
	if s.examples == 0 {
		return 0
	}
	return s.loss / float64(s.examples)
}

// Examples returns the number of examples accounted since the last Reset.
func (s *ThreadState) Examples() int64 { return s.examples }

// Reset clears the loss accumulator and the gradient buffer.
func (s *ThreadState) Reset() {
	s.loss = 0
	s.examples = 0
	clear(s.Gradient)
}

// Cancelled reports whether the shared cancellation signal fired.
// Checking it is up to the training loop.
func (s *ThreadState) Cancelled() bool {
	return s.ctx.Err() != nil
}
