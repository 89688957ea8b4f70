package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateRunsOperationsInSubmissionOrder(t *testing.T) {
	gate := NewGate(8)
	defer gate.Close()

	var order []int
	release := make(chan struct{})

	// Hold the worker so subsequent submissions queue up behind it.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := gate.Submit(context.Background(), func() error {
			<-release
			return nil
		})
		require.NoError(t, err)
	}()

	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.Submit(context.Background(), func() error {
				order = append(order, i)
				return nil
			})
			require.NoError(t, err)
		}()
		// Wait for the job to be queued so queue order is deterministic.
		require.Eventually(t, func() bool { return len(gate.jobs) == i }, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()

	// order is only written by the single worker goroutine.
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestGateReturnsOperationError(t *testing.T) {
	gate := NewGate(1)
	defer gate.Close()

	boom := errors.New("boom")
	err := gate.Submit(context.Background(), func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestGateSerializesConcurrentOperations(t *testing.T) {
	gate := NewGate(4)
	defer gate.Close()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.Submit(context.Background(), func() error {
				// Not atomic on purpose: only safe if ops never overlap.
				counter++
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestGateClosedFailsSubmissions(t *testing.T) {
	gate := NewGate(1)
	gate.Close()

	err := gate.Submit(context.Background(), func() error {
		t.Fatal("operation must not run on a closed gate")
		return nil
	})
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestGateCloseIsIdempotent(t *testing.T) {
	gate := NewGate(1)
	gate.Close()
	gate.Close()
}

func TestGateContextCanceledBeforeHandOff(t *testing.T) {
	gate := NewGate(1)
	defer gate.Close()

	release := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_ = gate.Submit(context.Background(), func() error {
			close(running)
			<-release
			return nil
		})
	}()
	<-running

	// Fill the single queue slot so the next submit cannot hand off.
	go func() {
		_ = gate.Submit(context.Background(), func() error { return nil })
	}()
	require.Eventually(t, func() bool { return len(gate.jobs) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gate.Submit(ctx, func() error {
		t.Error("operation must not run after its context was canceled before hand-off")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
}
