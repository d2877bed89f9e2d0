package utils

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(4, 16)

	var count int32
	for i := 0; i < 100; i++ {
		assert.NoError(t, pool.Submit(func() { atomic.AddInt32(&count, 1) }))
	}
	pool.Shutdown()

	assert.Equal(t, int32(100), atomic.LoadInt32(&count))
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1, 0)
	pool.Shutdown()
	pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(func() {}), ErrPoolClosed)
}

func TestWorkerPool_ClampsWorkers(t *testing.T) {
	pool := NewWorkerPool(0, -1)
	done := make(chan struct{})
	assert.NoError(t, pool.Submit(func() { close(done) }))
	<-done
	pool.Shutdown()
}

func TestWorkerPool_TrySubmitWhenFull(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	started := make(chan struct{})
	release := make(chan struct{})

	assert.NoError(t, pool.TrySubmit(func() { close(started); <-release }))
	<-started
	assert.NoError(t, pool.TrySubmit(func() {}))
	assert.ErrorIs(t, pool.TrySubmit(func() {}), ErrPoolFull)

	close(release)
	pool.Shutdown()
	assert.ErrorIs(t, pool.TrySubmit(func() {}), ErrPoolClosed)
}
