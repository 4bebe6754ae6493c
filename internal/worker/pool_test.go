package worker

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsJobAndCallback(t *testing.T) {
	p := NewPool(2, nil)
	defer p.Close()

	ran := make(chan struct{})
	var cbErr error
	done := make(chan struct{})

	id, err := p.Submit("test", func() error {
		close(ran)
		return nil
	}, func(err error) {
		cbErr = err
		close(done)
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}
	<-ran
	assert.NoError(t, cbErr)

	job, ok := p.Job(id)
	require.True(t, ok)
	assert.Equal(t, StatusDone, job.Status)
	assert.False(t, job.CompletedAt.IsZero())
}

func TestFailedJobReportsError(t *testing.T) {
	p := NewPool(1, nil)
	defer p.Close()

	boom := errors.New("boom")
	done := make(chan error, 1)
	id, err := p.Submit("failing", func() error { return boom }, func(err error) { done <- err })
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}

	job, _ := p.Job(id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.ErrorIs(t, job.Err, boom)
}

func TestPanicBecomesFailure(t *testing.T) {
	p := NewPool(1, nil)
	defer p.Close()

	done := make(chan error, 1)
	_, err := p.Submit("panicking", func() error { panic("kaboom") }, func(err error) { done <- err })
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "kaboom")
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}
}

func TestCallbacksAreSerialized(t *testing.T) {
	p := NewPool(4, nil)

	// The counter is unguarded: only the serialized callback lane touches
	// it, so the final value proves no two callbacks ran concurrently.
	counter := 0
	const jobs = 50
	for i := 0; i < jobs; i++ {
		_, err := p.Submit("count", func() error { return nil }, func(error) { counter++ })
		require.NoError(t, err)
	}

	p.Close()
	assert.Equal(t, jobs, counter)
}

func TestCloseDrainsQueue(t *testing.T) {
	p := NewPool(2, nil)

	var completed atomic.Int32
	const jobs = 20
	for i := 0; i < jobs; i++ {
		_, err := p.Submit("work", func() error {
			completed.Add(1)
			return nil
		}, nil)
		require.NoError(t, err)
	}

	p.Close()
	assert.Equal(t, int32(jobs), completed.Load())
}

func TestSubmitAfterClose(t *testing.T) {
	p := NewPool(1, nil)
	p.Close()

	_, err := p.Submit("late", func() error { return nil }, nil)
	assert.ErrorIs(t, err, ErrClosed)

	// Closing twice is harmless.
	p.Close()
}

func TestJobLookupMissing(t *testing.T) {
	p := NewPool(1, nil)
	defer p.Close()

	_, ok := p.Job("nope")
	assert.False(t, ok)
	assert.Empty(t, p.Jobs())
}
