// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package work

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAcquireAndRelease(t *testing.T) {
	s := NewSerializer()

	handle, err := s.AcquireForUser(context.Background())
	require.NoError(t, err)
	handle.Release()
	handle.Release() // safe to call twice

	handle, err = s.AcquireForUser(context.Background())
	require.NoError(t, err)
	handle.Release()
}

func TestScheduledYieldsWhileUserHoldsSlot(t *testing.T) {
	s := NewSerializer()

	handle, err := s.AcquireForUser(context.Background())
	require.NoError(t, err)
	defer handle.Release()

	_, _, ok := s.TryAcquireForScheduled(context.Background())
	assert.False(t, ok)
}

func TestScheduledYieldsWhileUserWaits(t *testing.T) {
	s := NewSerializer()

	first, err := s.AcquireForUser(context.Background())
	require.NoError(t, err)

	waiting := make(chan struct{})
	acquired := make(chan *Handle)
	go func() {
		close(waiting)
		h, err := s.AcquireForUser(context.Background())
		assert.NoError(t, err)
		acquired <- h
	}()
	<-waiting
	// Give the waiter time to enter the select.
	time.Sleep(20 * time.Millisecond)

	_, _, ok := s.TryAcquireForScheduled(context.Background())
	assert.False(t, ok, "scheduled work must not jump the user queue")

	first.Release()
	h := <-acquired
	h.Release()
}

func TestUserPreemptsScheduledRun(t *testing.T) {
	s := NewSerializer()

	handle, runCtx, ok := s.TryAcquireForScheduled(context.Background())
	require.True(t, ok)

	released := make(chan struct{})
	go func() {
		<-runCtx.Done()
		handle.Release()
		close(released)
	}()

	userHandle, err := s.AcquireForUser(context.Background())
	require.NoError(t, err)
	defer userHandle.Release()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("scheduled run was not preempted")
	}
	require.ErrorIs(t, runCtx.Err(), context.Canceled)
}

func TestScheduledBackToBackRuns(t *testing.T) {
	s := NewSerializer()

	handle, runCtx, ok := s.TryAcquireForScheduled(context.Background())
	require.True(t, ok)
	assert.NoError(t, runCtx.Err())

	_, _, again := s.TryAcquireForScheduled(context.Background())
	assert.False(t, again, "slot is exclusive")

	handle.Release()
	handle2, _, ok := s.TryAcquireForScheduled(context.Background())
	require.True(t, ok)
	handle2.Release()
}

func TestUserAcquireHonorsContext(t *testing.T) {
	s := NewSerializer()

	handle, err := s.AcquireForUser(context.Background())
	require.NoError(t, err)
	defer handle.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.AcquireForUser(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionTrackerCancelsPriorLoop(t *testing.T) {
	tracker := NewSessionTracker()
	host := context.Background()

	first := tracker.BeginSession("s1", host)
	second := tracker.BeginSession("s1", host)

	require.ErrorIs(t, first.Err(), context.Canceled)
	assert.NoError(t, second.Err())
	assert.Equal(t, 1, tracker.Active())
}

func TestSessionTrackerEndAndCancelAll(t *testing.T) {
	tracker := NewSessionTracker()
	host := context.Background()

	a := tracker.BeginSession("a", host)
	b := tracker.BeginSession("b", host)

	tracker.EndSession("a")
	tracker.EndSession("unknown")
	require.ErrorIs(t, a.Err(), context.Canceled)
	assert.NoError(t, b.Err())
	assert.Equal(t, 1, tracker.Active())

	tracker.CancelAll()
	require.ErrorIs(t, b.Err(), context.Canceled)
	assert.Equal(t, 0, tracker.Active())
}
