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
// Package work serializes top-level agent execution: one logical slot
// per process shared by user turns and scheduled runs, with user work
// preempting scheduled work, and per-session cancellation of stale
// background loops.
package work

import (
	"context"
	"sync"
)

// Serializer holds the single execution slot. User acquisitions preempt
// any running scheduled work and wait for the slot; scheduled
// acquisitions never wait and never run while a user is active or
// waiting.
type Serializer struct {
	mu          sync.Mutex
	slot        chan struct{}
	userWaiting int
	preempt     context.CancelFunc
}

// NewSerializer creates a serializer with a free slot.
func NewSerializer() *Serializer {
	return &Serializer{slot: make(chan struct{}, 1)}
}

// Handle is a held slot. Release returns the slot; it is safe to call
// more than once and must be called on every exit path.
type Handle struct {
	s         *Serializer
	once      sync.Once
	cancelRun context.CancelFunc
}

// Release frees the slot.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.s.mu.Lock()
		if h.cancelRun != nil {
			h.s.preempt = nil
			h.cancelRun()
		}
		h.s.mu.Unlock()
		<-h.s.slot
	})
}

// AcquireForUser cancels any running scheduled work and waits for the
// slot. It returns an error only when ctx is done first.
func (s *Serializer) AcquireForUser(ctx context.Context) (*Handle, error) {
	s.mu.Lock()
	s.userWaiting++
	if s.preempt != nil {
		s.preempt()
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.userWaiting--
		s.mu.Unlock()
	}()

	select {
	case s.slot <- struct{}{}:
		return &Handle{s: s}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquireForScheduled takes the slot only when it is free and no
// user is waiting; otherwise it yields immediately. The returned
// context derives from ctx and is cancelled when a user acquisition
// preempts the run; scheduled work must watch it and release promptly.
func (s *Serializer) TryAcquireForScheduled(ctx context.Context) (*Handle, context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userWaiting > 0 {
		return nil, nil, false
	}
	select {
	case s.slot <- struct{}{}:
	default:
		return nil, nil, false
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.preempt = cancel
	return &Handle{s: s, cancelRun: cancel}, runCtx, true
}
