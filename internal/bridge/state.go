// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package bridge

import (
	"log"
	"sync"
	"time"
)

// chanMutex is a mutex that supports a bounded TryLock, built from a
// capacity-1 semaphore channel the way client/main.go's scavenger uses
// a channel as the coordination primitive instead of a condition
// variable. The Session's read lock needs this to give shutdown a
// chance to preempt an indefinitely blocked reader.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

// TryLock blocks up to timeout waiting for the lock, returning false on
// expiry.
func (m chanMutex) TryLock(timeout time.Duration) bool {
	select {
	case <-m:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (m chanMutex) Unlock() {
	m <- struct{}{}
}

// sessionState holds the timestamps and sync flag §3 assigns to a
// Session, behind one mutex since the reader goroutine is the
// principal writer but the writer goroutine also updates lastWriteAt.
type sessionState struct {
	mu sync.Mutex

	synced            bool
	lastSyncAt        time.Time
	lastSyncLostAt    time.Time
	lastSyncSuccessAt time.Time
	lastReadAt        time.Time
	lastWriteAt       time.Time
}

func (s *sessionState) setSynced(v bool) {
	s.mu.Lock()
	s.synced = v
	s.mu.Unlock()
}

func (s *sessionState) getSynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

func (s *sessionState) setLastSyncAt(t time.Time) {
	s.mu.Lock()
	s.lastSyncAt = t
	s.mu.Unlock()
}

func (s *sessionState) getLastSyncAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncAt
}

func (s *sessionState) setLastSyncLostAt(t time.Time) {
	s.mu.Lock()
	s.lastSyncLostAt = t
	s.mu.Unlock()
}

func (s *sessionState) getLastSyncLostAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncLostAt
}

func (s *sessionState) setLastSyncSuccessAt(t time.Time) {
	s.mu.Lock()
	s.lastSyncSuccessAt = t
	s.mu.Unlock()
}

func (s *sessionState) setLastWriteAt(t time.Time) {
	s.mu.Lock()
	s.lastWriteAt = t
	s.mu.Unlock()
}

// bufferSizes tracks the publish/subscribe buffer sizes the device
// announces in its first TopicInfo of each direction. -1 means
// unnegotiated; only the first announcement in each direction sticks,
// matching the original's setPublishSize/setSubscribeSize.
type bufferSizes struct {
	mu        sync.Mutex
	publish   int
	subscribe int
}

func (b *bufferSizes) setPublish(size uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publish < 0 {
		b.publish = int(size)
		log.Printf("bridge: publish buffer size is %d bytes", size)
	}
}

func (b *bufferSizes) setSubscribe(size uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribe < 0 {
		b.subscribe = int(size)
		log.Printf("bridge: subscribe buffer size is %d bytes", size)
	}
}

func (b *bufferSizes) getSubscribe() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribe
}
