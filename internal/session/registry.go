// Package session tracks live debug sessions for operational
// visibility and enforces a configurable concurrency cap, mirroring
// the teacher's SessionManager trimmed to this system's
// single-runtime-per-connection lifecycle: no compound sessions, no
// per-language adapter spawners, just registration, a last-active
// timestamp, and idle reaping.
package session

import (
	"fmt"
	"sync"
	"time"
)

// Handle is the minimal surface a Registry needs from a live session.
type Handle interface {
	ID() string
	Close() error
}

type entry struct {
	handle     Handle
	lastActive time.Time
}

// Registry caps concurrent sessions and reaps ones that have gone idle
// past the configured timeout.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*entry
	maxSessions int
	timeout     time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewRegistry starts a registry and its background reaper.
func NewRegistry(maxSessions int, timeout time.Duration) *Registry {
	r := &Registry{
		sessions:    make(map[string]*entry),
		maxSessions: maxSessions,
		timeout:     timeout,
		stop:        make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Register admits h, failing if the concurrency cap is already reached.
func (r *Registry) Register(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.maxSessions {
		return fmt.Errorf("session: maximum concurrent sessions (%d) reached", r.maxSessions)
	}
	r.sessions[h.ID()] = &entry{handle: h, lastActive: time.Now()}
	return nil
}

// Touch records activity on id, resetting its idle clock.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.lastActive = time.Now()
	}
}

// Remove drops id without closing it; the caller has already done so.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown stops the background reaper. It does not close registered
// sessions; callers are expected to be shutting those down themselves.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.reapExpired()
		}
	}
}

func (r *Registry) reapExpired() {
	r.mu.Lock()
	var expired []Handle
	now := time.Now()
	for id, e := range r.sessions {
		if now.Sub(e.lastActive) > r.timeout {
			expired = append(expired, e.handle)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, h := range expired {
		h.Close()
	}
}
