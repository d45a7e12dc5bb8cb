package model

import (
	"sync"
	"time"
)

// Flash holds the transient notice the status bar shows alongside the
// profile/link/channel summary: send failures, fetch errors, reconnect
// warnings. Notices expire on their own, so the bar falls back to the
// summary without anyone having to clear them.
type Flash struct {
	mu      sync.RWMutex
	message string
	expires time.Time
}

// Set stores a notice that expires after the given duration. A newer notice
// replaces the current one even if that one has time left; the latest
// failure is the one worth reading.
func (f *Flash) Set(msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.expires = time.Now().Add(d)
}

// Get returns the current notice, or empty once expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return ""
	}
	return f.message
}
