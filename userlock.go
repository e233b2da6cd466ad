package chatgate

import "sync"

// userLocks serializes access per user id. Concurrent messages from the same
// user would otherwise race on the store's read-modify-write of RequestCount
// and Transcript; messages from different users proceed in parallel.
type userLocks struct {
	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{users: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for userID and returns its unlock func.
func (l *userLocks) acquire(userID string) func() {
	l.mu.Lock()
	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
