package hub

import (
	"sync"
	"time"
)

// Session is a registered user bound to one live connection. The wire shape
// matches the original deployment's user record; IsInCall is carried for
// client compatibility and is always false here.
type Session struct {
	Username     string    `json:"username"`
	ConnectionID string    `json:"socketId"`
	IsInCall     bool      `json:"isInCall"`
	JoinedAt     time.Time `json:"-"`
}

// Registry is the roster of live sessions. It keeps a forward index from
// connection ID to session and a reverse index from username to connection ID
// for O(1) collision checks. Both indices are updated under one lock so no
// reader ever observes them out of sync.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Session
	byName map[string]string
	order  []string // connection IDs in registration order
}

// NewRegistry creates an empty roster.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*Session),
		byName: make(map[string]string),
	}
}

// Register binds username to the given connection. It fails with a wrapped
// ErrInvalidUsername on a shape violation and with ErrNameTaken when another
// live connection already holds the name. Re-registration by the same
// connection replaces its previous name atomically: the old name is released
// within the same critical section, so no stale entry lingers.
func (r *Registry) Register(connectionID, username string) (Session, error) {
	if err := ValidateUsername(username); err != nil {
		return Session{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, taken := r.byName[username]; taken && owner != connectionID {
		return Session{}, ErrNameTaken
	}

	if existing, ok := r.byConn[connectionID]; ok {
		// Replace: release the old name, keep the roster position.
		delete(r.byName, existing.Username)
		existing.Username = username
		existing.JoinedAt = time.Now()
		r.byName[username] = connectionID
		return *existing, nil
	}

	session := &Session{
		Username:     username,
		ConnectionID: connectionID,
		JoinedAt:     time.Now(),
	}
	r.byConn[connectionID] = session
	r.byName[username] = connectionID
	r.order = append(r.order, connectionID)

	return *session, nil
}

// Unregister removes the session for the given connection, if any, and
// returns it. A connection that disconnects before registering is not an
// error; the second return value reports whether a session existed.
func (r *Registry) Unregister(connectionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.byConn[connectionID]
	if !ok {
		return Session{}, false
	}

	delete(r.byConn, connectionID)
	delete(r.byName, session.Username)
	for i, id := range r.order {
		if id == connectionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return *session, true
}

// Find returns the session for the given connection, if registered.
func (r *Registry) Find(connectionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.byConn[connectionID]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// Snapshot returns the live sessions in registration order, as value copies.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		if session, ok := r.byConn[id]; ok {
			sessions = append(sessions, *session)
		}
	}
	return sessions
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
