package calls

import (
	"context"
	"fmt"
	"sync"
)

// Store persists CallSession snapshots.
type Store interface {
	// Create inserts a new session and returns ErrSessionExists if the room
	// already has one.
	Create(ctx context.Context, sess *CallSession) error
	Save(ctx context.Context, sess *CallSession) error
	// Get returns ErrSessionNotFound for unknown rooms.
	Get(ctx context.Context, roomID string) (*CallSession, error)
}

// MemoryStore keeps sessions in process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*CallSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*CallSession)}
}

func (m *MemoryStore) Create(_ context.Context, sess *CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.RoomID]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, sess.RoomID)
	}
	m.sessions[sess.RoomID] = sess.Clone()
	return nil
}

func (m *MemoryStore) Save(_ context.Context, sess *CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.RoomID] = sess.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, roomID string) (*CallSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, roomID)
	}
	return sess.Clone(), nil
}
