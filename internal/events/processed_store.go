package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deduper remembers which inbound units were already handled so provider
// redeliveries can be skipped.
type Deduper interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records handled webhook units in Postgres.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if we've seen this provider event id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, provider, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts an event id for the provider, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MemoryProcessedStore is an in-process Deduper with a retention window.
// Expired ids are swept out on MarkProcessed once per retention period.
type MemoryProcessedStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryProcessedStore keeps ids for retention. Zero means one day.
func NewMemoryProcessedStore(retention time.Duration) *MemoryProcessedStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &MemoryProcessedStore{
		seen:      make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

func (m *MemoryProcessedStore) AlreadyProcessed(_ context.Context, provider, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seenLocked(provider+"/"+eventID, m.now()), nil
}

func (m *MemoryProcessedStore) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= m.retention {
		m.sweepLocked(now)
	}
	key := provider + "/" + eventID
	if m.seenLocked(key, now) {
		return false, nil
	}
	m.seen[key] = now
	return true, nil
}

func (m *MemoryProcessedStore) seenLocked(key string, now time.Time) bool {
	at, ok := m.seen[key]
	if !ok {
		return false
	}
	if now.Sub(at) > m.retention {
		delete(m.seen, key)
		return false
	}
	return true
}

func (m *MemoryProcessedStore) sweepLocked(now time.Time) {
	for key, at := range m.seen {
		if now.Sub(at) > m.retention {
			delete(m.seen, key)
		}
	}
	m.lastSweep = now
}
