package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SignalKind is a room lifecycle notification.
type SignalKind string

const (
	SignalParticipantJoined SignalKind = "participant_joined"
	SignalParticipantLeft   SignalKind = "participant_left"
	SignalRoomFinished      SignalKind = "room_finished"
	// SignalSessionEnded is reported by the voice agent when the coaching
	// conversation is over.
	SignalSessionEnded SignalKind = "session_ended"
)

// Signal is one notification about a room.
type Signal struct {
	Room     string     `json:"room"`
	Kind     SignalKind `json:"kind"`
	Identity string     `json:"identity,omitempty"`
	At       time.Time  `json:"at"`
}

// Subscription yields the signals of one room in publish order.
type Subscription interface {
	Next(ctx context.Context) (Signal, error)
	Close() error
}

// Signals carries room notifications from webhooks to orchestrators.
type Signals interface {
	Publish(ctx context.Context, sig Signal) error
	Subscribe(ctx context.Context, room string) (Subscription, error)
}

// ErrSubscriptionClosed is returned by Next after Close.
var ErrSubscriptionClosed = errors.New("calls: subscription closed")

const memorySignalBuffer = 16

// MemorySignals fans signals out to in-process subscribers. Signals for a
// room with no subscriber are dropped.
type MemorySignals struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

func NewMemorySignals() *MemorySignals {
	return &MemorySignals{subs: make(map[string]map[*memorySubscription]struct{})}
}

func (m *MemorySignals) Publish(_ context.Context, sig Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs[sig.Room] {
		select {
		case sub.ch <- sig:
		default:
			// subscriber is not draining
		}
	}
	return nil
}

func (m *MemorySignals) Subscribe(_ context.Context, room string) (Subscription, error) {
	sub := &memorySubscription{
		parent: m,
		room:   room,
		ch:     make(chan Signal, memorySignalBuffer),
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	if m.subs[room] == nil {
		m.subs[room] = make(map[*memorySubscription]struct{})
	}
	m.subs[room][sub] = struct{}{}
	m.mu.Unlock()
	return sub, nil
}

func (m *MemorySignals) remove(sub *memorySubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs[sub.room], sub)
	if len(m.subs[sub.room]) == 0 {
		delete(m.subs, sub.room)
	}
}

type memorySubscription struct {
	parent *MemorySignals
	room   string
	ch     chan Signal
	done   chan struct{}
	once   sync.Once
}

func (s *memorySubscription) Next(ctx context.Context) (Signal, error) {
	select {
	case sig := <-s.ch:
		return sig, nil
	case <-s.done:
		return Signal{}, ErrSubscriptionClosed
	case <-ctx.Done():
		return Signal{}, ctx.Err()
	}
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.parent.remove(s)
		close(s.done)
	})
	return nil
}

const (
	signalStreamPrefix = "calls:signals:"
	signalStreamMaxLen = 256
	signalStreamTTL    = 24 * time.Hour
	signalPollBlock    = time.Second
	signalReadCount    = 10
)

// RedisSignals keeps one Redis stream per room so API and worker processes
// can run separately. Subscribers read the stream from the beginning: a
// participant_joined that lands before the worker subscribes is not lost.
type RedisSignals struct {
	rdb *redis.Client
}

func NewRedisSignals(rdb *redis.Client) *RedisSignals {
	if rdb == nil {
		panic("calls: redis client cannot be nil")
	}
	return &RedisSignals{rdb: rdb}
}

func signalStreamKey(room string) string {
	return signalStreamPrefix + room
}

func (r *RedisSignals) Publish(ctx context.Context, sig Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("calls: marshal signal: %w", err)
	}
	key := signalStreamKey(sig.Room)
	pipe := r.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"signal": string(data)},
	})
	pipe.Expire(ctx, key, signalStreamTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("calls: publish signal to %s: %w", key, err)
	}
	return nil
}

func (r *RedisSignals) Subscribe(_ context.Context, room string) (Subscription, error) {
	return &redisSubscription{
		rdb:    r.rdb,
		key:    signalStreamKey(room),
		lastID: "0",
	}, nil
}

type redisSubscription struct {
	rdb     *redis.Client
	key     string
	lastID  string
	pending []Signal
	closed  bool
}

func (s *redisSubscription) Next(ctx context.Context) (Signal, error) {
	for {
		if s.closed {
			return Signal{}, ErrSubscriptionClosed
		}
		if len(s.pending) > 0 {
			sig := s.pending[0]
			s.pending = s.pending[1:]
			return sig, nil
		}
		if err := ctx.Err(); err != nil {
			return Signal{}, err
		}

		streams, err := s.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.key, s.lastID},
			Count:   signalReadCount,
			Block:   signalPollBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Signal{}, ctx.Err()
			}
			return Signal{}, fmt.Errorf("calls: read signals from %s: %w", s.key, err)
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				s.lastID = msg.ID
				raw, ok := msg.Values["signal"].(string)
				if !ok {
					continue
				}
				var sig Signal
				if err := json.Unmarshal([]byte(raw), &sig); err != nil {
					continue
				}
				s.pending = append(s.pending, sig)
			}
		}
	}
}

func (s *redisSubscription) Close() error {
	s.closed = true
	return nil
}
