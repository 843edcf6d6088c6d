package calls

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/career-coach/pkg/logging"
)

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// fakePlatform records every voice platform call. When signals is set,
// DispatchAgent publishes endSignal for the room so Run can finish.
type fakePlatform struct {
	mu sync.Mutex

	dialErr  error
	startErr error
	stopErr  error
	agentErr error

	signals   Signals
	endSignal SignalKind

	dials     []DialRequest
	starts    []RecordingRequest
	stops     []string
	releases  []string
	dispatchs []string
}

func (f *fakePlatform) Dial(_ context.Context, req DialRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials = append(f.dials, req)
	return f.dialErr
}

func (f *fakePlatform) StartRecording(_ context.Context, req RecordingRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, req)
	if f.startErr != nil {
		return "", f.startErr
	}
	return "EG_" + req.Room, nil
}

func (f *fakePlatform) StopRecording(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, id)
	return f.stopErr
}

func (f *fakePlatform) ReleaseRoom(_ context.Context, room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases = append(f.releases, room)
	return nil
}

func (f *fakePlatform) DispatchAgent(ctx context.Context, room, _ string) (string, error) {
	f.mu.Lock()
	f.dispatchs = append(f.dispatchs, room)
	err := f.agentErr
	signals, kind := f.signals, f.endSignal
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	if signals != nil && kind != "" {
		_ = signals.Publish(ctx, Signal{Room: room, Kind: kind, At: fixedNow})
	}
	return "AD_" + room, nil
}

type platformCalls struct {
	dials     []DialRequest
	starts    []RecordingRequest
	stops     []string
	releases  []string
	dispatchs []string
}

func (f *fakePlatform) snapshot() platformCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return platformCalls{
		dials:     append([]DialRequest(nil), f.dials...),
		starts:    append([]RecordingRequest(nil), f.starts...),
		stops:     append([]string(nil), f.stops...),
		releases:  append([]string(nil), f.releases...),
		dispatchs: append([]string(nil), f.dispatchs...),
	}
}

// scriptedSignals hands every subscriber the same preset signals. Once the
// script is drained, Next returns err when it is set.
type scriptedSignals struct {
	script []Signal
	err    error
}

func (s *scriptedSignals) Publish(context.Context, Signal) error { return nil }

func (s *scriptedSignals) Subscribe(context.Context, string) (Subscription, error) {
	ch := make(chan Signal, len(s.script))
	for _, sig := range s.script {
		ch <- sig
	}
	return &scriptedSubscription{ch: ch, err: s.err}, nil
}

type scriptedSubscription struct {
	ch  chan Signal
	err error
}

func (s *scriptedSubscription) Next(ctx context.Context) (Signal, error) {
	if s.err != nil {
		select {
		case sig := <-s.ch:
			return sig, nil
		default:
			return Signal{}, s.err
		}
	}
	select {
	case sig := <-s.ch:
		return sig, nil
	case <-ctx.Done():
		return Signal{}, ctx.Err()
	}
}

func (s *scriptedSubscription) Close() error { return nil }

func testLogger() *logging.Logger {
	return logging.New("error")
}

func newTestOrchestrator(platform *fakePlatform, signals Signals, store Store, mutate ...func(*OrchestratorConfig)) *Orchestrator {
	cfg := OrchestratorConfig{
		Dialer:          platform,
		Recorder:        platform,
		Rooms:           platform,
		Agents:          platform,
		Signals:         signals,
		Store:           store,
		RecordingDir:    "recordings",
		RecordingExt:    "mp4",
		ParticipantWait: time.Second,
		MaxDuration:     2 * time.Second,
		Logger:          testLogger(),
		Now:             fixedClock,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	return NewOrchestrator(cfg)
}

func outboundJob(room, number string) DispatchJob {
	job, err := NewDispatchJob(room, number, fixedNow)
	if err != nil {
		panic(err)
	}
	return job
}
