package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/career-coach/internal/observability/metrics"
	"github.com/wolfman30/career-coach/pkg/logging"
)

var tracer = otel.Tracer("career-coach.calls")

// DialRequest places the dialed party into a room.
type DialRequest struct {
	Room                string
	Number              string
	ParticipantIdentity string
	ParticipantName     string
	WaitUntilAnswered   bool
	NoiseSuppression    bool
}

// RecordingRequest asks for a room composite recording to one file.
type RecordingRequest struct {
	Room      string
	Filepath  string
	AudioOnly bool
}

// Dialer places an outbound phone call. It returns once the call is answered
// when WaitUntilAnswered is set.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) error
}

// Recorder starts and stops room recordings.
type Recorder interface {
	StartRecording(ctx context.Context, req RecordingRequest) (string, error)
	StopRecording(ctx context.Context, recordingID string) error
}

// RoomReleaser tears down a room and any participants in it.
type RoomReleaser interface {
	ReleaseRoom(ctx context.Context, room string) error
}

// AgentDispatcher puts the voice coaching agent into a room.
type AgentDispatcher interface {
	DispatchAgent(ctx context.Context, room, metadata string) (string, error)
}

// OrchestratorConfig wires an Orchestrator. Dialer, Recorder, Rooms, Agents,
// Signals and Store are required.
type OrchestratorConfig struct {
	Dialer   Dialer
	Recorder Recorder
	Rooms    RoomReleaser
	Agents   AgentDispatcher
	Signals  Signals
	Store    Store
	Archiver *Archiver

	RecordingDir    string
	RecordingExt    string
	ParticipantWait time.Duration
	MaxDuration     time.Duration

	Logger  *logging.Logger
	Metrics *metrics.CallMetrics
	Now     func() time.Time
}

const (
	defaultParticipantWait = 2 * time.Minute
	defaultMaxDuration     = time.Hour
	defaultRecordingExt    = "mp4"
	outboundParticipant    = "Outbound Call"
)

// Orchestrator drives CallSessions through their lifecycle. Run may be called
// concurrently; each call owns its session exclusively.
type Orchestrator struct {
	dialer   Dialer
	recorder Recorder
	rooms    RoomReleaser
	agents   AgentDispatcher
	signals  Signals
	store    Store
	archiver *Archiver

	recordingDir    string
	recordingExt    string
	participantWait time.Duration
	maxDuration     time.Duration

	logger  *logging.Logger
	metrics *metrics.CallMetrics
	now     func() time.Time
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Dialer == nil || cfg.Recorder == nil || cfg.Rooms == nil || cfg.Agents == nil {
		panic("calls: voice platform capabilities are required")
	}
	if cfg.Signals == nil || cfg.Store == nil {
		panic("calls: signals and store are required")
	}
	if cfg.ParticipantWait <= 0 {
		cfg.ParticipantWait = defaultParticipantWait
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaultMaxDuration
	}
	if cfg.RecordingExt == "" {
		cfg.RecordingExt = defaultRecordingExt
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		dialer:          cfg.Dialer,
		recorder:        cfg.Recorder,
		rooms:           cfg.Rooms,
		agents:          cfg.Agents,
		signals:         cfg.Signals,
		store:           cfg.Store,
		archiver:        cfg.Archiver,
		recordingDir:    cfg.RecordingDir,
		recordingExt:    cfg.RecordingExt,
		participantWait: cfg.ParticipantWait,
		maxDuration:     cfg.MaxDuration,
		logger:          cfg.Logger.Component("call-orchestrator"),
		metrics:         cfg.Metrics,
		now:             cfg.Now,
	}
}

// Run executes one call session to a terminal state and returns the final
// snapshot. A returned error with a non-nil session means the session ended
// in failed. ErrSessionExists means another worker already owns the room.
func (o *Orchestrator) Run(ctx context.Context, job DispatchJob) (*CallSession, error) {
	evt := EventFromJob(job)
	sess := NewCallSession(job.RoomName, job.ID, evt.Sender, o.now())
	log := o.logger.With("room", sess.RoomID, "job_id", job.ID, "direction", sess.Direction())
	if sess.Outbound() {
		log = log.With("to", logging.MaskPhone(sess.DestinationNumber))
	}

	ctx, span := tracer.Start(ctx, "calls.session")
	defer span.End()
	span.SetAttributes(
		attribute.String("call.room", sess.RoomID),
		attribute.String("call.direction", sess.Direction()),
	)

	if err := o.store.Create(ctx, sess); err != nil {
		if errors.Is(err, ErrSessionExists) {
			log.Info("call session already exists, skipping job")
		}
		return nil, err
	}
	o.metrics.SessionStarted()
	defer o.metrics.SessionDone()

	// Teardown must still run when the worker is shutting down.
	teardown := context.WithoutCancel(ctx)
	defer o.finish(teardown, log, sess)

	sub, err := o.signals.Subscribe(ctx, sess.RoomID)
	if err != nil {
		err = fmt.Errorf("calls: subscribe to room signals: %w", err)
		o.fail(teardown, log, sess, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		return sess.Clone(), err
	}
	defer sub.Close()

	callerIdentity, err := o.connect(ctx, teardown, log, sess, sub)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return sess.Clone(), err
	}

	if sess.Outbound() {
		o.startRecording(ctx, log, sess)
	}

	dispatchID, err := o.agents.DispatchAgent(ctx, sess.RoomID, job.Metadata)
	if err != nil {
		// The call is connected with nobody to talk to: hang up and end.
		sess.Error = fmt.Sprintf("agent dispatch: %v", err)
		log.Error("failed to dispatch voice agent", "error", err)
		span.RecordError(err)
		o.release(teardown, log, sess.RoomID)
	} else {
		sess.AgentDispatchID = dispatchID
		o.save(ctx, log, sess)
		log.Info("voice agent dispatched", "dispatch_id", dispatchID)
		o.awaitCompletion(ctx, teardown, log, sess, sub, callerIdentity)
	}

	o.end(teardown, log, sess)
	return sess.Clone(), nil
}

// connect moves the session to connected, dialing outbound numbers or
// waiting for an inbound participant. It returns the identity whose
// departure ends the call.
func (o *Orchestrator) connect(ctx, teardown context.Context, log *logging.Logger, sess *CallSession, sub Subscription) (string, error) {
	if !sess.Outbound() {
		identity, err := o.awaitParticipant(ctx, sub)
		if err != nil {
			log.Warn("no participant joined inbound session", "error", err, "wait", o.participantWait)
			o.release(teardown, log, sess.RoomID)
			o.fail(teardown, log, sess, err)
			return "", err
		}
		o.advance(ctx, log, sess, StateConnected)
		log.Info("participant connected", "identity", identity)
		return identity, nil
	}

	o.advance(ctx, log, sess, StateDialing)
	identity := CallerIdentity(sess.DestinationNumber)
	err := o.dialer.Dial(ctx, DialRequest{
		Room:                sess.RoomID,
		Number:              sess.DestinationNumber,
		ParticipantIdentity: identity,
		ParticipantName:     outboundParticipant,
		WaitUntilAnswered:   true,
		NoiseSuppression:    true,
	})
	if err != nil {
		err = fmt.Errorf("calls: dial: %w", err)
		log.Error("outbound call failed", "error", err)
		o.release(teardown, log, sess.RoomID)
		o.fail(teardown, log, sess, err)
		return "", err
	}
	o.advance(ctx, log, sess, StateConnected)
	log.Info("outbound call connected")
	return identity, nil
}

func (o *Orchestrator) awaitParticipant(ctx context.Context, sub Subscription) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, o.participantWait)
	defer cancel()
	for {
		sig, err := sub.Next(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return "", ErrParticipantTimeout
			}
			return "", fmt.Errorf("calls: await participant: %w", err)
		}
		switch sig.Kind {
		case SignalParticipantJoined:
			return sig.Identity, nil
		case SignalRoomFinished, SignalSessionEnded:
			return "", fmt.Errorf("%w: room ended first", ErrParticipantTimeout)
		}
	}
}

func (o *Orchestrator) startRecording(ctx context.Context, log *logging.Logger, sess *CallSession) {
	if sess.RecordingActive() {
		return
	}
	file := RecordingFilename(o.recordingDir, sess.DestinationNumber, o.recordingExt, o.now())
	id, err := o.recorder.StartRecording(ctx, RecordingRequest{
		Room:      sess.RoomID,
		Filepath:  file,
		AudioOnly: true,
	})
	if err != nil {
		o.metrics.ObserveRecording("start", "error")
		log.Error("failed to start recording, continuing without it", "error", err)
		return
	}
	if err := sess.SetRecording(id, file); err != nil {
		log.Error("recording rejected by session", "recording_id", id, "error", err)
		return
	}
	o.metrics.ObserveRecording("start", "ok")
	o.advance(ctx, log, sess, StateRecording)
	log.Info("recording started", "recording_id", id, "file", file)
}

// awaitCompletion blocks until the agent reports the session over, the room
// finishes, the caller leaves, or the max duration passes.
func (o *Orchestrator) awaitCompletion(ctx, teardown context.Context, log *logging.Logger, sess *CallSession, sub Subscription, callerIdentity string) {
	waitCtx, cancel := context.WithTimeout(ctx, o.maxDuration)
	defer cancel()
	for {
		sig, err := sub.Next(waitCtx)
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				log.Warn("call reached max duration, hanging up", "max_duration", o.maxDuration)
				sess.Error = "max duration reached"
				o.release(teardown, log, sess.RoomID)
			case errors.Is(err, context.Canceled):
				log.Warn("call abandoned on shutdown, hanging up")
				sess.Error = "abandoned on shutdown"
				o.release(teardown, log, sess.RoomID)
			default:
				log.Error("signal stream failed, hanging up", "error", err)
				sess.Error = "signal stream failed"
				o.release(teardown, log, sess.RoomID)
			}
			return
		}
		switch sig.Kind {
		case SignalSessionEnded, SignalRoomFinished:
			log.Info("call completed", "signal", sig.Kind)
			return
		case SignalParticipantLeft:
			if callerIdentity == "" || sig.Identity == callerIdentity {
				log.Info("caller left the room", "identity", sig.Identity)
				return
			}
		}
	}
}

// end moves a connected or recording session through ending to closed,
// stopping an active recording on the way.
func (o *Orchestrator) end(ctx context.Context, log *logging.Logger, sess *CallSession) {
	o.advance(ctx, log, sess, StateEnding)
	if sess.RecordingActive() {
		if err := o.recorder.StopRecording(ctx, sess.RecordingID); err != nil {
			o.metrics.ObserveRecording("stop", "error")
			log.Error("failed to stop recording", "recording_id", sess.RecordingID, "error", err)
		} else {
			o.metrics.ObserveRecording("stop", "ok")
			log.Info("recording stopped", "recording_id", sess.RecordingID)
		}
		sess.MarkRecordingStopped()
	}
	o.advance(ctx, log, sess, StateClosed)
}

func (o *Orchestrator) advance(ctx context.Context, log *logging.Logger, sess *CallSession, to State) {
	from := sess.State
	if err := sess.Transition(to, o.now()); err != nil {
		log.Error("call state transition rejected", "error", err)
		return
	}
	o.metrics.ObserveTransition(string(from), string(to))
	o.save(ctx, log, sess)
}

func (o *Orchestrator) fail(ctx context.Context, log *logging.Logger, sess *CallSession, cause error) {
	from := sess.State
	if err := sess.Fail(cause, o.now()); err != nil {
		log.Error("call state transition rejected", "error", err)
		return
	}
	o.metrics.ObserveTransition(string(from), string(StateFailed))
	o.save(ctx, log, sess)
}

func (o *Orchestrator) save(ctx context.Context, log *logging.Logger, sess *CallSession) {
	if err := o.store.Save(ctx, sess); err != nil {
		log.Warn("failed to persist call session", "state", sess.State, "error", err)
	}
}

func (o *Orchestrator) release(ctx context.Context, log *logging.Logger, room string) {
	if err := o.rooms.ReleaseRoom(ctx, room); err != nil {
		log.Warn("failed to release room", "error", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, log *logging.Logger, sess *CallSession) {
	elapsed := o.now().Sub(sess.StartedAt)
	o.metrics.ObserveFinished(string(sess.State), sess.Direction(), elapsed)
	if err := o.archiver.Archive(ctx, sess); err != nil {
		log.Warn("failed to archive call session", "error", err)
	}
	log.Info("call session finished",
		"state", sess.State,
		"recording_id", sess.RecordingID,
		"duration_ms", elapsed.Milliseconds(),
	)
}
