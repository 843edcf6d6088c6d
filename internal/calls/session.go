package calls

import (
	"fmt"
	"time"
)

// StateChange is one entry of a session's transition history.
type StateChange struct {
	From State     `json:"from" dynamodbav:"from"`
	To   State     `json:"to" dynamodbav:"to"`
	At   time.Time `json:"at" dynamodbav:"at"`
}

// CallSession is the lifecycle record of one voice call. A session is owned
// by the orchestrator goroutine that created it; stores and API readers only
// ever see copies.
type CallSession struct {
	RoomID            string `json:"room_id" dynamodbav:"roomId"`
	JobID             string `json:"job_id,omitempty" dynamodbav:"jobId,omitempty"`
	DestinationNumber string `json:"destination_number,omitempty" dynamodbav:"destinationNumber,omitempty"`
	State             State  `json:"state" dynamodbav:"state"`

	RecordingID      string `json:"recording_id,omitempty" dynamodbav:"recordingId,omitempty"`
	RecordingFile    string `json:"recording_file,omitempty" dynamodbav:"recordingFile,omitempty"`
	RecordingStopped bool   `json:"recording_stopped,omitempty" dynamodbav:"recordingStopped,omitempty"`
	AgentDispatchID  string `json:"agent_dispatch_id,omitempty" dynamodbav:"agentDispatchId,omitempty"`

	StartedAt time.Time  `json:"started_at" dynamodbav:"startedAt"`
	EndedAt   *time.Time `json:"ended_at,omitempty" dynamodbav:"endedAt,omitempty"`
	Error     string     `json:"error,omitempty" dynamodbav:"error,omitempty"`

	History []StateChange `json:"history" dynamodbav:"history"`

	ExpiresAt int64 `json:"-" dynamodbav:"expiresAt,omitempty"`
}

// NewCallSession returns an idle session. An empty destination means an
// inbound or in-room session.
func NewCallSession(roomID, jobID, destination string, now time.Time) *CallSession {
	return &CallSession{
		RoomID:            roomID,
		JobID:             jobID,
		DestinationNumber: destination,
		State:             StateIdle,
		StartedAt:         now.UTC(),
		History:           []StateChange{},
	}
}

// Outbound reports whether the session dials a phone number.
func (s *CallSession) Outbound() bool {
	return s.DestinationNumber != ""
}

// Direction is "outbound" or "inbound", used for logs and metrics.
func (s *CallSession) Direction() string {
	if s.Outbound() {
		return "outbound"
	}
	return "inbound"
}

// Transition moves the session to state to. Moves outside the lifecycle
// return ErrInvalidTransition and leave the session unchanged.
func (s *CallSession) Transition(to State, now time.Time) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}
	now = now.UTC()
	s.History = append(s.History, StateChange{From: s.State, To: to, At: now})
	s.State = to
	if to.Terminal() {
		s.EndedAt = &now
	}
	return nil
}

// Fail moves the session to failed and records cause.
func (s *CallSession) Fail(cause error, now time.Time) error {
	if err := s.Transition(StateFailed, now); err != nil {
		return err
	}
	if cause != nil {
		s.Error = cause.Error()
	}
	return nil
}

// RecordingActive reports whether a recording was started and not yet stopped.
func (s *CallSession) RecordingActive() bool {
	return s.RecordingID != "" && !s.RecordingStopped
}

// SetRecording attaches a started recording. A session holds at most one
// active recording.
func (s *CallSession) SetRecording(id, file string) error {
	if id == "" {
		return fmt.Errorf("calls: recording id required")
	}
	if s.RecordingActive() {
		return fmt.Errorf("%w: %s", ErrRecordingActive, s.RecordingID)
	}
	s.RecordingID = id
	s.RecordingFile = file
	s.RecordingStopped = false
	return nil
}

// MarkRecordingStopped records that stop was issued for the active recording.
func (s *CallSession) MarkRecordingStopped() {
	if s.RecordingID != "" {
		s.RecordingStopped = true
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *CallSession) Clone() *CallSession {
	if s == nil {
		return nil
	}
	out := *s
	out.History = append([]StateChange(nil), s.History...)
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	return &out
}
