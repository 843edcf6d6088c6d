package calls

import "errors"

var (
	// ErrInvalidTransition is returned for any state change outside the call lifecycle.
	ErrInvalidTransition = errors.New("calls: invalid state transition")
	// ErrSessionExists indicates a dispatch job for a room that already has a session.
	ErrSessionExists = errors.New("calls: session already exists")
	// ErrSessionNotFound indicates no session is stored for the room.
	ErrSessionNotFound = errors.New("calls: session not found")
	// ErrRecordingActive guards against a second recording on one session.
	ErrRecordingActive = errors.New("calls: recording already active")
	// ErrInvalidDestination indicates a phone number not in international format.
	ErrInvalidDestination = errors.New("calls: destination must be in international format")
	// ErrParticipantTimeout indicates an inbound session nobody joined.
	ErrParticipantTimeout = errors.New("calls: participant did not join")
)
