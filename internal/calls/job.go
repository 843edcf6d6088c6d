package calls

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/career-coach/internal/events"
)

const (
	roomPrefix      = "coaching-"
	roomDigits      = 10
	callerIDPrefix  = "caller-"
	recordingPrefix = "coaching_call_"
	recordingStamp  = "20060102_150405"
)

// DispatchJob asks for one call session in a room. Metadata carries
// {"phone_number": "+E164"} for outbound calls and is empty otherwise.
type DispatchJob struct {
	ID        string    `json:"id"`
	RoomName  string    `json:"room_name"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type callMetadata struct {
	PhoneNumber string `json:"phone_number"`
}

// NewDispatchJob builds a job for room. An empty phone number yields an
// inbound job without metadata.
func NewDispatchJob(room, phoneNumber string, now time.Time) (DispatchJob, error) {
	job := DispatchJob{
		ID:        uuid.NewString(),
		RoomName:  room,
		CreatedAt: now.UTC(),
	}
	if phoneNumber == "" {
		return job, nil
	}
	if err := ValidateDestination(phoneNumber); err != nil {
		return DispatchJob{}, err
	}
	meta, err := json.Marshal(callMetadata{PhoneNumber: phoneNumber})
	if err != nil {
		return DispatchJob{}, fmt.Errorf("calls: encode job metadata: %w", err)
	}
	job.Metadata = string(meta)
	return job, nil
}

// ValidateDestination requires international format.
func ValidateDestination(number string) error {
	if !strings.HasPrefix(number, "+") || len(number) < 2 {
		return fmt.Errorf("%w: %q", ErrInvalidDestination, number)
	}
	return nil
}

// EventFromJob normalizes a dispatch job into a voice SessionStart event.
// Missing or unparseable metadata means an inbound session with no sender.
func EventFromJob(job DispatchJob) events.InboundEvent {
	evt := events.InboundEvent{
		Channel:      events.ChannelVoice,
		Kind:         events.KindSessionStart,
		MessageID:    job.ID,
		ChannelID:    job.RoomName,
		ProviderType: "agent_dispatch",
		ReceivedAt:   job.CreatedAt,
	}
	if job.Metadata == "" {
		return evt
	}
	evt.Raw = json.RawMessage(job.Metadata)
	var meta callMetadata
	if err := json.Unmarshal([]byte(job.Metadata), &meta); err != nil {
		evt.Raw = nil
		return evt
	}
	evt.Sender = strings.TrimSpace(meta.PhoneNumber)
	return evt
}

// NewRoomName returns coaching-<10 random digits>.
func NewRoomName() string {
	var b strings.Builder
	b.WriteString(roomPrefix)
	for range roomDigits {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// CallerIdentity is the room participant identity of the dialed party.
func CallerIdentity(phoneNumber string) string {
	return callerIDPrefix + phoneNumber
}

// RecordingFilename is <dir>/coaching_call_<phone>_<YYYYMMDD_HHMMSS>.<ext>.
func RecordingFilename(dir, phoneNumber, ext string, at time.Time) string {
	name := fmt.Sprintf("%s%s_%s.%s", recordingPrefix, phoneNumber, at.UTC().Format(recordingStamp), strings.TrimPrefix(ext, "."))
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

func encodeJob(job DispatchJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("calls: failed to encode dispatch job: %w", err)
	}
	return string(body), nil
}

func decodeJob(body string) (DispatchJob, error) {
	var job DispatchJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return DispatchJob{}, fmt.Errorf("calls: failed to decode dispatch job: %w", err)
	}
	if job.RoomName == "" {
		return DispatchJob{}, fmt.Errorf("calls: dispatch job %q has no room", job.ID)
	}
	return job, nil
}
