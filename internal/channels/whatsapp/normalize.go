package whatsapp

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/wolfman30/career-coach/internal/errs"
	"github.com/wolfman30/career-coach/internal/events"
)

// Batch is the ordered events of one change, all addressed to the same
// business phone number.
type Batch struct {
	ChannelID string
	Events    []events.InboundEvent
}

// ParseNotification decodes a raw webhook body.
func ParseNotification(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, errs.Malformed("whatsapp: parse notification", err)
	}
	return n, nil
}

// Normalize enumerates every message and status unit in payload order.
// Notifications for other objects yield nothing. Units that cannot be decoded
// or classified become KindUnhandled events.
func Normalize(n Notification, now time.Time) []Batch {
	if n.Object != BusinessAccountObject {
		return nil
	}
	var batches []Batch
	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			channelID := change.Value.Metadata.PhoneNumberID
			names := contactNames(change.Value.Contacts)
			batch := Batch{ChannelID: channelID}
			for _, raw := range change.Value.Messages {
				evt := normalizeMessage(raw, channelID, now)
				evt.SenderName = names[evt.Sender]
				batch.Events = append(batch.Events, evt)
			}
			for _, raw := range change.Value.Statuses {
				batch.Events = append(batch.Events, normalizeStatus(raw, channelID, now))
			}
			if len(batch.Events) > 0 {
				batches = append(batches, batch)
			}
		}
	}
	return batches
}

func contactNames(contacts []Contact) map[string]string {
	if len(contacts) == 0 {
		return nil
	}
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.WaID != "" && c.Profile.Name != "" {
			names[c.WaID] = c.Profile.Name
		}
	}
	return names
}

func normalizeMessage(raw json.RawMessage, channelID string, now time.Time) events.InboundEvent {
	evt := events.InboundEvent{
		Channel:    events.ChannelWhatsApp,
		Kind:       events.KindUnhandled,
		ChannelID:  channelID,
		ReceivedAt: now,
		Raw:        raw,
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		evt.ProviderType = "undecodable"
		return evt
	}
	evt.Sender = msg.From
	evt.MessageID = msg.ID
	evt.ProviderType = msg.Type
	evt.ReceivedAt = parseTimestamp(msg.Timestamp, now)

	switch msg.Type {
	case "text":
		if msg.Text != nil {
			evt.Kind = events.KindText
			evt.BodyText = msg.Text.Body
		}
	case "interactive":
		if msg.Interactive == nil {
			break
		}
		switch {
		case msg.Interactive.ButtonReply != nil:
			evt.Kind = events.KindButtonReply
			evt.SelectionID = msg.Interactive.ButtonReply.ID
			evt.SelectionTitle = msg.Interactive.ButtonReply.Title
		case msg.Interactive.ListReply != nil:
			evt.Kind = events.KindMenuSelection
			evt.SelectionID = msg.Interactive.ListReply.ID
			evt.SelectionTitle = msg.Interactive.ListReply.Title
		}
	case "button":
		if msg.Button != nil {
			evt.Kind = events.KindButtonReply
			evt.SelectionID = msg.Button.Payload
			evt.SelectionTitle = msg.Button.Text
		}
	case "request_welcome":
		evt.Kind = events.KindSessionStart
	}
	return evt
}

func normalizeStatus(raw json.RawMessage, channelID string, now time.Time) events.InboundEvent {
	evt := events.InboundEvent{
		Channel:      events.ChannelWhatsApp,
		Kind:         events.KindStatusUpdate,
		ChannelID:    channelID,
		ProviderType: "status",
		ReceivedAt:   now,
		Raw:          raw,
	}
	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		evt.Kind = events.KindUnhandled
		evt.ProviderType = "undecodable"
		return evt
	}
	evt.MessageID = st.ID
	evt.Status = st.Status
	evt.Sender = st.RecipientID
	evt.ReceivedAt = parseTimestamp(st.Timestamp, now)
	return evt
}

func parseTimestamp(value string, fallback time.Time) time.Time {
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Unix(seconds, 0).UTC()
}
