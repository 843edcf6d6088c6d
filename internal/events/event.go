package events

import (
	"encoding/json"
	"time"
)

// Channel identifies where an event came from.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelVoice    Channel = "voice"
)

// Kind is the single classification every InboundEvent carries.
type Kind string

const (
	KindText          Kind = "text"
	KindButtonReply   Kind = "button_reply"
	KindMenuSelection Kind = "menu_selection"
	KindStatusUpdate  Kind = "status_update"
	KindSessionStart  Kind = "session_start"
	KindUnhandled     Kind = "unhandled"
)

// InboundEvent is the provider independent form of one message or status unit.
// Normalizers build it once; everything downstream treats it as a value.
type InboundEvent struct {
	Channel   Channel
	Kind      Kind
	Sender    string
	MessageID string
	ChannelID string

	// SenderName is the profile name the provider attached, if any.
	SenderName string

	BodyText       string
	SelectionID    string
	SelectionTitle string

	// Status is the delivery state for KindStatusUpdate.
	Status string
	// ProviderType is the provider's own type name, kept for logs.
	ProviderType string
	ReceivedAt   time.Time

	// Raw is the provider payload for this unit. Debugging only.
	Raw json.RawMessage
}

// DedupeKey identifies the unit for redelivery checks.
func (e InboundEvent) DedupeKey() string {
	if e.MessageID == "" {
		return ""
	}
	if e.Kind == KindStatusUpdate {
		return e.MessageID + ":" + e.Status
	}
	return e.MessageID
}

// ReplyKind is the shape of an outbound message.
type ReplyKind string

const (
	ReplyText       ReplyKind = "text"
	ReplyButtonMenu ReplyKind = "button_menu"
	ReplyListMenu   ReplyKind = "list_menu"
)

// Option is one selectable entry of a button or list menu.
type Option struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// OutboundReply is one message to send back through a channel.
type OutboundReply struct {
	Target    string    `json:"target"`
	ChannelID string    `json:"channel_id,omitempty"`
	Kind      ReplyKind `json:"kind"`
	Text      string    `json:"text"`
	Options   []Option  `json:"options,omitempty"`
	// MenuButton labels the button that opens a list menu.
	MenuButton string `json:"menu_button,omitempty"`
	// MenuTitle heads the single section of a list menu.
	MenuTitle string `json:"menu_title,omitempty"`
}
