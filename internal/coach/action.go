package coach

import "github.com/wolfman30/career-coach/internal/events"

// ActionKind names what the dispatcher should do with an event.
type ActionKind string

const (
	ActionStaticReply      ActionKind = "static_reply"
	ActionWelcomeReply     ActionKind = "welcome_reply"
	ActionTopicMenu        ActionKind = "topic_menu"
	ActionContextualAdvice ActionKind = "contextual_advice"
	ActionStaticAdvice     ActionKind = "static_advice"
	ActionGenerateReply    ActionKind = "generate_reply"
	ActionStartCall        ActionKind = "start_call"
	ActionNoOp             ActionKind = "no_op"
)

// GenerationMode selects how GenerateReply actions are fulfilled.
type GenerationMode string

const (
	ModeCanned GenerationMode = "canned"
	ModeAI     GenerationMode = "ai"
)

// Topic is a coaching subject.
type Topic string

const (
	TopicGoals     Topic = "goals"
	TopicResume    Topic = "resume"
	TopicInterview Topic = "interview"
	TopicSalary    Topic = "salary"
	TopicJobs      Topic = "jobs"
	TopicGeneral   Topic = "general"
	TopicUnknown   Topic = "unknown"
)

// Action is the routing decision for one event. Text holds the complete
// reply for canned actions and the fallback reply for GenerateReply.
type Action struct {
	Kind    ActionKind
	Text    string
	Options []events.Option

	MenuButton string
	MenuTitle  string

	Topic Topic

	// Prompt is the raw user text for GenerateReply.
	Prompt string
	Mode   GenerationMode

	// Destination is the number to dial for StartCall. Empty means an
	// inbound session.
	Destination string

	// Reason explains a NoOp.
	Reason string
}

// Replies reports whether the action produces an outbound message.
func (a Action) Replies() bool {
	switch a.Kind {
	case ActionStartCall, ActionNoOp:
		return false
	default:
		return true
	}
}

// Reply builds the outbound message for target. ok is false for actions that
// do not reply.
func (a Action) Reply(target, channelID string) (reply events.OutboundReply, ok bool) {
	if !a.Replies() {
		return events.OutboundReply{}, false
	}
	reply = events.OutboundReply{
		Target:    target,
		ChannelID: channelID,
		Kind:      events.ReplyText,
		Text:      a.Text,
	}
	switch a.Kind {
	case ActionWelcomeReply:
		reply.Kind = events.ReplyButtonMenu
		reply.Options = append([]events.Option(nil), a.Options...)
	case ActionTopicMenu:
		reply.Kind = events.ReplyListMenu
		reply.Options = append([]events.Option(nil), a.Options...)
		reply.MenuButton = a.MenuButton
		reply.MenuTitle = a.MenuTitle
	}
	return reply, true
}
