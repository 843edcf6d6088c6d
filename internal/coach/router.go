package coach

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/wolfman30/career-coach/internal/events"
)

var (
	testKeywords     = []string{"test", "ping", "webhook"}
	greetingKeywords = []string{"hi", "hello", "hey", "hii", "start"}
	menuKeywords     = []string{"menu", "help"}
	careerKeywords   = []string{"job", "career", "work", "skills", "promotion", "boss"}
)

// topicRule maps substrings to a topic. Rows are checked in order and the
// first hit wins, so "resume and interview" resolves to resume.
type topicRule struct {
	topic    Topic
	keywords []string
}

var topicTable = []topicRule{
	{TopicResume, []string{"resume"}},
	{TopicInterview, []string{"interview"}},
	{TopicSalary, []string{"salary", "negotiat"}},
}

// selectionTopics maps button and list ids to topics.
var selectionTopics = map[string]Topic{
	"goals":     TopicGoals,
	"resume":    TopicResume,
	"interview": TopicInterview,
	"salary":    TopicSalary,
	"jobs":      TopicJobs,
}

const promptPreviewRunes = 50

// Router decides what to do with an inbound event. Route has no side effects
// and handles every event.
//
// Keyword checks use substring containment on purpose: "job" matches "jobs",
// and "boss" also matches "embossed". That false positive is accepted.
type Router struct {
	mode GenerationMode
}

// NewRouter returns a router that fulfils career questions in mode.
func NewRouter(mode GenerationMode) *Router {
	if mode != ModeAI {
		mode = ModeCanned
	}
	return &Router{mode: mode}
}

// Mode reports how GenerateReply actions will be fulfilled.
func (r *Router) Mode() GenerationMode {
	return r.mode
}

// Route maps evt to an Action. The first matching rule wins.
func (r *Router) Route(evt events.InboundEvent) Action {
	switch evt.Kind {
	case events.KindStatusUpdate:
		return Action{Kind: ActionNoOp, Reason: "status_update"}
	case events.KindUnhandled:
		return Action{Kind: ActionNoOp, Reason: "unhandled_" + evt.ProviderType}
	case events.KindSessionStart:
		if evt.Channel == events.ChannelVoice {
			return Action{Kind: ActionStartCall, Destination: evt.Sender}
		}
		return welcomeAction(evt)
	case events.KindButtonReply, events.KindMenuSelection:
		return contextualAdvice(evt.SelectionID)
	}

	lower := strings.ToLower(evt.BodyText)
	trimmed := strings.TrimSpace(lower)

	if slices.Contains(testKeywords, trimmed) {
		return Action{
			Kind: ActionStaticReply,
			Text: fmt.Sprintf(webhookConfirmationTemplate, evt.BodyText, displayName(evt.SenderName)),
		}
	}
	if slices.Contains(greetingKeywords, trimmed) {
		return welcomeAction(evt)
	}
	if slices.Contains(menuKeywords, trimmed) {
		return Action{
			Kind:       ActionTopicMenu,
			Text:       menuText,
			Options:    menuOptions,
			MenuButton: menuButton,
			MenuTitle:  menuTitle,
		}
	}
	for _, rule := range topicTable {
		if containsAny(lower, rule.keywords) {
			return Action{Kind: ActionStaticAdvice, Topic: rule.topic, Text: topicAdvice[rule.topic]}
		}
	}
	if containsAny(lower, careerKeywords) {
		return Action{
			Kind:   ActionGenerateReply,
			Topic:  TopicGeneral,
			Prompt: evt.BodyText,
			Mode:   r.mode,
			Text:   CannedCareerAdvice(evt.BodyText),
		}
	}
	return Action{Kind: ActionStaticReply, Text: overviewText}
}

// CannedCareerAdvice is the general advice reply that echoes the user's
// question. It is also the fallback when AI generation fails.
func CannedCareerAdvice(userText string) string {
	preview := []rune(userText)
	if len(preview) > promptPreviewRunes {
		preview = preview[:promptPreviewRunes]
	}
	return fmt.Sprintf(careerAdviceTemplate, string(preview))
}

// WelcomeVariant returns the welcome text for key. The same key always
// selects the same text so redelivered messages get identical replies.
func WelcomeVariant(key string) string {
	return welcomeMessages[xxhash.Sum64String(key)%uint64(len(welcomeMessages))]
}

// Greeting is the welcome reply text: a salutation for name followed by the
// variant selected by key.
func Greeting(name, key string) string {
	return fmt.Sprintf(greetingTemplate, displayName(name), WelcomeVariant(key))
}

func displayName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return defaultName
}

func welcomeAction(evt events.InboundEvent) Action {
	key := evt.MessageID
	if key == "" {
		key = evt.Sender + "|" + evt.BodyText
	}
	return Action{
		Kind:    ActionWelcomeReply,
		Text:    Greeting(evt.SenderName, key),
		Options: welcomeOptions,
	}
}

func contextualAdvice(selectionID string) Action {
	topic, ok := selectionTopics[strings.ToLower(strings.TrimSpace(selectionID))]
	if !ok {
		return Action{Kind: ActionContextualAdvice, Topic: TopicUnknown, Text: unknownSelectionText}
	}
	text, ok := selectionAdvice[topic]
	if !ok {
		text = topicAdvice[topic]
	}
	return Action{Kind: ActionContextualAdvice, Topic: topic, Text: text}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
