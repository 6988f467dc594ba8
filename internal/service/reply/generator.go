package reply

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/heartwise/backend/internal/analysis/emotion"
)

var (
	ErrCrisisCategory  = errors.New("crisis category has no generated reply")
	ErrUnknownCategory = errors.New("unknown reply category")
)

// CrisisScript is the fixed escalation text. It is never generated or varied.
const CrisisScript = "I'm really sorry you're feeling this way, and I'm glad you told me. " +
	"If you are in immediate danger, please call your local emergency number now. " +
	"In the U.S. you can call or text 988 to reach the Suicide & Crisis Lifeline, any time of day."

// Greeting seeds every new session.
const Greeting = "Hello! I'm your HeartWise AI coach. I'm here to support you with relationship guidance, " +
	"emotional intelligence insights, and a safe space to explore your feelings. How can I help you today?"

var fixedReplies = map[emotion.Category]string{
	emotion.Angry: "I can hear how intense that feels, and it's valid to feel angry. " +
		"Can you tell me what happened in one short sentence?",
	emotion.Sad: "I'm really sorry you're feeling that way. Would you like to share more about what led to this feeling, " +
		"or try a short grounding exercise?",
	emotion.Conflict: "That sounds painful. I'm here with you. Can you describe what the most difficult moment was?",
}

var defaultPool = []string{
	"Thanks for sharing. I hear you. Can you say a little more about that, or tell me what would feel helpful right now?",
	"Thank you for sharing that with me. I understand this must be important to you. Can you tell me more about how this situation is affecting you emotionally?",
	"It sounds like you're dealing with a challenging situation. Let's explore some strategies that might help you navigate this better.",
	"I appreciate your openness. Emotional awareness is the first step toward positive change. What specific outcome are you hoping for?",
	"That's a great observation about yourself. Self-reflection is key to emotional growth. How does recognizing this make you feel?",
	"I hear you. It's completely normal to feel that way. Let's work together to find some constructive approaches to this situation.",
}

// DefaultPool returns a copy of the acknowledgement templates used for the
// default category.
func DefaultPool() []string {
	return append([]string(nil), defaultPool...)
}

// FixedReply returns the canned reply for angry, sad and conflict.
func FixedReply(category emotion.Category) (string, bool) {
	text, ok := fixedReplies[category]
	return text, ok
}

// Generator turns a non-crisis category into assistant text.
type Generator struct {
	picker Picker
	pool   []string
}

// NewGenerator builds a generator. A nil picker selects randomly.
func NewGenerator(picker Picker) *Generator {
	if picker == nil {
		picker = RandomPicker{}
	}
	return &Generator{picker: picker, pool: DefaultPool()}
}

// Reply returns the reply for category. Crisis is rejected: the engine owns
// that branch and must use CrisisScript.
func (g *Generator) Reply(category emotion.Category) (string, error) {
	switch category {
	case emotion.Crisis:
		return "", ErrCrisisCategory
	case emotion.Default:
		text := strings.TrimSpace(g.picker.Pick(g.pool))
		if text == "" {
			// a misbehaving picker must not produce an empty assistant turn
			text = g.pool[0]
		}
		return text, nil
	}

	text, ok := fixedReplies[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return text, nil
}
