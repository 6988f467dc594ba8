package emotion

import (
	"regexp"
	"strings"
)

// Category is the reply register chosen for one user utterance.
type Category string

const (
	Crisis   Category = "crisis"
	Angry    Category = "angry"
	Sad      Category = "sad"
	Conflict Category = "conflict"
	Default  Category = "default"
)

// Categories lists every category in precedence order.
func Categories() []Category {
	return []Category{Crisis, Angry, Sad, Conflict, Default}
}

// Rule maps a case-insensitive pattern to a category.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
}

// Matches reports whether the rule fires for an already lower-cased text.
func (r Rule) Matches(normalized string) bool {
	return r.Pattern != nil && r.Pattern.MatchString(normalized)
}

func rule(category Category, pattern string) Rule {
	return Rule{Category: category, Pattern: regexp.MustCompile(`(?i)` + pattern)}
}

// defaultRules is evaluated top to bottom; the first hit wins. Crisis rules
// must stay first.
var defaultRules = []Rule{
	rule(Crisis, `suicid`),
	rule(Crisis, `kill(ing)? myself`),
	rule(Crisis, `(hurt|harm)(ing)? myself`),
	rule(Crisis, `end(ing)? my (own )?life`),
	rule(Crisis, `take my (own )?life`),
	rule(Crisis, `want(ed)? to die`),
	rule(Crisis, `self[- ]?harm`),

	rule(Angry, `angry`),
	rule(Angry, `\bmad\b`),
	rule(Angry, `frustrat`),
	rule(Angry, `furious`),

	rule(Sad, `sad`),
	rule(Sad, `lonely`),
	rule(Sad, `depress`),
	rule(Sad, `tear`),
	rule(Sad, `cry`),

	rule(Conflict, `fight`),
	rule(Conflict, `argu`),
	rule(Conflict, `br(eak|oke)[- ]?up`),
	rule(Conflict, `cheat`),
}

// Rules returns a copy of the built-in rule list.
func Rules() []Rule {
	return append([]Rule(nil), defaultRules...)
}

// Classifier assigns exactly one Category per utterance.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over an ordered rule list. Callers that
// add rules are responsible for keeping crisis rules ahead of the others.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

var builtin = NewClassifier(defaultRules)

// Classify runs the built-in rule set.
func Classify(text string) Category {
	return builtin.Classify(text)
}

// Classify returns the category of the first matching rule, or Default.
func (c *Classifier) Classify(text string) Category {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Default
	}

	for _, r := range c.rules {
		if r.Matches(normalized) {
			return r.Category
		}
	}
	return Default
}

// IsCrisis is shorthand for Classify(text) == Crisis.
func (c *Classifier) IsCrisis(text string) bool {
	return c.Classify(text) == Crisis
}
