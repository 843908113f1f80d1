// Package filter decides, per message, whether to notify, stay silent, or
// defer to the urgency classifier.
//
// The engine is pure and total: Evaluate never fails and has no side
// effects, so it can be exercised exhaustively without any I/O. The rule
// sequence is encoded as data (an ordered slice of named checks) so the
// precedence contract is visible in one place.
package filter

import (
	"github.com/bmhenry/classy-slack-notifier/internal/transport"
)

// RuleActions holds the actions for the five named default rules.
type RuleActions struct {
	Self     Action
	Bots     Action
	Mentions Action
	DMs      Action
	Default  Action
}

// DefaultRuleActions mirrors the shipped defaults: suppress the daemon's
// own traffic and bot chatter, always surface mentions and DMs, classify
// everything else.
func DefaultRuleActions() RuleActions {
	return RuleActions{
		Self:     ActionSkip,
		Bots:     ActionSkip,
		Mentions: ActionForceNotify,
		DMs:      ActionForceNotify,
		Default:  ActionClassify,
	}
}

// Config is the engine's rule set, immutable for the process lifetime.
type Config struct {
	Rules    RuleActions
	Channels map[string]Action // channel display name -> action
	Keywords []KeywordRule     // ordered, first match wins
}

type check struct {
	name string
	run  func(m transport.Message) (Decision, bool)
}

// Engine evaluates messages against a fixed, ordered rule sequence.
type Engine struct {
	cfg    Config
	selfID string
	checks []check
}

// NewEngine builds an engine for the given rule set and the daemon's own
// user ID (used by the "self" rule).
func NewEngine(cfg Config, selfID string) *Engine {
	e := &Engine{cfg: cfg, selfID: selfID}

	// Evaluation order, first match wins. Self and bot suppression come
	// first, keywords outrank the contextual signals, and the contextual
	// signals run in decreasing specificity.
	e.checks = []check{
		{"self", e.checkSelf},
		{"bots", e.checkBots},
		{"keywords", e.checkKeywords},
		{"mentions", e.checkMentions},
		{"dms", e.checkDMs},
		{"channels", e.checkChannels},
		{"default", e.checkDefault},
	}
	return e
}

// Evaluate returns the decision for msg. It always returns a value: the
// terminal "default" check matches every message.
func (e *Engine) Evaluate(msg transport.Message) Decision {
	for _, c := range e.checks {
		if d, ok := c.run(msg); ok {
			return d
		}
	}
	return Decision{Action: e.cfg.Rules.Default, Rule: "default"}
}

func (e *Engine) checkSelf(m transport.Message) (Decision, bool) {
	if m.SenderID != e.selfID {
		return Decision{}, false
	}
	return Decision{Action: e.cfg.Rules.Self, Rule: "self"}, true
}

func (e *Engine) checkBots(m transport.Message) (Decision, bool) {
	if !m.IsBot {
		return Decision{}, false
	}
	return Decision{Action: e.cfg.Rules.Bots, Rule: "bots"}, true
}

func (e *Engine) checkKeywords(m transport.Message) (Decision, bool) {
	for _, kw := range e.cfg.Keywords {
		if kw.Matches(m.Text) {
			return Decision{Action: kw.Action, Rule: "keyword:" + kw.Pattern}, true
		}
	}
	return Decision{}, false
}

func (e *Engine) checkMentions(m transport.Message) (Decision, bool) {
	if !m.IsMention {
		return Decision{}, false
	}
	return Decision{Action: e.cfg.Rules.Mentions, Rule: "mentions"}, true
}

func (e *Engine) checkDMs(m transport.Message) (Decision, bool) {
	if !m.IsDM {
		return Decision{}, false
	}
	return Decision{Action: e.cfg.Rules.DMs, Rule: "dms"}, true
}

func (e *Engine) checkChannels(m transport.Message) (Decision, bool) {
	action, ok := e.cfg.Channels[m.Channel]
	if !ok {
		return Decision{}, false
	}
	return Decision{Action: action, Rule: "channel:" + m.Channel}, true
}

func (e *Engine) checkDefault(transport.Message) (Decision, bool) {
	return Decision{Action: e.cfg.Rules.Default, Rule: "default"}, true
}
