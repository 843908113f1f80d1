package filter

import (
	"testing"

	"github.com/bmhenry/classy-slack-notifier/internal/transport"
)

const selfID = "U_SELF"

func defaultEngine(t *testing.T, keywords ...KeywordRule) *Engine {
	t.Helper()
	return NewEngine(Config{
		Rules:    DefaultRuleActions(),
		Channels: map[string]Action{},
		Keywords: keywords,
	}, selfID)
}

func mustKeyword(t *testing.T, pattern string, action Action) KeywordRule {
	t.Helper()
	kw, err := NewKeywordRule(pattern, action)
	if err != nil {
		t.Fatalf("NewKeywordRule(%q) error: %v", pattern, err)
	}
	return kw
}

func TestEvaluateSelfWinsRegardless(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t, mustKeyword(t, "production down", ActionForceNotify))

	// Every other signal set, yet "self" must decide.
	msg := transport.Message{
		Channel:   "incidents",
		ChannelID: "C1",
		SenderID:  selfID,
		Text:      "production down",
		IsDM:      true,
		IsMention: true,
	}
	d := e.Evaluate(msg)
	if d.Rule != "self" {
		t.Fatalf("Rule = %q, want self", d.Rule)
	}
	if d.Action != ActionSkip {
		t.Fatalf("Action = %v, want skip", d.Action)
	}
}

func TestEvaluateBotsBeforeKeywords(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t, mustKeyword(t, "deploy", ActionForceNotify))

	d := e.Evaluate(transport.Message{
		ChannelID: "C1",
		SenderID:  "B1",
		Text:      "deploy finished",
		IsBot:     true,
	})
	if d.Rule != "bots" {
		t.Fatalf("Rule = %q, want bots", d.Rule)
	}
}

func TestEvaluateKeywordSubstringCaseInsensitive(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t, mustKeyword(t, "Production Down", ActionForceNotify))

	d := e.Evaluate(transport.Message{
		ChannelID: "C1",
		SenderID:  "U1",
		Text:      "heads up: PRODUCTION DOWN in eu-west",
	})
	if d.Rule != "keyword:Production Down" {
		t.Fatalf("Rule = %q, want keyword:Production Down", d.Rule)
	}
	if d.Action != ActionForceNotify {
		t.Fatalf("Action = %v, want force_notify", d.Action)
	}
}

func TestEvaluateKeywordRegexCaseInsensitive(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t, mustKeyword(t, `regex:err(or)?\s+rate`, ActionForceNotify))

	d := e.Evaluate(transport.Message{
		ChannelID: "C1",
		SenderID:  "U1",
		Text:      "ERROR Rate is spiking",
	})
	if d.Rule != `keyword:regex:err(or)?\s+rate` {
		t.Fatalf("Rule = %q", d.Rule)
	}
}

func TestEvaluateKeywordFirstMatchWins(t *testing.T) {
	t.Parallel()
	// Identical pattern, conflicting actions: list order decides.
	e := defaultEngine(t,
		mustKeyword(t, "standup", ActionSkip),
		mustKeyword(t, "standup", ActionForceNotify),
	)

	d := e.Evaluate(transport.Message{
		ChannelID: "C1",
		SenderID:  "U1",
		Text:      "standup in 5",
	})
	if d.Action != ActionSkip {
		t.Fatalf("Action = %v, want skip (first entry)", d.Action)
	}
}

func TestEvaluateKeywordOverridesDM(t *testing.T) {
	t.Parallel()
	// A skip keyword silences even a DM, which would otherwise force-notify.
	e := defaultEngine(t, mustKeyword(t, "lunch", ActionSkip))

	d := e.Evaluate(transport.Message{
		ChannelID: "D1",
		SenderID:  "U1",
		Text:      "lunch?",
		IsDM:      true,
	})
	if d.Rule != "keyword:lunch" {
		t.Fatalf("Rule = %q, want keyword:lunch", d.Rule)
	}
	if d.Action != ActionSkip {
		t.Fatalf("Action = %v, want skip", d.Action)
	}
}

func TestEvaluateMentionBeatsDM(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t)

	d := e.Evaluate(transport.Message{
		ChannelID: "D1",
		SenderID:  "U1",
		Text:      "ping",
		IsDM:      true,
		IsMention: true,
	})
	if d.Rule != "mentions" {
		t.Fatalf("Rule = %q, want mentions", d.Rule)
	}
}

func TestEvaluateDM(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t)

	d := e.Evaluate(transport.Message{
		ChannelID: "D1",
		SenderID:  "U1",
		Text:      "got a minute?",
		IsDM:      true,
	})
	if d.Rule != "dms" {
		t.Fatalf("Rule = %q, want dms", d.Rule)
	}
	if d.Action != ActionForceNotify {
		t.Fatalf("Action = %v, want force_notify", d.Action)
	}
}

func TestEvaluateChannelOverride(t *testing.T) {
	t.Parallel()
	e := NewEngine(Config{
		Rules:    DefaultRuleActions(),
		Channels: map[string]Action{"incidents": ActionForceNotify},
	}, selfID)

	d := e.Evaluate(transport.Message{
		Channel:   "incidents",
		ChannelID: "C1",
		SenderID:  "U1",
		Text:      "all quiet",
	})
	if d.Rule != "channel:incidents" {
		t.Fatalf("Rule = %q, want channel:incidents", d.Rule)
	}
	if d.Action != ActionForceNotify {
		t.Fatalf("Action = %v, want force_notify", d.Action)
	}
}

func TestEvaluateUnknownChannelFallsToDefault(t *testing.T) {
	t.Parallel()
	e := NewEngine(Config{
		Rules:    DefaultRuleActions(),
		Channels: map[string]Action{"incidents": ActionForceNotify},
	}, selfID)

	d := e.Evaluate(transport.Message{
		Channel:   "random",
		ChannelID: "C2",
		SenderID:  "U1",
		Text:      "whatever",
	})
	if d.Rule != "default" {
		t.Fatalf("Rule = %q, want default", d.Rule)
	}
	if d.Action != ActionClassify {
		t.Fatalf("Action = %v, want classify", d.Action)
	}
}

func TestEvaluateEmptyKeywordList(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t)

	d := e.Evaluate(transport.Message{
		Channel:   "general",
		ChannelID: "C1",
		SenderID:  "U1",
		Text:      "morning",
	})
	if d.Rule != "default" {
		t.Fatalf("Rule = %q, want default", d.Rule)
	}
}

func TestParseAction(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    Action
		wantErr bool
	}{
		{raw: "skip", want: ActionSkip},
		{raw: "classify", want: ActionClassify},
		{raw: "force_notify", want: ActionForceNotify},
		{raw: "notify", wantErr: true},
		{raw: "SKIP", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseAction(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAction(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseAction(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestActionString(t *testing.T) {
	t.Parallel()
	if got := ActionForceNotify.String(); got != "force_notify" {
		t.Fatalf("String() = %q", got)
	}
}

func TestNewKeywordRuleInvalidRegex(t *testing.T) {
	t.Parallel()
	if _, err := NewKeywordRule("regex:(unclosed", ActionSkip); err == nil {
		t.Fatal("expected compile error")
	}
}
