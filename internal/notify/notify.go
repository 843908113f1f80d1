// Package notify renders triage decisions as desktop notifications.
//
// Delivery goes through notify-send (libnotify), fire-and-forget: a failed
// send is logged and dropped, never propagated. A token bucket smooths
// bursts but never drops a notification.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/bmhenry/classy-slack-notifier/internal/transport"
	logx "github.com/bmhenry/classy-slack-notifier/pkg/logx"
)

// maxBodyChars bounds the message-text portion of the notification body.
const maxBodyChars = 200

type Config struct {
	// ExpirySeconds is the notification expiry, passed to notify-send in
	// milliseconds.
	ExpirySeconds int

	// RatePerSec smooths notification bursts (token bucket, burst equal to
	// the rate). 0 disables smoothing.
	RatePerSec int
}

// runner executes the external notification command. Injectable for tests.
type runner func(ctx context.Context, name string, args ...string) error

type Notifier struct {
	cfg     Config
	log     logx.Logger
	limiter *rate.Limiter

	mu  sync.Mutex
	run runner
}

func New(cfg Config, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ExpirySeconds <= 0 {
		cfg.ExpirySeconds = 10
	}
	n := &Notifier{
		cfg: cfg,
		log: log,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
	if cfg.RatePerSec > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return n
}

// SetRunner replaces the command runner. Test hook.
func (n *Notifier) SetRunner(run func(ctx context.Context, name string, args ...string) error) {
	n.mu.Lock()
	n.run = run
	n.mu.Unlock()
}

// Send emits one desktop notification for msg. urgency is the 1-5 score
// from classification, or 0 on the force-notify path (no score). Errors are
// absorbed: the sink is best-effort by contract.
func (n *Notifier) Send(ctx context.Context, msg transport.Message, reason string, urgency int) {
	if n.limiter != nil {
		// The send still goes out when the context is cut short mid-wait.
		if err := n.limiter.Wait(ctx); err != nil {
			n.log.Debug("rate wait cut short", logx.Err(err))
		}
	}

	title := titleFor(msg)
	body := truncate(msg.Text, maxBodyChars) + "\n\n" + reason
	level := urgencyLevel(urgency)
	ms := n.cfg.ExpirySeconds * 1000

	n.mu.Lock()
	run := n.run
	n.mu.Unlock()

	err := run(ctx, "notify-send",
		"--urgency="+level,
		fmt.Sprintf("--expire-time=%d", ms),
		title,
		body,
	)
	if err != nil {
		n.log.Warn("notify-send failed", logx.String("title", title), logx.Err(err))
		return
	}

	n.log.Info("notification sent",
		logx.String("title", title),
		logx.String("urgency", level),
		logx.Int("expire_ms", ms),
	)
}

func titleFor(msg transport.Message) string {
	if msg.IsDM {
		return "Slack: DM from @" + msg.Sender
	}
	return "Slack: #" + msg.Channel
}

// urgencyLevel maps a 1-5 score to a libnotify urgency level. 0 means no
// score (force-notify path) and maps to normal.
func urgencyLevel(urgency int) string {
	switch {
	case urgency == 0:
		return "normal"
	case urgency <= 2:
		return "low"
	case urgency <= 3:
		return "normal"
	default:
		return "critical"
	}
}

// truncate keeps at most max characters, never splitting a rune.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
