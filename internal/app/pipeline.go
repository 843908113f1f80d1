package app

import (
	"context"

	"github.com/bmhenry/classy-slack-notifier/internal/classify"
	"github.com/bmhenry/classy-slack-notifier/internal/filter"
	"github.com/bmhenry/classy-slack-notifier/internal/transport"
	logx "github.com/bmhenry/classy-slack-notifier/pkg/logx"
)

// classifier and notifier are the pipeline's two collaborators, kept as
// small interfaces so tests can swap in fakes.
type classifier interface {
	Classify(ctx context.Context, msg transport.Message) classify.Classification
}

type notifier interface {
	Send(ctx context.Context, msg transport.Message, reason string, urgency int)
}

// Pipeline runs one message through filter -> (optional) classifier ->
// (optional) notification. No cross-message state: concurrent Handle calls
// would be safe, though the app feeds it sequentially.
type Pipeline struct {
	engine    *filter.Engine
	cls       classifier
	sink      notifier
	threshold int
	log       logx.Logger
}

func NewPipeline(engine *filter.Engine, cls classifier, sink notifier, threshold int, log logx.Logger) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{engine: engine, cls: cls, sink: sink, threshold: threshold, log: log}
}

// Handle processes a single message to completion. Side effects are limited
// to at most one notification.
func (p *Pipeline) Handle(ctx context.Context, msg transport.Message) {
	d := p.engine.Evaluate(msg)

	switch d.Action {
	case filter.ActionSkip:
		p.log.Debug("message skipped",
			logx.String("rule", d.Rule),
			logx.String("channel", msg.Channel),
			logx.String("sender", msg.Sender),
		)

	case filter.ActionForceNotify:
		p.sink.Send(ctx, msg, "Matched rule: "+d.Rule, 0)
		p.log.Info("force-notified",
			logx.String("rule", d.Rule),
			logx.String("channel", msg.Channel),
			logx.String("sender", msg.Sender),
		)

	case filter.ActionClassify:
		cl := p.cls.Classify(ctx, msg)
		p.log.Info("message classified",
			logx.String("rule", d.Rule),
			logx.String("channel", msg.Channel),
			logx.String("sender", msg.Sender),
			logx.Int("urgency", cl.Urgency),
			logx.String("reason", cl.Reason),
		)
		// Inclusive: a score exactly at the threshold notifies. The
		// classifier fallback relies on this to stay fail-open.
		if cl.Urgency >= p.threshold {
			p.sink.Send(ctx, msg, cl.Reason, cl.Urgency)
		}
	}
}
