// Package slack adapts Slack's Socket Mode event stream to the
// transport.Source contract. It owns everything platform-specific:
// connection lifecycle, event acking, deduplication of redelivered events,
// and display-name resolution.
package slack

import (
	"context"
	"errors"
	"strings"
	"sync"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/bmhenry/classy-slack-notifier/internal/transport"
	logx "github.com/bmhenry/classy-slack-notifier/pkg/logx"
)

type Config struct {
	BotToken string // xoxb- token for the Web API
	AppToken string // xapp- token for Socket Mode
}

type Adapter struct {
	cfg Config
	log logx.Logger

	api  *slackapi.Client
	sock *socketmode.Client
	conv *converter

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

var _ transport.Source = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("slack bot token is empty")
	}
	if strings.TrimSpace(cfg.AppToken) == "" {
		return nil, errors.New("slack app token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	api := slackapi.New(cfg.BotToken, slackapi.OptionAppLevelToken(cfg.AppToken))
	return &Adapter{
		cfg:  cfg,
		log:  log,
		api:  api,
		sock: socketmode.New(api),
	}, nil
}

// Identity resolves the daemon's own Slack user ID via auth.test and
// prepares the event converter. Must be called once before Start.
func (a *Adapter) Identity(ctx context.Context) (string, error) {
	resp, err := a.api.AuthTestContext(ctx)
	if err != nil {
		return "", err
	}
	a.runMu.Lock()
	a.conv = newConverter(resp.UserID, &apiResolver{api: a.api}, a.log)
	a.runMu.Unlock()
	a.log.Info("identity resolved", logx.String("user_id", resp.UserID))
	return resp.UserID, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Message) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	if a.conv == nil {
		return errors.New("slack adapter: Start before Identity")
	}
	a.running = true

	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(2)

	go func() {
		defer a.runWG.Done()
		a.log.Info("socket mode loop starting")
		if err := a.sock.RunContext(rctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("socket mode loop exited", logx.Err(err))
		}
	}()

	go a.eventLoop(rctx, out)

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		a.log.Debug("slack stop called but not running")
		return nil
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.log.Info("slack adapter stopped")
		return nil
	case <-ctx.Done():
		a.log.Warn("slack adapter stop timed out")
		return ctx.Err()
	}
}

func (a *Adapter) eventLoop(ctx context.Context, out chan<- transport.Message) {
	defer a.runWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.sock.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnecting:
				a.log.Debug("connecting to slack")
			case socketmode.EventTypeConnected:
				a.log.Info("connected to slack")
			case socketmode.EventTypeConnectionError:
				a.log.Warn("slack connection error", logx.Any("data", evt.Data))
			case socketmode.EventTypeEventsAPI:
				apiEvt, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				// Ack before processing; redeliveries hit the dedup ring.
				if evt.Request != nil {
					a.sock.Ack(*evt.Request)
				}
				a.handleEvent(ctx, apiEvt, out)
			}
		}
	}
}

func (a *Adapter) handleEvent(ctx context.Context, apiEvt slackevents.EventsAPIEvent, out chan<- transport.Message) {
	if apiEvt.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := apiEvt.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	msg, ok := a.conv.convert(ctx, ev)
	if !ok {
		return
	}
	// Blocks when the pipeline is behind; events are never dropped here.
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

// apiResolver resolves display names through the Slack Web API.
type apiResolver struct {
	api *slackapi.Client
}

func (r *apiResolver) ChannelName(ctx context.Context, channelID string) (string, error) {
	info, err := r.api.GetConversationInfoContext(ctx, &slackapi.GetConversationInfoInput{
		ChannelID: channelID,
	})
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

func (r *apiResolver) UserName(ctx context.Context, userID string) (string, error) {
	info, err := r.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", err
	}
	switch {
	case info.Profile.DisplayName != "":
		return info.Profile.DisplayName, nil
	case info.Profile.RealName != "":
		return info.Profile.RealName, nil
	default:
		return info.RealName, nil
	}
}
