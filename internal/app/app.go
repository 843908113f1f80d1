// Package app wires configuration, logging, the Slack event source, and
// the triage pipeline into one supervised daemon.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/bmhenry/classy-slack-notifier/internal/classify"
	"github.com/bmhenry/classy-slack-notifier/internal/config"
	"github.com/bmhenry/classy-slack-notifier/internal/filter"
	"github.com/bmhenry/classy-slack-notifier/internal/notify"
	"github.com/bmhenry/classy-slack-notifier/internal/transport"
	slackadapter "github.com/bmhenry/classy-slack-notifier/internal/transport/slack"
	logx "github.com/bmhenry/classy-slack-notifier/pkg/logx"
)

// updateBuffer absorbs short event bursts while the pipeline is busy with a
// classifier round-trip. The adapter blocks (never drops) when it fills.
const updateBuffer = 64

type App struct {
	cfg  *config.Config
	logs *logx.Service
	log  logx.Logger

	source transport.Source
	cls    *classify.Classifier
	sink   *notify.Notifier

	pipeline *Pipeline
	updates  chan transport.Message
	loopWG   sync.WaitGroup
}

// New loads the config and builds every component except the filter
// engine, which needs the daemon's own user ID and is created in Start.
func New(cfgPath, logLevel string) (*App, error) {
	bootLog := logx.NewConsole("INFO")

	path, err := config.ResolvePath(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, bootLog.With(logx.String("comp", "config")))
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	logCfg := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
	// --log-level flag wins over the config file.
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	logSvc, log := logx.New(logCfg)
	log = log.With(logx.String("comp", "app"))
	log.Info("configuration loaded", logx.String("path", path))

	source, err := slackadapter.New(slackadapter.Config{
		BotToken: os.Getenv("SLACK_BOT_TOKEN"),
		AppToken: os.Getenv("SLACK_APP_TOKEN"),
	}, logSvc.Logger().With(logx.String("comp", "slack")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	cls := classify.New(classify.Config{
		Model:           cfg.Model,
		Endpoint:        cfg.OllamaURL,
		Timeout:         cfg.OllamaTimeout,
		SystemPrompt:    cfg.SystemPrompt,
		FallbackUrgency: cfg.UrgencyThreshold,
	}, logSvc.Logger().With(logx.String("comp", "classify")))

	sink := notify.New(notify.Config{
		ExpirySeconds: cfg.NotificationTimeout,
		RatePerSec:    cfg.NotifyRatePerSec,
	}, logSvc.Logger().With(logx.String("comp", "notify")))

	return &App{
		cfg:    cfg,
		logs:   logSvc,
		log:    log,
		source: source,
		cls:    cls,
		sink:   sink,
	}, nil
}

// Start resolves the daemon's identity, builds the filter engine around it,
// and begins consuming messages. Returns once the daemon is running.
func (a *App) Start(ctx context.Context) error {
	selfID, err := a.source.Identity(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	engine := filter.NewEngine(filter.Config{
		Rules:    a.cfg.Rules,
		Channels: a.cfg.Channels,
		Keywords: a.cfg.Keywords,
	}, selfID)
	a.pipeline = NewPipeline(engine, a.cls, a.sink, a.cfg.UrgencyThreshold, a.logs.Logger().With(logx.String("comp", "pipeline")))

	a.updates = make(chan transport.Message, updateBuffer)
	if err := a.source.Start(ctx, a.updates); err != nil {
		return err
	}

	a.loopWG.Add(1)
	go a.loop(ctx)

	// Best-effort readiness for systemd user services; a no-op elsewhere.
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready")
	}

	a.log.Info("daemon started", logx.Int("urgency_threshold", a.cfg.UrgencyThreshold))
	return nil
}

// loop consumes messages one at a time: each message runs to completion
// before the next is considered.
func (a *App) loop(ctx context.Context) {
	defer a.loopWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a.updates:
			if !ok {
				return
			}
			a.pipeline.Handle(ctx, msg)
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	err := a.source.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.loopWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	a.log.Info("daemon stopped")
	_ = a.logs.Close()
	return err
}
