package slack

import (
	"context"
	"strings"

	"github.com/slack-go/slack/slackevents"

	"github.com/bmhenry/classy-slack-notifier/internal/transport"
	logx "github.com/bmhenry/classy-slack-notifier/pkg/logx"
)

// dedupCapacity bounds the recency ring of seen event identifiers.
const dedupCapacity = 1000

// Event subtypes that carry no useful message content.
var ignoredSubtypes = map[string]struct{}{
	"channel_join":      {},
	"channel_leave":     {},
	"channel_topic":     {},
	"channel_purpose":   {},
	"channel_name":      {},
	"channel_archive":   {},
	"channel_unarchive": {},
	"group_join":        {},
	"group_leave":       {},
	"group_topic":       {},
	"group_purpose":     {},
	"group_name":        {},
	"group_archive":     {},
	"group_unarchive":   {},
}

// nameResolver looks up display names for platform identifiers. Satisfied
// by the Slack Web API in production and by fakes in tests.
type nameResolver interface {
	ChannelName(ctx context.Context, channelID string) (string, error)
	UserName(ctx context.Context, userID string) (string, error)
}

// converter turns raw Slack message events into transport.Message values,
// owning deduplication and lazy display-name caching. Only touched from the
// adapter's event loop; no locking.
type converter struct {
	selfID string
	res    nameResolver
	log    logx.Logger

	seen     *recencyRing
	channels map[string]string // channel ID -> display name, never evicted
	users    map[string]string // user ID -> display name, never evicted
}

func newConverter(selfID string, res nameResolver, log logx.Logger) *converter {
	return &converter{
		selfID:   selfID,
		res:      res,
		log:      log,
		seen:     newRecencyRing(dedupCapacity),
		channels: map[string]string{},
		users:    map[string]string{},
	}
}

// convert builds a pipeline-ready Message from a raw event. The second
// return is false when the event should be silently dropped: duplicate,
// administrative subtype, or missing required identifiers. Drops are never
// errors.
func (c *converter) convert(ctx context.Context, ev *slackevents.MessageEvent) (transport.Message, bool) {
	eventID := ev.ClientMsgID
	if eventID == "" {
		eventID = ev.TimeStamp
	}
	if eventID == "" {
		c.log.Debug("event has no client_msg_id or ts, dropping")
		return transport.Message{}, false
	}
	if c.seen.Contains(eventID) {
		c.log.Debug("duplicate event dropped", logx.String("event_id", eventID))
		return transport.Message{}, false
	}
	c.seen.Add(eventID)

	if _, ok := ignoredSubtypes[ev.SubType]; ok {
		c.log.Debug("ignored subtype dropped", logx.String("subtype", ev.SubType))
		return transport.Message{}, false
	}

	if ev.Channel == "" {
		c.log.Debug("event missing channel, dropping")
		return transport.Message{}, false
	}

	// Bot messages may lack a user field; acceptable only when the event
	// still identifies itself as bot traffic.
	senderID := ev.User
	isBot := ev.BotID != "" || ev.SubType == "bot_message"
	if senderID == "" {
		if !isBot {
			c.log.Debug("event missing user, dropping")
			return transport.Message{}, false
		}
		senderID = ev.BotID
		if senderID == "" {
			senderID = "unknown_bot"
		}
	}

	isDM := ev.ChannelType == "im" || ev.ChannelType == "mpim"

	return transport.Message{
		Channel:   c.channelName(ctx, ev.Channel, isDM),
		ChannelID: ev.Channel,
		Sender:    c.userName(ctx, senderID),
		SenderID:  senderID,
		Text:      ev.Text,
		ThreadTS:  ev.ThreadTimeStamp,
		IsDM:      isDM,
		IsMention: strings.Contains(ev.Text, "<@"+c.selfID+">"),
		IsBot:     isBot,
	}, true
}

func (c *converter) channelName(ctx context.Context, channelID string, isDM bool) string {
	if name, ok := c.channels[channelID]; ok {
		return name
	}

	// DMs have no meaningful channel name; short-circuit.
	if isDM {
		c.channels[channelID] = "DM"
		return "DM"
	}

	name, err := c.res.ChannelName(ctx, channelID)
	if err != nil || name == "" {
		c.log.Warn("channel name lookup failed, using ID", logx.String("channel_id", channelID), logx.Err(err))
		name = channelID
	}
	c.channels[channelID] = name
	return name
}

func (c *converter) userName(ctx context.Context, userID string) string {
	if name, ok := c.users[userID]; ok {
		return name
	}

	name, err := c.res.UserName(ctx, userID)
	if err != nil || name == "" {
		c.log.Warn("user name lookup failed, using ID", logx.String("user_id", userID), logx.Err(err))
		name = userID
	}
	c.users[userID] = name
	return name
}
