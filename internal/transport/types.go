package transport

import "context"

// Message is a normalized chat message handed to the triage pipeline.
//
// Identity comparisons must use SenderID/ChannelID (stable platform IDs);
// the display-name fields exist for human-readable output only. A Message
// that leaves a Source always has non-empty SenderID and ChannelID.
type Message struct {
	Channel   string // channel display name, or "DM" for direct messages
	ChannelID string
	Sender    string // sender display name
	SenderID  string
	Text      string
	ThreadTS  string // parent thread timestamp ("" when not threaded)
	IsDM      bool
	IsMention bool // the daemon's own user is @-mentioned
	IsBot     bool // sender is an automated account
}

// Source delivers normalized messages from a chat platform.
//
// Implementations own deduplication, display-name resolution, and dropping
// of administrative event subtypes; anything they emit on out is ready for
// the pipeline.
type Source interface {
	// Identity resolves the daemon's own user ID. Called once at startup,
	// before Start.
	Identity(ctx context.Context) (string, error)

	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error
}
