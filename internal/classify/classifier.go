// Package classify scores message urgency through an Ollama-hosted LLM.
//
// The LLM is treated as an unreliable dependency: Classify never returns
// an error. Any transport or parsing failure degrades to a precautionary
// Classification whose urgency sits exactly at the notification threshold,
// so a broken classifier produces more notifications, never fewer.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bmhenry/classy-slack-notifier/internal/transport"
	logx "github.com/bmhenry/classy-slack-notifier/pkg/logx"
)

// fallbackReason marks classifications produced without the LLM.
const fallbackReason = "LLM unavailable — notifying as precaution"

// responseFormat is the structured-output schema sent with every request.
var responseFormat = json.RawMessage(`{"type":"object","properties":{"urgency":{"type":"integer"},"reason":{"type":"string"}},"required":["urgency","reason"]}`)

// Classification is an urgency verdict for one message.
type Classification struct {
	Urgency int    // 1 (noise) .. 5 (critical)
	Reason  string // brief explanation from the model
}

type Config struct {
	Model        string
	Endpoint     string // Ollama base URL, e.g. "http://localhost:11434"
	Timeout      time.Duration
	SystemPrompt string

	// FallbackUrgency is the urgency assigned when the LLM cannot be
	// reached or answers garbage. Set to the notification threshold so
	// fallback classifications always notify.
	FallbackUrgency int
}

type Classifier struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Classifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	// Timeout lives on the per-request context, not the client.
	return &Classifier{cfg: cfg, http: &http.Client{}, log: log}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Format   json.RawMessage `json:"format"`
	Stream   bool            `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// chatVerdict is the model's structured answer, embedded as a JSON string
// inside the response message content. Pointer fields distinguish a missing
// key from a zero value.
type chatVerdict struct {
	Urgency *int    `json:"urgency"`
	Reason  *string `json:"reason"`
}

// Classify scores msg on the 1-5 urgency scale. It never returns an error:
// on any failure the fallback classification is returned instead.
func (c *Classifier) Classify(ctx context.Context, msg transport.Message) Classification {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: userContent(msg)},
		},
		Format: responseFormat,
		Stream: false,
	})
	if err != nil {
		return c.fallback(err)
	}

	rctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, c.cfg.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return c.fallback(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fallback(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.fallback(fmt.Errorf("unexpected status %s", resp.Status))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return c.fallback(fmt.Errorf("decode response: %w", err))
	}

	var verdict chatVerdict
	if err := json.Unmarshal([]byte(cr.Message.Content), &verdict); err != nil {
		return c.fallback(fmt.Errorf("decode verdict: %w", err))
	}
	if verdict.Urgency == nil || verdict.Reason == nil {
		return c.fallback(fmt.Errorf("verdict missing urgency or reason: %q", cr.Message.Content))
	}

	return Classification{Urgency: clamp(*verdict.Urgency), Reason: *verdict.Reason}
}

// fallback builds the precautionary classification.
func (c *Classifier) fallback(cause error) Classification {
	c.log.Warn("classifier fallback", logx.Err(cause))
	return Classification{Urgency: c.cfg.FallbackUrgency, Reason: fallbackReason}
}

// userContent formats msg into the user turn sent to the model.
func userContent(msg transport.Message) string {
	dm := "no"
	if msg.IsDM {
		dm = "yes"
	}
	return fmt.Sprintf("Channel: %s\nSender: %s\nDM: %s\nMessage: %s", msg.Channel, msg.Sender, dm, msg.Text)
}

// clamp forces a model-supplied urgency into the valid 1-5 range.
func clamp(urgency int) int {
	if urgency < 1 {
		return 1
	}
	if urgency > 5 {
		return 5
	}
	return urgency
}
