// Package webhooks delivers ban lifecycle events to an external HTTP
// endpoint. Payloads are signed with HMAC-SHA256 so receivers can
// verify origin.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/bans"
)

// EventType identifies what happened to the account
type EventType string

const (
	EventAccountBanned   EventType = "account.banned"
	EventAccountUnbanned EventType = "account.unbanned"
)

// Event is the webhook payload envelope
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	Data      interface{} `json:"data"`
}

// BannedData carries the ban details for account.banned events
type BannedData struct {
	UserID    int64      `json:"user_id"`
	BanCode   string     `json:"ban_code"`
	Reason    string     `json:"reason"`
	Type      string     `json:"type"`
	UnbanDate *time.Time `json:"unban_date,omitempty"`
}

// UnbannedData carries the account for account.unbanned events
type UnbannedData struct {
	UserID int64 `json:"user_id"`
}

// Notifier posts signed ban events to a single endpoint. It satisfies
// the ban store's notification hook.
type Notifier struct {
	url    string
	secret string
	client *http.Client
}

var _ bans.Notifier = (*Notifier)(nil)

// NewNotifier creates a webhook notifier. secret may be empty, in which
// case payloads are unsigned.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyBanned delivers an account.banned event
func (n *Notifier) NotifyBanned(ctx context.Context, ban *bans.Ban) error {
	return n.send(ctx, EventAccountBanned, BannedData{
		UserID:    ban.UserID,
		BanCode:   ban.BanCode,
		Reason:    ban.Reason,
		Type:      string(ban.Type),
		UnbanDate: ban.UnbanDate,
	})
}

// NotifyUnbanned delivers an account.unbanned event
func (n *Notifier) NotifyUnbanned(ctx context.Context, accountID int64) error {
	return n.send(ctx, EventAccountUnbanned, UnbannedData{UserID: accountID})
}

func (n *Notifier) send(ctx context.Context, eventType EventType, data interface{}) error {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ebuster-Event", string(event.Type))
	req.Header.Set("X-Ebuster-Event-ID", event.ID)
	req.Header.Set("X-Ebuster-Delivery", time.Now().Format(time.RFC3339))
	if n.secret != "" {
		req.Header.Set("X-Ebuster-Signature", generateSignature(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}

	return nil
}

// VerifySignature checks a received payload against its signature header
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := generateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// generateSignature generates HMAC-SHA256 signature
func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
