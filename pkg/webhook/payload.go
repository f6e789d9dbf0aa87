package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/content-engine/pkg/models"
)

// SignatureHeader carries the HMAC-SHA256 of the request body when the
// target has a signing secret.
const SignatureHeader = "X-Webhook-Signature"

// Payload is the body POSTed to a webhook target.
type Payload struct {
	Type       string
	EntityKind models.EntityKind
	EntityID   uuid.UUID
	UserID     string
	RetryCount int
	Timestamp  time.Time
	// Entity is the snapshot of the entity the event is about.
	Entity any
	// Extra is merged into the top level of the body.
	Extra map[string]any
}

// CallbackData is echoed back by the worker so the callback can be routed to
// the entity and user without trusting anything else in the request.
type CallbackData struct {
	EntityType  models.EntityKind `json:"entity_type"`
	EntityID    uuid.UUID         `json:"entity_id"`
	UserID      string            `json:"user_id"`
	WebhookType string            `json:"webhook_type"`
	RetryCount  int               `json:"retry_count"`
}

// body builds the JSON document for one delivery.
func (p Payload) body(callbackURL string) ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+7)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["type"] = p.Type
	out[string(p.EntityKind)+"_id"] = p.EntityID
	out["user_id"] = p.UserID
	out["timestamp"] = p.Timestamp.UTC().Format(time.RFC3339Nano)
	if p.Entity != nil {
		out["entity"] = p.Entity
	}
	out["callback_url"] = callbackURL
	out["callback_data"] = CallbackData{
		EntityType:  p.EntityKind,
		EntityID:    p.EntityID,
		UserID:      p.UserID,
		WebhookType: p.Type,
		RetryCount:  p.RetryCount,
	}
	return json.Marshal(out)
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
