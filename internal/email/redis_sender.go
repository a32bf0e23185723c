package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockEmailTTL is how long a captured email stays readable.
const MockEmailTTL = 5 * time.Minute

// MockEmailKey is the Redis key a captured email is stored under.
func MockEmailKey(recipient, templateID string) string {
	return fmt.Sprintf("mockemail:%s:%s", recipient, templateID)
}

// RedisSender captures emails in Redis instead of sending them, so end-to-end
// tests can read them back through the service API.
type RedisSender struct {
	client *redis.Client
	from   string
}

// NewRedisSender creates a new RedisSender
func NewRedisSender(client *redis.Client, from string) *RedisSender {
	return &RedisSender{client: client, from: from}
}

// templateOf returns the template header and body of a raw message.
// Unparseable messages yield "unknown" and the raw bytes.
func templateOf(rawMessage []byte) (string, string) {
	msg, err := mail.ReadMessage(bytes.NewReader(rawMessage))
	if err != nil {
		return "unknown", string(rawMessage)
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return "unknown", string(rawMessage)
	}
	templateID := msg.Header.Get(TemplateHeader)
	if templateID == "" {
		templateID = "unknown"
	}
	return templateID, string(body)
}

// Send stores the email as JSON under one key per recipient and template.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID, body := templateOf(rawMessage)

	jsonData, err := json.Marshal(map[string]interface{}{
		"to":          strings.Join(to, ", "),
		"from":        s.from,
		"subject":     subject,
		"body":        body,
		"sent_at":     time.Now().UTC().Format(time.RFC3339Nano),
		"template_id": templateID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	for _, recipient := range to {
		key := MockEmailKey(recipient, templateID)
		if err := s.client.Set(ctx, key, jsonData, MockEmailTTL).Err(); err != nil {
			return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
		}
		log.Printf("Mock email stored in Redis key '%s' (Subject: %s)", key, subject)
	}
	return nil
}
