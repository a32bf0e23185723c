package email

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	calls int
	err   error
}

func (r *recordingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	r.calls++
	return r.err
}

func testMessage() Message {
	return Message{
		From:       "noreply@rentals.example.com",
		To:         "tenant@example.com",
		Subject:    "Your booking is confirmed",
		Body:       "See you on 2024-10-01.",
		TemplateID: "booking_confirmed",
		Date:       time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMessage_Bytes(t *testing.T) {
	raw := string(testMessage().Bytes())

	assert.True(t, strings.HasPrefix(raw, "To: tenant@example.com\r\n"))
	assert.Contains(t, raw, "Subject: Your booking is confirmed\r\n")
	assert.Contains(t, raw, "X-Template-ID: booking_confirmed\r\n")
	assert.Contains(t, raw, "\r\n\r\nSee you on 2024-10-01.\r\n")
}

func TestTemplateOf(t *testing.T) {
	templateID, body := templateOf(testMessage().Bytes())
	assert.Equal(t, "booking_confirmed", templateID)
	assert.Equal(t, "See you on 2024-10-01.\r\n", body)

	msg := testMessage()
	msg.TemplateID = ""
	templateID, _ = templateOf(msg.Bytes())
	assert.Equal(t, "unknown", templateID)

	assert.Equal(t, "mockemail:a@example.com:welcome", MockEmailKey("a@example.com", "welcome"))
}

func TestCompositeEmailSender(t *testing.T) {
	failing := &recordingSender{err: errors.New("boom")}
	ok := &recordingSender{}
	composite := NewCompositeEmailSender(failing)
	composite.AddSender(ok)
	composite.AddSender(nil)

	err := composite.Send(context.Background(), []string{"a@example.com"}, "subject", []byte("raw"))
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)

	assert.Error(t, NewCompositeEmailSender().Send(context.Background(), nil, "", nil))
}

func TestFileEmailSender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "emails.log")
	sender, err := NewFileEmailSender(path)
	require.NoError(t, err)

	raw := testMessage().Bytes()
	require.NoError(t, sender.Send(context.Background(), []string{"tenant@example.com"}, "first", raw))
	require.NoError(t, sender.Send(context.Background(), []string{"tenant@example.com"}, "second", raw))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(content), "--- End Logged Email ---"))
	assert.Contains(t, string(content), "Subject: second")

	_, err = NewFileEmailSender(" ")
	assert.Error(t, err)
}
