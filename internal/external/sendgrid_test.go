package external

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carwash/internal/types"
)

func reminderInput() types.SendInput {
	return types.SendInput{
		To:          "amira@example.com",
		From:        types.SenderIdentity{Name: "CarWash", Address: "no-reply@carwash.test"},
		ReplyTo:     "support@carwash.test",
		Subject:     "Reminder: booking #42 - Full wash",
		BodyHTML:    "<p>See you soon</p>",
		BodyText:    "See you soon",
		ReferenceID: "booking-42",
	}
}

func newSendGrid(t *testing.T, h http.HandlerFunc) (*SendGridClient, func()) {
	t.Helper()
	srv := httptest.NewServer(h)
	c := NewSendGridClient(&http.Client{Timeout: 5 * time.Second},
		SendGridClientConfig{APIKey: "SG.test", BaseURL: srv.URL},
		WithSleepFunc(func(context.Context, time.Duration) error { return nil }))
	return c, srv.Close
}

func TestSendGridSend_Success(t *testing.T) {
	var payload map[string]any
	var auth string
	c, done := newSendGrid(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &payload))
		w.Header().Set("X-Message-Id", "sg-123")
		w.WriteHeader(http.StatusAccepted)
	})
	defer done()

	id, err := c.Send(context.Background(), reminderInput())
	require.NoError(t, err)
	assert.Equal(t, "sg-123", id)
	assert.Equal(t, "Bearer SG.test", auth)

	assert.Equal(t, "Reminder: booking #42 - Full wash", payload["subject"])
	content := payload["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "text/plain", content[0].(map[string]any)["type"])
	assert.Equal(t, "text/html", content[1].(map[string]any)["type"])
	assert.Equal(t, "support@carwash.test", payload["reply_to"].(map[string]any)["email"])
	assert.Equal(t, "booking-42", payload["custom_args"].(map[string]any)["reference_id"])
}

func TestSendGridSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   types.ErrorCode
	}{
		{"suppressed recipient", http.StatusForbidden, `{"errors":[{"message":"blocked"}]}`, types.ErrCodeEmailBlocked},
		{"bad request", http.StatusBadRequest, `{"errors":[{"message":"invalid from"}]}`, types.ErrCodeUpstreamEmailProvider},
		{"non json body", http.StatusUnauthorized, `nope`, types.ErrCodeUpstreamEmailProvider},
		{"server error", http.StatusInternalServerError, ``, types.ErrCodeUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, ``, types.ErrCodeUpstreamRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, done := newSendGrid(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			defer done()

			_, err := c.Send(context.Background(), reminderInput())
			require.Error(t, err)
			assert.True(t, types.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestBuildMailPayload_OmitsEmptyParts(t *testing.T) {
	p := buildMailPayload(types.SendInput{To: "a@b.c", Subject: "s", BodyText: "t"})
	assert.Nil(t, p.ReplyTo)
	assert.Nil(t, p.CustomArgs)
	require.Len(t, p.Content, 1)
	assert.Equal(t, "text/plain", p.Content[0].Type)
}
