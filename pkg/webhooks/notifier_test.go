package webhooks

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

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/bans"
)

type capturedRequest struct {
	body    []byte
	headers http.Header
}

func captureServer(t *testing.T, status int) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured.body = body
		captured.headers = r.Header.Clone()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestNotifier_NotifyBanned(t *testing.T) {
	server, captured := captureServer(t, http.StatusOK)
	notifier := NewNotifier(server.URL, "topsecret")

	unban := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := notifier.NotifyBanned(context.Background(), &bans.Ban{
		UserID:    42,
		BanCode:   "BC-1234",
		Reason:    "abuse",
		Type:      bans.TypeTemporary,
		UnbanDate: &unban,
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", captured.headers.Get("Content-Type"))
	assert.Equal(t, "account.banned", captured.headers.Get("X-Ebuster-Event"))
	assert.NotEmpty(t, captured.headers.Get("X-Ebuster-Event-ID"))

	signature := captured.headers.Get("X-Ebuster-Signature")
	require.NotEmpty(t, signature)
	assert.True(t, VerifySignature(captured.body, signature, "topsecret"))
	assert.False(t, VerifySignature(captured.body, signature, "wrongsecret"))

	var event Event
	require.NoError(t, json.Unmarshal(captured.body, &event))
	assert.Equal(t, EventAccountBanned, event.Type)

	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), data["user_id"])
	assert.Equal(t, "BC-1234", data["ban_code"])
	assert.Equal(t, "temporary", data["type"])
}

func TestNotifier_NotifyUnbanned(t *testing.T) {
	server, captured := captureServer(t, http.StatusNoContent)
	notifier := NewNotifier(server.URL, "")

	require.NoError(t, notifier.NotifyUnbanned(context.Background(), 7))

	assert.Equal(t, "account.unbanned", captured.headers.Get("X-Ebuster-Event"))
	assert.Empty(t, captured.headers.Get("X-Ebuster-Signature"))

	var event Event
	require.NoError(t, json.Unmarshal(captured.body, &event))
	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), data["user_id"])
}

func TestNotifier_NonSuccessStatus(t *testing.T) {
	server, _ := captureServer(t, http.StatusBadGateway)
	notifier := NewNotifier(server.URL, "")

	err := notifier.NotifyUnbanned(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNotifier_EndpointUnreachable(t *testing.T) {
	server, _ := captureServer(t, http.StatusOK)
	url := server.URL
	server.Close()

	notifier := NewNotifier(url, "")
	require.Error(t, notifier.NotifyBanned(context.Background(), &bans.Ban{
		UserID: 1, Type: bans.TypePermanent,
	}))
}
