package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushClient_Send(t *testing.T) {
	var got PushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":[{"status":"ok","id":"abc"}]}`))
	}))
	defer srv.Close()

	client := NewPushClient(srv.URL)
	err := client.Send(context.Background(), PushMessage{
		To:    "ExponentPushToken[xyz]",
		Title: "Installment due",
		Body:  "PKR 500.00 is due tomorrow",
		Data:  map[string]string{"order_id": "o1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "ExponentPushToken[xyz]", got.To)
	assert.Equal(t, "default", got.Sound)
	assert.Equal(t, "o1", got.Data["order_id"])
}

func TestPushClient_TicketError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"status":"error","message":"DeviceNotRegistered"}]}`))
	}))
	defer srv.Close()

	err := NewPushClient(srv.URL).Send(context.Background(), PushMessage{To: "ExponentPushToken[x]"})
	assert.ErrorContains(t, err, "DeviceNotRegistered")
}

func TestPushClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewPushClient(srv.URL).Send(context.Background(), PushMessage{To: "ExponentPushToken[x]"})
	assert.ErrorContains(t, err, "502")
}

func TestIsExpoToken(t *testing.T) {
	assert.True(t, IsExpoToken("ExponentPushToken[abc]"))
	assert.True(t, IsExpoToken("ExpoPushToken[abc]"))
	assert.False(t, IsExpoToken("fcm:abc"))
}
