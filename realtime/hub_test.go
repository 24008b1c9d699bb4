package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestHub_PublishReachesOwnerOnly(t *testing.T) {
	hub := NewHub(zap.NewNop())
	owner, other := primitive.NewObjectID(), primitive.NewObjectID()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := primitive.ObjectIDFromHex(r.URL.Query().Get("uid"))
		hub.ServeWS(w, r, id)
	}))
	defer srv.Close()

	dial := func(uid primitive.ObjectID) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?uid=" + uid.Hex()
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		return ws
	}
	ownerConn := dial(owner)
	defer ownerConn.Close()
	otherConn := dial(other)
	defer otherConn.Close()

	require.Eventually(t, func() bool {
		return hub.Connections(owner) == 1 && hub.Connections(other) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(owner, Event{Type: "order.updated", OrderID: "o1", Payload: map[string]string{"status": "Paid"}})

	var ev Event
	ownerConn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, ownerConn.ReadJSON(&ev))
	assert.Equal(t, "order.updated", ev.Type)
	assert.Equal(t, "o1", ev.OrderID)

	otherConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := otherConn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_DropsClosedConnections(t *testing.T) {
	hub := NewHub(zap.NewNop())
	owner := primitive.NewObjectID()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, owner)
	}))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Connections(owner) == 1 }, time.Second, 10*time.Millisecond)

	ws.Close()
	assert.Eventually(t, func() bool { return hub.Connections(owner) == 0 }, time.Second, 10*time.Millisecond)
}
