package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/angohost/portal/pkg/logger"
)

func TestHubRoutesEventsBySubscriber(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(nil, logger.NewNop())
	require.NoError(t, hub.Start(context.Background()))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, Subscriber{UserID: r.URL.Query().Get("user"), Admin: r.URL.Query().Get("admin") == "1"})
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func(query string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?"+query, nil)
		require.NoError(t, err)
		return conn
	}

	owner := dial("user=u1")
	other := dial("user=u2")
	admin := dial("user=a1&admin=1")
	defer owner.Close()
	defer other.Close()
	defer admin.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 3 }, time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), Event{Type: EventOrderCreated, UserID: "u1", Payload: map[string]string{"number": "ORD-2026-000001"}})

	var got Event
	require.NoError(t, owner.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, owner.ReadJSON(&got))
	assert.Equal(t, EventOrderCreated, got.Type)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, admin.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, admin.ReadJSON(&got))
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "foreign subscriber must not receive the event")

	require.NoError(t, hub.Stop(context.Background()))
	assert.Equal(t, 0, hub.Clients())

	owner.Close()
	other.Close()
	admin.Close()
	srv.Close()
	time.Sleep(50 * time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://angohost.ao"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(r), "missing origin is allowed")

	r.Header.Set("Origin", "https://angohost.ao")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(r))
}
