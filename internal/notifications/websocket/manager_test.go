package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cehpoint/project-portal/project-portal-backend/internal/notifications"
)

func dial(t *testing.T, m *Manager, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := m.HandleConnection(w, r, userID)
		assert.NoError(t, err)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) notifications.Message {
	t.Helper()
	var msg notifications.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestConnectionReceivesGreetingAndPushes(t *testing.T) {
	m := NewManager("", nil)
	defer m.Close()

	conn := dial(t, m, "user-1")
	hello := readMessage(t, conn)
	assert.Equal(t, notifications.MessageTypeConnected, hello.Type)
	assert.Equal(t, "user-1", hello.Target)

	require.Eventually(t, func() bool { return m.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	err := m.SendToUser("user-1", notifications.Message{
		Type: notifications.MessageTypeStatusChanged,
		Data: map[string]interface{}{"status": "in-progress"},
	})
	require.NoError(t, err)

	pushed := readMessage(t, conn)
	assert.Equal(t, notifications.MessageTypeStatusChanged, pushed.Type)
	assert.Equal(t, "in-progress", pushed.Data["status"])
}

func TestSendToUnknownUser(t *testing.T) {
	m := NewManager("", nil)
	defer m.Close()

	assert.ErrorIs(t, m.SendToUser("nobody", notifications.Message{Type: "x"}), ErrNotConnected)
}

func TestPingIsAnswered(t *testing.T) {
	m := NewManager("", nil)
	defer m.Close()

	conn := dial(t, m, "user-2")
	readMessage(t, conn)
	require.Eventually(t, func() bool { return m.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(notifications.Message{Type: "ping"}))
	assert.Equal(t, notifications.MessageTypePong, readMessage(t, conn).Type)
}

func TestCloseDisconnectsClients(t *testing.T) {
	m := NewManager("", nil)
	conn := dial(t, m, "user-3")
	readMessage(t, conn)
	require.Eventually(t, func() bool { return m.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	m.Close()
	m.Close()

	assert.ErrorIs(t, m.SendToUser("user-3", notifications.Message{Type: "x"}), ErrClosed)
	assert.Eventually(t, func() bool { return m.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHandleRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager("", nil)
	defer m.Close()

	router := gin.New()
	router.GET("/ws", m.Handle)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOriginCheck(t *testing.T) {
	m := NewManager("https://portal.example.com", nil)
	defer m.Close()

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, m.upgrader.CheckOrigin(r))

	r.Header.Set("Origin", "https://portal.example.com")
	assert.True(t, m.upgrader.CheckOrigin(r))
}
