package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"portal/internal/hub"
	"portal/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var streamSeq atomic.Int64

type streamConn struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []string
}

// dialEvents opens the raw SockJS websocket transport through the same
// middleware chain the server uses.
func dialEvents(t *testing.T, srv testServer, token string) *streamConn {
	t.Helper()
	ts := httptest.NewServer(LoggingMiddleware(srv.handler))
	t.Cleanup(ts.Close)

	u := "ws" + strings.TrimPrefix(ts.URL, "http") +
		fmt.Sprintf("/api/portal/events/000/s%d/websocket", streamSeq.Add(1))
	if token != "" {
		u += "?session_token=" + url.QueryEscape(token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })

	c := &streamConn{t: t, conn: conn}
	require.Equal(t, "o", c.frame())
	return c
}

// frame returns the next non-heartbeat SockJS frame.
func (c *streamConn) frame() string {
	c.t.Helper()
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err)
		if frame := string(data); frame != "h" {
			return frame
		}
	}
}

// message returns the next payload. A data frame may carry several.
func (c *streamConn) message() []byte {
	c.t.Helper()
	for len(c.pending) == 0 {
		frame := c.frame()
		require.True(c.t, strings.HasPrefix(frame, "a"), "expected data frame, got %q", frame)
		require.NoError(c.t, json.Unmarshal([]byte(frame[1:]), &c.pending))
	}
	msg := c.pending[0]
	c.pending = c.pending[1:]
	return []byte(msg)
}

func (c *streamConn) event() hub.Event {
	c.t.Helper()
	var event hub.Event
	require.NoError(c.t, json.Unmarshal(c.message(), &event))
	return event
}

func (c *streamConn) closeCode() int {
	c.t.Helper()
	require.Empty(c.t, c.pending)
	frame := c.frame()
	require.True(c.t, strings.HasPrefix(frame, "c"), "expected close frame, got %q", frame)
	var parts []interface{}
	require.NoError(c.t, json.Unmarshal([]byte(frame[1:]), &parts))
	require.Len(c.t, parts, 2)
	return int(parts[0].(float64))
}

func (c *streamConn) send(msg interface{}) {
	c.t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(c.t, err)
	frame, err := json.Marshal([]string{string(body)})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

func waitForClients(t *testing.T, srv testServer, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return srv.hub.Len() == n }, 5*time.Second, 10*time.Millisecond)
}

func TestEventsRejectsMissingOrInvalidToken(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, 4001, dialEvents(t, srv, "").closeCode())
	assert.Equal(t, 4002, dialEvents(t, srv, "not-a-token").closeCode())
	assert.Equal(t, 0, srv.hub.Len())
}

func TestEventsDeliveryFollowsAccess(t *testing.T) {
	srv := newTestServer(t, nil)
	major := srv.login(t, "major@apollo.com")
	john := dialEvents(t, srv, srv.login(t, "john@apollo.com"))
	admin := dialEvents(t, srv, major)
	waitForClients(t, srv, 2)

	resp := srv.do(t, http.MethodPost, "/api/admin/projects", major, map[string]string{
		"name": "Dealer Hub",
		"url":  "https://dealers.apollo.com",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	var created models.Project
	decodeBody(t, resp, &created)

	event := admin.event()
	assert.Equal(t, hub.EventProjectCreated, event.Type)
	assert.Equal(t, created.ProjectID, event.ProjectID)

	resp = srv.do(t, http.MethodPatch, "/api/admin/projects/1", major, map[string]string{"name": "Connect"})
	require.Equal(t, http.StatusOK, resp.Code)

	event = john.event()
	assert.Equal(t, hub.EventProjectUpdated, event.Type)
	assert.Equal(t, "1", event.ProjectID, "the restricted new project is skipped on john's stream")
	assert.Equal(t, "1", admin.event().ProjectID)
}

func TestEventsSubscribeAndUnsubscribe(t *testing.T) {
	srv := newTestServer(t, nil)
	major := srv.login(t, "major@apollo.com")
	stream := dialEvents(t, srv, major)
	waitForClients(t, srv, 1)

	stream.send(map[string]interface{}{"action": "subscribe", "project_ids": []string{"2"}})
	var ack subscriptionAck
	require.NoError(t, json.Unmarshal(stream.message(), &ack))
	assert.Equal(t, subscriptionAck{Type: "subscribed", ProjectIDs: []string{"2"}}, ack)

	for _, id := range []string{"1", "2"} {
		resp := srv.do(t, http.MethodPatch, "/api/admin/projects/"+id, major, map[string]string{"icon": "star"})
		require.Equal(t, http.StatusOK, resp.Code)
	}
	assert.Equal(t, "2", stream.event().ProjectID)

	stream.send(map[string]interface{}{"action": "unsubscribe"})
	require.NoError(t, json.Unmarshal(stream.message(), &ack))
	assert.Equal(t, "unsubscribed", ack.Type)

	resp := srv.do(t, http.MethodPatch, "/api/admin/projects/1", major, map[string]string{"icon": "moon"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "1", stream.event().ProjectID)
}

func TestEventsStreamClosesAfterLogout(t *testing.T) {
	srv := newTestServer(t, nil)
	major := srv.login(t, "major@apollo.com")
	john := srv.login(t, "john@apollo.com")
	stream := dialEvents(t, srv, john)
	waitForClients(t, srv, 1)

	resp := srv.do(t, http.MethodPost, "/api/auth/logout", john, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = srv.do(t, http.MethodPatch, "/api/admin/projects/1", major, map[string]string{"icon": "star"})
	require.Equal(t, http.StatusOK, resp.Code)

	stream.send(map[string]interface{}{"action": "unsubscribe"})
	assert.Equal(t, 4002, stream.closeCode(), "no event reaches a logged-out session")
	waitForClients(t, srv, 0)
}
