package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"portal/internal/hub"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

// subscriptionAck confirms a subscribe or unsubscribe message. Events
// published after the ack honour the new subscription.
type subscriptionAck struct {
	Type       string   `json:"type"`
	ProjectIDs []string `json:"project_ids"`
}

func (h *Handler) eventsHandler() http.Handler {
	return sockjs.NewHandler("/api/portal/events", sockjs.DefaultOptions, func(conn sockjs.Session) {
		token := eventsTokenFromRequest(conn.Request())
		if token == "" {
			_ = conn.Close(4001, "missing session")
			return
		}
		sess, ok := h.lookupSession(token)
		if !ok || !sess.Authenticated() {
			_ = conn.Close(4002, "invalid session")
			return
		}

		client := &hub.Client{
			ID:   uuid.NewString(),
			Send: make(chan []byte, 16),
			CanSee: func(projectID string) bool {
				return sess.HasAccess(context.Background(), projectID)
			},
		}
		h.hub.Register(client)
		defer h.hub.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = conn.Send(string(msg))
			}
		}()

		for {
			msg, err := conn.Recv()
			if err != nil {
				return
			}
			if !sess.Authenticated() {
				_ = conn.Close(4002, "invalid session")
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			sub := hub.Subscription{ProjectIDs: parsed.ProjectIDs}
			if parsed.Action == "unsubscribe" {
				sub = hub.Subscription{}
			}
			h.hub.UpdateSubscription(client, sub)
			ack, _ := json.Marshal(subscriptionAck{Type: parsed.Action + "d", ProjectIDs: sub.ProjectIDs})
			select {
			case client.Send <- ack:
			default:
			}
		}
	})
}

func eventsTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := sessionTokenFromRequest(r); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("session_token"))
}
