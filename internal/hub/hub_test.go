package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(id string, visible ...string) *Client {
	allowed := map[string]bool{}
	for _, v := range visible {
		allowed[v] = true
	}
	return &Client{
		ID:     id,
		Send:   make(chan []byte, 4),
		CanSee: func(projectID string) bool { return allowed[projectID] },
	}
}

func TestPublishFiltersByVisibility(t *testing.T) {
	h := New()
	admin := &Client{ID: "admin", Send: make(chan []byte, 4)}
	john := newClient("john", "1", "2")
	h.Register(admin)
	h.Register(john)

	h.Publish(Event{Type: EventProjectCreated, ProjectID: "5"})
	h.Publish(Event{Type: EventProjectUpdated, ProjectID: "2"})

	require.Len(t, admin.Send, 2)
	require.Len(t, john.Send, 1)

	var got Event
	require.NoError(t, json.Unmarshal(<-john.Send, &got))
	assert.Equal(t, EventProjectUpdated, got.Type)
	assert.Equal(t, "2", got.ProjectID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSubscriptionNarrowsEvents(t *testing.T) {
	h := New()
	c := newClient("c", "1", "2")
	h.Register(c)
	h.UpdateSubscription(c, Subscription{ProjectIDs: []string{"1"}})

	h.Publish(Event{Type: EventProjectUpdated, ProjectID: "2"})
	h.Publish(Event{Type: EventProjectUpdated, ProjectID: "1"})
	assert.Len(t, c.Send, 1)
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	h := New()
	c := &Client{ID: "slow", Send: make(chan []byte)}
	h.Register(c)
	h.Publish(Event{Type: EventProjectDeleted, ProjectID: "1"})
	assert.Len(t, c.Send, 0)
}

func TestUnregisterClosesOnce(t *testing.T) {
	h := New()
	c := newClient("c")
	h.Register(c)
	assert.Equal(t, 1, h.Len())
	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.Len())
	_, open := <-c.Send
	assert.False(t, open)
}

func TestParseSubscribe(t *testing.T) {
	tests := []struct {
		name string
		data string
		ok   bool
	}{
		{"subscribe", `{"action":"subscribe","project_ids":["1"]}`, true},
		{"unsubscribe", `{"action":"unsubscribe"}`, true},
		{"unknown action", `{"action":"ping"}`, false},
		{"invalid json", `{`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := ParseSubscribe([]byte(tc.data))
			assert.Equal(t, tc.ok, ok)
		})
	}
}
