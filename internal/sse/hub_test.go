package sse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/fabric_api/internal/models"
)

func TestPublishTargetsRecipientOnly(t *testing.T) {
	hub := NewHub()
	admin := hub.Register("c1", "admin-1")
	other := hub.Register("c2", "admin-2")
	defer hub.Unregister("c1")
	defer hub.Unregister("c2")

	NewHubNotifier(hub).Push(&models.Notification{ID: "n1", RecipientID: "admin-1", Type: models.NotificationNewOrder})

	require.Len(t, admin.Events, 1)
	assert.Len(t, other.Events, 0)

	var ev struct {
		Event EventType           `json:"event"`
		Data  models.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-admin.Events, &ev))
	assert.Equal(t, EventNotificationCreated, ev.Event)
	assert.Equal(t, "n1", ev.Data.ID)
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := hub.Register("c1", "u1")
	defer hub.Unregister("c1")

	for i := 0; i < cap(c.Events); i++ {
		assert.Equal(t, 1, hub.Publish("u1", &Event{Event: EventNotificationCreated}))
	}
	assert.Equal(t, 0, hub.Publish("u1", &Event{Event: EventNotificationCreated}))
}

func TestUnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	c := hub.Register("c1", "u1")
	hub.Unregister("c1")

	_, ok := <-c.Events
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
}
