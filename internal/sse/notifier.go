package sse

import (
	"time"

	"github.com/GTDGit/fabric_api/internal/models"
)

// HubNotifier pushes stored notifications to the recipient's open streams.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Push(notification *models.Notification) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Publish(notification.RecipientID, &Event{
		Event:     EventNotificationCreated,
		Data:      notification,
		Timestamp: time.Now(),
	})
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (NopNotifier) Push(*models.Notification) {}
