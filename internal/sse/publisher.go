package sse

import (
	"context"

	"github.com/GTDGit/dealfinder/internal/events"
)

// HubPublisher feeds finished searches into the hub so admin dashboards see
// them live.
type HubPublisher struct {
	hub *Hub
}

func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) PublishSearchCompleted(_ context.Context, event *events.SearchCompleted) error {
	p.hub.Broadcast(event)
	return nil
}

func (p *HubPublisher) Close() error { return nil }
