package service

import (
	"time"

	"github.com/andreval74/xcafe/internal/domain"
)

// EventType names a registry change pushed to connected admin sessions
type EventType string

const (
	EventSystemInitialized EventType = "system_initialized"
	EventAdminCreated      EventType = "admin_created"
	EventAdminUpdated      EventType = "admin_updated"
	EventUserRegistered    EventType = "user_registered"
	EventSystemReset       EventType = "system_reset"
)

// Event describes a state change of the registry
type Event struct {
	Type    EventType      `json:"type"`
	Actor   domain.Address `json:"actor,omitempty"`
	Subject domain.Address `json:"subject,omitempty"`
	Data    any            `json:"data,omitempty"`
	Time    time.Time      `json:"time"`
}

// EventPublisher receives registry events. Publish must not block.
type EventPublisher interface {
	Publish(event Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
