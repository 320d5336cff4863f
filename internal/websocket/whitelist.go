package websocket

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
)

var (
	// ErrEventAlreadyExists is returned when trying to add a duplicate event
	ErrEventAlreadyExists = errors.New("event already exists in whitelist")
	// ErrInvalidEvent is returned when an empty event is provided
	ErrInvalidEvent = errors.New("event cannot be empty")
)

// clientWhitelist contains the set of events that clients are allowed to send.
// Frames with any other event name are dropped before dispatch.
type clientWhitelist struct {
	mu            sync.RWMutex
	allowedEvents []string
}

// NewClientWhitelist creates a new whitelist with the given allowed events
func NewClientWhitelist(allowedEvents ...string) *clientWhitelist {
	validEvents := make([]string, 0, len(allowedEvents))
	for _, event := range allowedEvents {
		if event != "" {
			validEvents = append(validEvents, event)
		}
	}

	return &clientWhitelist{
		allowedEvents: validEvents,
	}
}

// IsAllowed checks if an event is in the whitelist in a thread-safe manner
func (w *clientWhitelist) IsAllowed(event string) bool {
	if event == "" {
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	return slices.Contains(w.allowedEvents, event)
}

// AddEvent adds an event to the whitelist in a thread-safe manner.
// Returns an error if the event is empty or already exists.
func (w *clientWhitelist) AddEvent(event string) error {
	if event == "" {
		slog.Warn("attempted to add empty event to whitelist")
		return ErrInvalidEvent
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if slices.Contains(w.allowedEvents, event) {
		slog.Debug("event already in whitelist", "event", event)
		return ErrEventAlreadyExists
	}

	w.allowedEvents = append(w.allowedEvents, event)
	slog.Info("added event to whitelist", "event", event)
	return nil
}

// DefaultClientWhitelist returns the whitelist of chat protocol events a
// client may initiate.
func DefaultClientWhitelist() *clientWhitelist {
	return NewClientWhitelist(
		EventJoin,
		EventMessage,
		EventTyping,
		EventPrivateHistory,
		EventHealth,
	)
}
