package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/weiawesome/wes-meet/internal/domain"
	"github.com/weiawesome/wes-meet/internal/hub"
)

// ErrInvalidMessage marks inbound messages dropped for missing or
// unacceptable fields. Callers log these quietly.
var ErrInvalidMessage = errors.New("invalid message")

// Stats is a point-in-time view of the coordinator.
type Stats struct {
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
	Connections int `json:"connections"`
}

// SignalService coordinates rooms and relays signaling between clients.
type SignalService interface {
	// HandleJoin admits the client to a room, subject to origin gating.
	HandleJoin(ctx context.Context, client *hub.Client, roomID, name string) error

	// HandleSignal relays an offer, answer or candidate to a single peer.
	HandleSignal(ctx context.Context, client *hub.Client, msgType, to string, payload json.RawMessage) error

	// HandleChat records a chat line and fans it out to the room.
	HandleChat(ctx context.Context, client *hub.Client, roomID, name, text string) error

	// HandleFile fans a file announcement out to the room without storing it.
	HandleFile(ctx context.Context, client *hub.Client, req domain.FileRequest) error

	// HandleDisconnect removes the client from its rooms and notifies peers.
	HandleDisconnect(ctx context.Context, client *hub.Client) error

	// RoomSummary returns the roster view of a live room.
	RoomSummary(roomID string) (domain.RoomSummary, bool)

	// Stats returns room, membership and connection counts.
	Stats() Stats
}
