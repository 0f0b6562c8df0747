// Package events publishes room lifecycle notifications to an external bus.
// Publishing is fire-and-forget; the coordinator never waits on the bus.
package events

// RoomEventProducer defines the lifecycle notifications the coordinator emits.
// Implementations must not block.
type RoomEventProducer interface {
	RoomOpened(roomID, origin string)
	RoomClosed(roomID string)
	ParticipantJoined(roomID, clientID, name string, isAdmin bool, memberCount int)
	ParticipantLeft(roomID, clientID string, wasAdmin bool, newAdminID string, memberCount int)
	AccessDenied(roomID, clientID, address string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) RoomOpened(string, string) {}
func (Nop) RoomClosed(string) {}
func (Nop) ParticipantJoined(string, string, string, bool, int) {}
func (Nop) ParticipantLeft(string, string, bool, string, int) {}
func (Nop) AccessDenied(string, string, string) {}

var (
	_ RoomEventProducer = Nop{}
	_ RoomEventProducer = (*Producer)(nil)
)
