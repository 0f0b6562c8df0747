package pubsub

import "fmt"

// ChannelRoomLifecycle is the channel that carries room lifecycle events.
// Format: {prefix}:room:{roomID}:lifecycle
const ChannelRoomLifecycle = "%s:room:%s:lifecycle"

// Room lifecycle event types.
const (
	EventRoomOpened        = "room_opened"
	EventRoomClosed        = "room_closed"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventAccessDenied      = "access_denied"
)

// LifecycleChannel returns the lifecycle channel name for a room.
func LifecycleChannel(prefix, roomID string) string {
	return fmt.Sprintf(ChannelRoomLifecycle, prefix, roomID)
}

// RoomPayload accompanies room_opened and room_closed.
type RoomPayload struct {
	RoomID string `json:"room_id"`
	Origin string `json:"origin,omitempty"`
}

// ParticipantPayload accompanies participant_joined and participant_left.
type ParticipantPayload struct {
	RoomID      string `json:"room_id"`
	ClientID    string `json:"client_id"`
	Name        string `json:"name,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
	MemberCount int    `json:"member_count"`
	NewAdminID  string `json:"new_admin_id,omitempty"`
}

// AccessDeniedPayload accompanies access_denied.
type AccessDeniedPayload struct {
	RoomID   string `json:"room_id"`
	ClientID string `json:"client_id"`
	Address  string `json:"address"`
}
