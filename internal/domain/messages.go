package domain

import (
	"bytes"
	"encoding/json"
)

// WebSocket message types from client.
const (
	MsgTypeJoin      = "join"
	MsgTypeOffer     = "offer"
	MsgTypeAnswer    = "answer"
	MsgTypeCandidate = "candidate"
	MsgTypeChat      = "chat"
	MsgTypeFile      = "file"
	MsgTypePing      = "ping"
)

// WebSocket message types to client. Offer, answer, candidate, chat and
// file reuse the inbound names.
const (
	MsgTypeJoined       = "joined"
	MsgTypeChatHistory  = "chat-history"
	MsgTypeRoster       = "roster"
	MsgTypeAccessDenied = "access-denied"
	MsgTypePeerLeft     = "peer-left"
	MsgTypePong         = "pong"
)

// IsSignalType reports whether t is relayed verbatim to a single peer.
func IsSignalType(t string) bool {
	switch t {
	case MsgTypeOffer, MsgTypeAnswer, MsgTypeCandidate:
		return true
	}
	return false
}

// IsEmptyPayload reports whether an opaque payload is missing, null or "".
func IsEmptyPayload(p json.RawMessage) bool {
	p = bytes.TrimSpace(p)
	return len(p) == 0 || bytes.Equal(p, []byte("null")) || bytes.Equal(p, []byte(`""`))
}

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// JoinMessage asks to join a room under a display name.
type JoinMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
}

// SignalMessage carries an offer, answer or candidate for one peer.
type SignalMessage struct {
	Type    string          `json:"type"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// ChatRequest is a chat line sent by a client.
type ChatRequest struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
	Text   string `json:"text"`
}

// FileRequest announces a file to the room. Payload is opaque JSON, usually
// a data URL string, and is forwarded untouched.
type FileRequest struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"room_id"`
	Name     string          `json:"name"`
	Filename string          `json:"filename"`
	MimeType string          `json:"mime_type"`
	Size     int64           `json:"size"`
	Payload  json.RawMessage `json:"payload"`
}

// Server -> Client messages

// JoinedMessage confirms admission and lists the peers already present,
// in join order, so the joiner can start offers.
type JoinedMessage struct {
	Type   string   `json:"type"`
	RoomID string   `json:"room_id"`
	SelfID string   `json:"self_id"`
	Peers  []string `json:"peers"`
}

// ChatHistoryMessage replays the room's chat log, oldest first.
type ChatHistoryMessage struct {
	Type     string        `json:"type"`
	RoomID   string        `json:"room_id"`
	Messages []ChatMessage `json:"messages"`
}

// RosterMessage carries the current participant list.
type RosterMessage struct {
	Type         string        `json:"type"`
	RoomID       string        `json:"room_id"`
	Participants []RosterEntry `json:"participants"`
}

// RelayedSignal is a signaling message delivered to its target.
type RelayedSignal struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// ChatBroadcast is a chat line fanned out to a room.
type ChatBroadcast struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	ChatMessage
}

// FileBroadcast is a file announcement fanned out to a room.
type FileBroadcast struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	FileMessage
}

// AccessDeniedMessage is sent to a connection whose join was rejected.
type AccessDeniedMessage struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

// PeerLeftMessage tells members to tear down their link to PeerID.
type PeerLeftMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	PeerID string `json:"peer_id"`
}

// PongMessage answers an application-level ping.
type PongMessage struct {
	Type string `json:"type"`
}

// NewAccessDenied creates an access-denied message.
func NewAccessDenied(roomID string) *AccessDeniedMessage {
	return &AccessDeniedMessage{
		Type:    MsgTypeAccessDenied,
		RoomID:  roomID,
		Message: "room is restricted to its original network",
	}
}
