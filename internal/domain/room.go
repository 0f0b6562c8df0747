package domain

import (
	"encoding/json"
	"unicode/utf8"
)

// Limits applied to user-supplied fields, counted in runes.
const (
	MaxNameLength     = 50
	MaxTextLength     = 2000
	MaxFilenameLength = 200

	// MaxHistory is the default chat log capacity per room.
	MaxHistory = 200
)

// Roles in a roster.
const (
	RoleAdmin  = "admin"
	RolePerson = "person"
)

// ChatMessage is one entry of a room's chat log. Timestamp is unix millis.
type ChatMessage struct {
	SenderID  string `json:"sender_id"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// FileMessage is a relay-only file announcement.
type FileMessage struct {
	ID        string          `json:"id"`
	SenderID  string          `json:"sender_id"`
	Name      string          `json:"name"`
	Filename  string          `json:"filename"`
	MimeType  string          `json:"mime_type"`
	Size      int64           `json:"size"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// RosterEntry is one line of the display-ready participant list.
type RosterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// RoomSummary is the HTTP view of a live room.
type RoomSummary struct {
	RoomID       string        `json:"room_id"`
	MemberCount  int           `json:"member_count"`
	HistorySize  int           `json:"history_size"`
	Participants []RosterEntry `json:"participants"`
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n < 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
