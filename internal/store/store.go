// Package store holds the in-memory table of rooms. It owns every mutation
// of membership, admin assignment, origin binding and chat history.
//
// Lock order is room.mu then Store.mu. Store.mu is never held while a room
// lock is acquired. Commit callbacks run under the room lock so that
// observers see mutations of one room in the order they were applied.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/weiawesome/wes-meet/internal/domain"
)

var (
	// ErrAccessDenied is returned when a join comes from an address other
	// than the room's recorded origin.
	ErrAccessDenied = errors.New("access denied: origin mismatch")

	// ErrNoSuchRoom is returned for operations on a room that does not exist.
	ErrNoSuchRoom = errors.New("no such room")

	// ErrNotMember is returned when the sender does not belong to the room.
	ErrNotMember = errors.New("not a member of the room")
)

// Member is one connection's membership record.
type Member struct {
	ID       string
	Name     string
	JoinedAt time.Time
}

// Snapshot is an immutable view of a room taken under its lock.
type Snapshot struct {
	RoomID  string
	Origin  string
	AdminID string
	// Members are in join order.
	Members []Member
	// Created is set when the call that produced the snapshot created the room.
	Created bool
	// Added is set when the call admitted a new member.
	Added bool
}

// MemberIDs returns the member ids in join order.
func (s Snapshot) MemberIDs() []string {
	ids := make([]string, len(s.Members))
	for i, m := range s.Members {
		ids[i] = m.ID
	}
	return ids
}

// PeersOf returns the member ids other than id, in join order.
func (s Snapshot) PeersOf(id string) []string {
	peers := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		if m.ID != id {
			peers = append(peers, m.ID)
		}
	}
	return peers
}

// Has reports whether id is a member.
func (s Snapshot) Has(id string) bool {
	for _, m := range s.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// LeaveResult describes the effect of one connection leaving one room.
type LeaveResult struct {
	RoomID   string
	Departed Member
	WasAdmin bool
	// Remaining is the post-leave view; empty when Deleted.
	Remaining Snapshot
	Deleted   bool
}

// Stats summarizes the store.
type Stats struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
}

// Room is the state of one room. All fields are guarded by mu.
type Room struct {
	id      string
	mu      sync.Mutex
	origin  string
	admin   string
	order   []string
	members map[string]*Member
	history *History
	deleted bool
}

func (r *Room) snapshotLocked() Snapshot {
	members := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		members = append(members, *r.members[id])
	}
	return Snapshot{
		RoomID:  r.id,
		Origin:  r.origin,
		AdminID: r.admin,
		Members: members,
	}
}

func (r *Room) removeLocked(connID string) (Member, bool) {
	m, ok := r.members[connID]
	if !ok {
		return Member{}, false
	}
	delete(r.members, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *m, true
}

// Store is the process-wide table of rooms.
type Store struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	byConn     map[string]map[string]struct{}
	maxHistory int
	now        func() time.Time
}

// New creates an empty store whose rooms keep up to maxHistory chat messages.
func New(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = domain.MaxHistory
	}
	return &Store{
		rooms:      make(map[string]*Room),
		byConn:     make(map[string]map[string]struct{}),
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

func (s *Store) getOrCreate(roomID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		r = &Room{
			id:      roomID,
			members: make(map[string]*Member),
			history: NewHistory(s.maxHistory),
		}
		s.rooms[roomID] = r
	}
	return r
}

// lookup returns the live room with the given id, locked. The caller must
// unlock it. A room still under construction by its first joiner is not
// visible.
func (s *Store) lookup(roomID string) (*Room, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSuchRoom
	}

	r.mu.Lock()
	if r.deleted || len(r.order) == 0 {
		r.mu.Unlock()
		return nil, ErrNoSuchRoom
	}
	return r, nil
}

// Join admits connID to roomID. The first join to an unknown id creates the
// room, binding it to origin and making connID its admin. Later joins must
// come from the same origin or fail with ErrAccessDenied, leaving the room
// untouched. Joining a room the connection already belongs to changes
// nothing. commit, if non-nil, runs under the room lock with the result and
// the chat log as of the join.
func (s *Store) Join(connID, roomID, name, origin string, commit func(Snapshot, []domain.ChatMessage)) (Snapshot, error) {
	for {
		r := s.getOrCreate(roomID)
		r.mu.Lock()
		if r.deleted {
			// Lost a race with the last member leaving; the id is free again.
			r.mu.Unlock()
			continue
		}

		created := len(r.order) == 0
		if created {
			r.origin = origin
			r.admin = connID
		} else if r.origin != origin {
			r.mu.Unlock()
			return Snapshot{RoomID: roomID}, ErrAccessDenied
		}

		_, exists := r.members[connID]
		if !exists {
			r.members[connID] = &Member{ID: connID, Name: name, JoinedAt: s.now()}
			r.order = append(r.order, connID)

			s.mu.Lock()
			rooms, ok := s.byConn[connID]
			if !ok {
				rooms = make(map[string]struct{})
				s.byConn[connID] = rooms
			}
			rooms[roomID] = struct{}{}
			s.mu.Unlock()
		}

		snap := r.snapshotLocked()
		snap.Created = created
		snap.Added = !exists
		if commit != nil {
			commit(snap, r.history.Messages())
		}
		r.mu.Unlock()
		return snap, nil
	}
}

// Leave removes connID from every room it belongs to. When the admin leaves
// the earliest-joined remaining member takes over. A room left empty is
// deleted together with its origin and history. commit, if non-nil, runs
// under each room's lock after the removal.
func (s *Store) Leave(connID string, commit func(LeaveResult)) []LeaveResult {
	var results []LeaveResult

	for _, roomID := range s.RoomsOf(connID) {
		s.mu.Lock()
		r, ok := s.rooms[roomID]
		s.mu.Unlock()
		if !ok {
			continue
		}

		r.mu.Lock()
		if r.deleted {
			r.mu.Unlock()
			continue
		}
		departed, ok := r.removeLocked(connID)
		if !ok {
			r.mu.Unlock()
			continue
		}

		res := LeaveResult{
			RoomID:   roomID,
			Departed: departed,
			WasAdmin: r.admin == connID,
		}
		if res.WasAdmin {
			r.admin = ""
			if len(r.order) > 0 {
				r.admin = r.order[0]
			}
		}

		s.mu.Lock()
		if rooms, ok := s.byConn[connID]; ok {
			delete(rooms, roomID)
			if len(rooms) == 0 {
				delete(s.byConn, connID)
			}
		}
		if len(r.order) == 0 {
			r.deleted = true
			r.origin = ""
			r.history = nil
			if s.rooms[roomID] == r {
				delete(s.rooms, roomID)
			}
			res.Deleted = true
			res.Remaining = Snapshot{RoomID: roomID}
		}
		s.mu.Unlock()

		if !res.Deleted {
			res.Remaining = r.snapshotLocked()
		}
		if commit != nil {
			commit(res)
		}
		r.mu.Unlock()

		results = append(results, res)
	}

	return results
}

// AppendChat appends msg to the room's log, evicting the oldest entry at
// capacity. The sender must be a member. commit, if non-nil, runs under the
// room lock after the append so broadcasts follow log order.
func (s *Store) AppendChat(roomID string, msg domain.ChatMessage, commit func(Snapshot)) error {
	r, err := s.lookup(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if _, ok := r.members[msg.SenderID]; !ok {
		return ErrNotMember
	}

	r.history.Append(msg)
	if commit != nil {
		commit(r.snapshotLocked())
	}
	return nil
}

// History returns the room's chat log, oldest first. Unknown rooms yield an
// empty slice.
func (s *Store) History(roomID string) []domain.ChatMessage {
	r, err := s.lookup(roomID)
	if err != nil {
		return []domain.ChatMessage{}
	}
	defer r.mu.Unlock()
	return r.history.Messages()
}

// View runs fn with a snapshot of the room while holding its lock.
func (s *Store) View(roomID string, fn func(Snapshot, []domain.ChatMessage)) error {
	r, err := s.lookup(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	fn(r.snapshotLocked(), r.history.Messages())
	return nil
}

// Snapshot returns a view of the room, or false if it does not exist.
func (s *Store) Snapshot(roomID string) (Snapshot, bool) {
	r, err := s.lookup(roomID)
	if err != nil {
		return Snapshot{}, false
	}
	defer r.mu.Unlock()
	return r.snapshotLocked(), true
}

// RoomsOf returns the sorted ids of the rooms connID belongs to.
func (s *Store) RoomsOf(connID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]string, 0, len(s.byConn[connID]))
	for id := range s.byConn[connID] {
		rooms = append(rooms, id)
	}
	sort.Strings(rooms)
	return rooms
}

// Stats returns room and membership counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Rooms: len(s.rooms)}
	for _, rooms := range s.byConn {
		st.Members += len(rooms)
	}
	return st
}
