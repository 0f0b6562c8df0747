package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-meet/internal/domain"
)

const (
	ipA = "10.0.0.1"
	ipB = "10.0.0.2"
)

func TestStore_JoinCreatesRoom(t *testing.T) {
	s := New(0)

	snap, err := s.Join("c1", "r1", "Ann", ipA, nil)
	require.NoError(t, err)

	assert.True(t, snap.Created)
	assert.True(t, snap.Added)
	assert.Equal(t, "r1", snap.RoomID)
	assert.Equal(t, ipA, snap.Origin)
	assert.Equal(t, "c1", snap.AdminID)
	assert.Equal(t, []string{"c1"}, snap.MemberIDs())
	assert.Equal(t, []string{"r1"}, s.RoomsOf("c1"))
}

func TestStore_OriginIsFixedByFirstJoin(t *testing.T) {
	s := New(0)
	_, err := s.Join("c1", "r1", "", ipA, nil)
	require.NoError(t, err)

	committed := false
	snap, err := s.Join("c2", "r1", "", ipB, func(Snapshot, []domain.ChatMessage) { committed = true })
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.False(t, committed)
	assert.Equal(t, "r1", snap.RoomID)
	assert.Empty(t, snap.Members)
	assert.Empty(t, s.RoomsOf("c2"))

	cur, ok := s.Snapshot("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"c1"}, cur.MemberIDs())
	assert.Equal(t, ipA, cur.Origin)

	snap, err = s.Join("c3", "r1", "", ipA, nil)
	require.NoError(t, err)
	assert.False(t, snap.Created)
	assert.Equal(t, []string{"c1", "c3"}, snap.MemberIDs())
	assert.Equal(t, "c1", snap.AdminID)
}

func TestStore_RejoinIsIdempotent(t *testing.T) {
	s := New(0)
	_, err := s.Join("c1", "r1", "Ann", ipA, nil)
	require.NoError(t, err)

	snap, err := s.Join("c1", "r1", "Renamed", ipA, nil)
	require.NoError(t, err)
	assert.False(t, snap.Added)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, "Ann", snap.Members[0].Name)
}

func TestStore_CommitSeesPostJoinState(t *testing.T) {
	s := New(0)
	var seen Snapshot
	_, err := s.Join("c1", "r1", "", ipA, func(snap Snapshot, hist []domain.ChatMessage) {
		seen = snap
		assert.Empty(t, hist)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, seen.MemberIDs())
	assert.True(t, seen.Created)

	require.NoError(t, s.AppendChat("r1", domain.ChatMessage{SenderID: "c1", Text: "hi"}, nil))
	var replay []domain.ChatMessage
	_, err = s.Join("c2", "r1", "", ipA, func(_ Snapshot, hist []domain.ChatMessage) { replay = hist })
	require.NoError(t, err)
	require.Len(t, replay, 1)
	assert.Equal(t, "hi", replay[0].Text)
}

func TestStore_AdminReelection(t *testing.T) {
	s := New(0)
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := s.Join(id, "r1", "", ipA, nil)
		require.NoError(t, err)
	}

	results := s.Leave("c1", nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].WasAdmin)
	assert.False(t, results[0].Deleted)
	assert.Equal(t, "c2", results[0].Remaining.AdminID)
	assert.Equal(t, []string{"c2", "c3"}, results[0].Remaining.MemberIDs())

	results = s.Leave("c3", nil)
	require.Len(t, results, 1)
	assert.False(t, results[0].WasAdmin)
	assert.Equal(t, "c2", results[0].Remaining.AdminID)
}

func TestStore_ReelectionFollowsJoinOrderNotID(t *testing.T) {
	s := New(0)
	for _, id := range []string{"zz", "mm", "aa"} {
		_, err := s.Join(id, "r1", "", ipA, nil)
		require.NoError(t, err)
	}
	res := s.Leave("zz", nil)
	require.Len(t, res, 1)
	assert.Equal(t, "mm", res[0].Remaining.AdminID)
}

func TestStore_LastLeaveDeletesRoom(t *testing.T) {
	s := New(0)
	_, err := s.Join("c1", "r1", "", ipA, nil)
	require.NoError(t, err)
	require.NoError(t, s.AppendChat("r1", domain.ChatMessage{SenderID: "c1", Text: "hi"}, nil))

	var committed LeaveResult
	results := s.Leave("c1", func(res LeaveResult) { committed = res })
	require.Len(t, results, 1)
	assert.True(t, results[0].Deleted)
	assert.True(t, committed.Deleted)
	assert.Empty(t, committed.Remaining.Members)

	_, ok := s.Snapshot("r1")
	assert.False(t, ok)
	assert.Empty(t, s.History("r1"))
	assert.Equal(t, Stats{}, s.Stats())

	// Same id is a brand new room with a fresh origin and no history.
	snap, err := s.Join("c2", "r1", "", ipB, nil)
	require.NoError(t, err)
	assert.True(t, snap.Created)
	assert.Equal(t, ipB, snap.Origin)
	assert.Equal(t, "c2", snap.AdminID)
	assert.Empty(t, s.History("r1"))
}

func TestStore_LeaveUnknownConnection(t *testing.T) {
	s := New(0)
	called := false
	assert.Empty(t, s.Leave("ghost", func(LeaveResult) { called = true }))
	assert.False(t, called)
}

func TestStore_LeaveAllRooms(t *testing.T) {
	s := New(0)
	_, err := s.Join("c1", "r1", "", ipA, nil)
	require.NoError(t, err)
	_, err = s.Join("c1", "r2", "", ipA, nil)
	require.NoError(t, err)
	_, err = s.Join("c2", "r2", "", ipA, nil)
	require.NoError(t, err)

	results := s.Leave("c1", nil)
	require.Len(t, results, 2)
	assert.Equal(t, "r1", results[0].RoomID)
	assert.True(t, results[0].Deleted)
	assert.Equal(t, "r2", results[1].RoomID)
	assert.False(t, results[1].Deleted)
	assert.Equal(t, "c2", results[1].Remaining.AdminID)
	assert.Empty(t, s.RoomsOf("c1"))
}

func TestStore_AppendChat(t *testing.T) {
	s := New(3)

	err := s.AppendChat("nope", domain.ChatMessage{SenderID: "c1"}, nil)
	assert.ErrorIs(t, err, ErrNoSuchRoom)

	_, err = s.Join("c1", "r1", "", ipA, nil)
	require.NoError(t, err)

	err = s.AppendChat("r1", domain.ChatMessage{SenderID: "outsider", Text: "x"}, nil)
	assert.ErrorIs(t, err, ErrNotMember)

	var broadcastTo []string
	for i := 0; i < 5; i++ {
		err := s.AppendChat("r1", domain.ChatMessage{SenderID: "c1", Text: fmt.Sprint(i)}, func(snap Snapshot) {
			broadcastTo = snap.MemberIDs()
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"c1"}, broadcastTo)

	hist := s.History("r1")
	require.Len(t, hist, 3)
	assert.Equal(t, "2", hist[0].Text)
	assert.Equal(t, "4", hist[2].Text)
}

func TestStore_HistoryKeepsNewest200(t *testing.T) {
	s := New(domain.MaxHistory)
	_, err := s.Join("c1", "r1", "", ipA, nil)
	require.NoError(t, err)

	for i := 1; i <= 250; i++ {
		require.NoError(t, s.AppendChat("r1", domain.ChatMessage{SenderID: "c1", Text: fmt.Sprint(i)}, nil))
	}

	var hist []domain.ChatMessage
	require.NoError(t, s.View("r1", func(_ Snapshot, h []domain.ChatMessage) { hist = h }))
	require.Len(t, hist, 200)
	assert.Equal(t, "51", hist[0].Text)
	assert.Equal(t, "250", hist[199].Text)
}

func TestStore_ViewUnknownRoom(t *testing.T) {
	s := New(0)
	err := s.View("r1", func(Snapshot, []domain.ChatMessage) { t.Fatal("unexpected call") })
	assert.ErrorIs(t, err, ErrNoSuchRoom)
}

func TestSnapshot_Helpers(t *testing.T) {
	snap := Snapshot{Members: []Member{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	assert.Equal(t, []string{"a", "c"}, snap.PeersOf("b"))
	assert.Equal(t, []string{"a", "b", "c"}, snap.PeersOf("x"))
	assert.True(t, snap.Has("c"))
	assert.False(t, snap.Has("x"))
}

func TestStore_ConcurrentFirstJoins(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := New(0)
		const n = 16
		var created atomic.Int32
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func(i int) {
				defer wg.Done()
				snap, err := s.Join(fmt.Sprintf("c%d", i), "r1", "", ipA, nil)
				assert.NoError(t, err)
				if snap.Created {
					created.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.EqualValues(t, 1, created.Load())
		snap, ok := s.Snapshot("r1")
		require.True(t, ok)
		assert.Len(t, snap.Members, n)
		assert.Equal(t, snap.Members[0].ID, snap.AdminID)
	}
}

func TestStore_ConcurrentJoinLeaveKeepsOneAdmin(t *testing.T) {
	s := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			for j := 0; j < 20; j++ {
				_, err := s.Join(id, "r1", "", ipA, nil)
				assert.NoError(t, err)
				if snap, ok := s.Snapshot("r1"); ok {
					assert.True(t, snap.Has(snap.AdminID), "admin must be a member")
				}
				s.Leave(id, func(res LeaveResult) {
					if res.Deleted {
						assert.Empty(t, res.Remaining.AdminID)
						return
					}
					assert.True(t, res.Remaining.Has(res.Remaining.AdminID))
				})
			}
		}(i)
	}
	wg.Wait()

	_, ok := s.Snapshot("r1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Stats().Members)
}
