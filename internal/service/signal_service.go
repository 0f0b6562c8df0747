package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-meet/internal/audit"
	"github.com/weiawesome/wes-meet/internal/domain"
	"github.com/weiawesome/wes-meet/internal/events"
	"github.com/weiawesome/wes-meet/internal/hub"
	"github.com/weiawesome/wes-meet/internal/roster"
	"github.com/weiawesome/wes-meet/internal/store"
	pkglog "github.com/weiawesome/wes-meet/pkg/log"
)

type signalService struct {
	hub    *hub.Hub
	store  *store.Store
	events events.RoomEventProducer

	now   func() time.Time
	newID func() string
}

// NewSignalService creates a new SignalService instance. A nil producer
// disables lifecycle events.
func NewSignalService(h *hub.Hub, st *store.Store, producer events.RoomEventProducer) SignalService {
	if producer == nil {
		producer = events.Nop{}
	}
	return &signalService{
		hub:    h,
		store:  st,
		events: producer,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

func cleanName(name string) string {
	return domain.Truncate(strings.TrimSpace(name), domain.MaxNameLength)
}

func (s *signalService) broadcast(ctx context.Context, ids []string, msg interface{}) {
	if err := s.hub.SendToClients(ids, msg); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to encode broadcast")
	}
}

func (s *signalService) rosterMessage(snap store.Snapshot) *domain.RosterMessage {
	return &domain.RosterMessage{
		Type:         domain.MsgTypeRoster,
		RoomID:       snap.RoomID,
		Participants: roster.FromSnapshot(snap),
	}
}

func (s *signalService) HandleJoin(ctx context.Context, c *hub.Client, roomID, name string) error {
	if roomID == "" {
		return fmt.Errorf("%w: join without room_id", ErrInvalidMessage)
	}
	name = cleanName(name)
	l := pkglog.Ctx(ctx)

	snap, err := s.store.Join(c.ID, roomID, name, c.RemoteIP, func(snap store.Snapshot, history []domain.ChatMessage) {
		if !snap.Added {
			return
		}
		// Joiner first learns who is there and what was said, then everyone
		// gets the new roster.
		s.broadcast(ctx, []string{c.ID}, &domain.JoinedMessage{
			Type:   domain.MsgTypeJoined,
			RoomID: roomID,
			SelfID: c.ID,
			Peers:  snap.PeersOf(c.ID),
		})
		s.broadcast(ctx, []string{c.ID}, &domain.ChatHistoryMessage{
			Type:     domain.MsgTypeChatHistory,
			RoomID:   roomID,
			Messages: history,
		})
		s.broadcast(ctx, snap.MemberIDs(), s.rosterMessage(snap))
	})
	if errors.Is(err, store.ErrAccessDenied) {
		audit.LogWithDetail(ctx, audit.ActionAccessDenied, c.ID, roomID, c.RemoteIP, "join rejected: origin mismatch")
		s.events.AccessDenied(roomID, c.ID, c.RemoteIP)
		return c.SendMessage(domain.NewAccessDenied(roomID))
	}
	if err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}

	if !snap.Added {
		l.Debug().Str(pkglog.FieldRoomID, roomID).Msg("repeated join ignored")
		return nil
	}

	isAdmin := snap.AdminID == c.ID
	if snap.Created {
		s.events.RoomOpened(roomID, snap.Origin)
		l.Info().Str(pkglog.FieldRoomID, roomID).Msg("room opened")
	}
	s.events.ParticipantJoined(roomID, c.ID, name, isAdmin, len(snap.Members))
	audit.LogWithDetail(ctx, audit.ActionJoin, c.ID, roomID, strconv.Itoa(len(snap.Members)), "joined room")
	return nil
}

func (s *signalService) HandleSignal(ctx context.Context, c *hub.Client, msgType, to string, payload json.RawMessage) error {
	if !domain.IsSignalType(msgType) {
		return fmt.Errorf("%w: not a signaling type %q", ErrInvalidMessage, msgType)
	}
	if to == "" || domain.IsEmptyPayload(payload) {
		return fmt.Errorf("%w: %s without target or payload", ErrInvalidMessage, msgType)
	}

	delivered, err := s.hub.SendToClient(to, &domain.RelayedSignal{
		Type:    msgType,
		From:    c.ID,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("relay %s: %w", msgType, err)
	}
	if !delivered {
		l := pkglog.Ctx(ctx)
		l.Debug().Str(pkglog.FieldPeerID, to).Str(pkglog.FieldMsgType, msgType).Msg("relay target unreachable")
	}
	return nil
}

func (s *signalService) HandleChat(ctx context.Context, c *hub.Client, roomID, name, text string) error {
	if roomID == "" || text == "" {
		return fmt.Errorf("%w: chat without room_id or text", ErrInvalidMessage)
	}

	display := cleanName(name)
	if display == "" {
		display = c.ID
	}
	msg := domain.ChatMessage{
		SenderID:  c.ID,
		Name:      display,
		Text:      domain.Truncate(text, domain.MaxTextLength),
		Timestamp: s.now().UnixMilli(),
	}

	err := s.store.AppendChat(roomID, msg, func(snap store.Snapshot) {
		s.broadcast(ctx, snap.MemberIDs(), &domain.ChatBroadcast{
			Type:        domain.MsgTypeChat,
			RoomID:      roomID,
			ChatMessage: msg,
		})
	})
	if errors.Is(err, store.ErrNoSuchRoom) || errors.Is(err, store.ErrNotMember) {
		return fmt.Errorf("%w: chat to %s: %w", ErrInvalidMessage, roomID, err)
	}
	if err != nil {
		return fmt.Errorf("chat to %s: %w", roomID, err)
	}

	audit.LogWithDetail(ctx, audit.ActionChat, c.ID, roomID, strconv.Itoa(len(msg.Text)), "chat message")
	return nil
}

func (s *signalService) HandleFile(ctx context.Context, c *hub.Client, req domain.FileRequest) error {
	if req.RoomID == "" || req.Filename == "" || domain.IsEmptyPayload(req.Payload) {
		return fmt.Errorf("%w: file without room_id, filename or payload", ErrInvalidMessage)
	}

	display := cleanName(req.Name)
	if display == "" {
		display = c.ID
	}
	msg := domain.FileMessage{
		ID:        s.newID(),
		SenderID:  c.ID,
		Name:      display,
		Filename:  domain.Truncate(req.Filename, domain.MaxFilenameLength),
		MimeType:  req.MimeType,
		Size:      req.Size,
		Payload:   req.Payload,
		Timestamp: s.now().UnixMilli(),
	}

	member := true
	err := s.store.View(req.RoomID, func(snap store.Snapshot, _ []domain.ChatMessage) {
		if !snap.Has(c.ID) {
			member = false
			return
		}
		s.broadcast(ctx, snap.MemberIDs(), &domain.FileBroadcast{
			Type:        domain.MsgTypeFile,
			RoomID:      req.RoomID,
			FileMessage: msg,
		})
	})
	if errors.Is(err, store.ErrNoSuchRoom) {
		return fmt.Errorf("%w: file to %s: %w", ErrInvalidMessage, req.RoomID, err)
	}
	if err != nil {
		return fmt.Errorf("file to %s: %w", req.RoomID, err)
	}
	if !member {
		return fmt.Errorf("%w: file to %s: %w", ErrInvalidMessage, req.RoomID, store.ErrNotMember)
	}

	audit.LogWithDetail(ctx, audit.ActionFile, c.ID, req.RoomID, msg.Filename, "file shared")
	return nil
}

func (s *signalService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	results := s.store.Leave(c.ID, func(res store.LeaveResult) {
		remaining := res.Remaining.MemberIDs()
		s.broadcast(ctx, remaining, &domain.PeerLeftMessage{
			Type:   domain.MsgTypePeerLeft,
			RoomID: res.RoomID,
			PeerID: c.ID,
		})
		if !res.Deleted {
			s.broadcast(ctx, remaining, s.rosterMessage(res.Remaining))
		}
	})

	l := pkglog.Ctx(ctx)
	for _, res := range results {
		newAdmin := ""
		if res.WasAdmin {
			newAdmin = res.Remaining.AdminID
		}
		s.events.ParticipantLeft(res.RoomID, c.ID, res.WasAdmin, newAdmin, len(res.Remaining.Members))
		audit.Log(ctx, audit.ActionLeave, c.ID, res.RoomID, "left room")

		if res.Deleted {
			s.events.RoomClosed(res.RoomID)
			l.Info().Str(pkglog.FieldRoomID, res.RoomID).Msg("room closed")
		} else if newAdmin != "" {
			l.Info().Str(pkglog.FieldRoomID, res.RoomID).Str(pkglog.FieldPeerID, newAdmin).Msg("admin re-elected")
		}
	}
	return nil
}

func (s *signalService) RoomSummary(roomID string) (domain.RoomSummary, bool) {
	var summary domain.RoomSummary
	err := s.store.View(roomID, func(snap store.Snapshot, history []domain.ChatMessage) {
		summary = domain.RoomSummary{
			RoomID:       roomID,
			MemberCount:  len(snap.Members),
			HistorySize:  len(history),
			Participants: roster.FromSnapshot(snap),
		}
	})
	if err != nil {
		return domain.RoomSummary{}, false
	}
	return summary, true
}

func (s *signalService) Stats() Stats {
	st := s.store.Stats()
	return Stats{
		Rooms:       st.Rooms,
		Members:     st.Members,
		Connections: s.hub.Count(),
	}
}
