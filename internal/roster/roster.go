// Package roster derives the display-ready participant list of a room.
package roster

import (
	"strconv"

	"github.com/weiawesome/wes-meet/internal/domain"
	"github.com/weiawesome/wes-meet/internal/store"
)

const (
	adminFallbackName  = "Admin"
	personFallbackName = "Person"
)

// Build returns the roster for members given in join order. The admin is
// listed first; everyone else follows in join order. Unnamed non-admin
// members are numbered Person1, Person2, ... counting only unnamed members.
func Build(adminID string, members []store.Member) []domain.RosterEntry {
	out := make([]domain.RosterEntry, 0, len(members))

	for _, m := range members {
		if m.ID != adminID {
			continue
		}
		name := m.Name
		if name == "" {
			name = adminFallbackName
		}
		out = append(out, domain.RosterEntry{ID: m.ID, Name: name, Role: domain.RoleAdmin})
		break
	}

	unnamed := 0
	for _, m := range members {
		if m.ID == adminID {
			continue
		}
		name := m.Name
		if name == "" {
			unnamed++
			name = personFallbackName + strconv.Itoa(unnamed)
		}
		out = append(out, domain.RosterEntry{ID: m.ID, Name: name, Role: domain.RolePerson})
	}

	return out
}

// FromSnapshot builds the roster of a store snapshot.
func FromSnapshot(snap store.Snapshot) []domain.RosterEntry {
	return Build(snap.AdminID, snap.Members)
}
