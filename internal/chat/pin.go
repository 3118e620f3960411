package chat

import (
	"sort"
	"time"

	"github.com/weiawesome/wes-chat/internal/domain"
)

// Pin marks m as pinned by actor at now. pinned holds the messages of the
// group that are currently pinned; the new pin takes order len(pinned)+1.
func Pin(m *domain.Message, g *domain.Group, pinned []*domain.Message, actor string, now time.Time) error {
	if m.Kind != domain.DestinationGroup || m.Target != g.Name {
		return ErrNotGroupMessage
	}
	if !g.IsMember(actor) {
		return ErrNotMember
	}
	if m.Pinned {
		return ErrAlreadyPinned
	}

	at := now
	m.Pinned = true
	m.PinnedBy = actor
	m.PinnedAt = &at
	m.PinOrder = len(pinned) + 1

	if !containsID(g.PinnedMessages, m.ID) {
		g.PinnedMessages = append(g.PinnedMessages, m.ID)
	}
	return nil
}

// Unpin clears m's pin state and re-sequences the group's remaining pins.
// pinned holds the messages currently pinned in the group and may include
// m. The returned slice holds the remaining pins with their new orders.
func Unpin(m *domain.Message, g *domain.Group, pinned []*domain.Message, actor string) ([]*domain.Message, error) {
	if m.Kind != domain.DestinationGroup || m.Target != g.Name {
		return nil, ErrNotGroupMessage
	}
	if !g.IsMember(actor) {
		return nil, ErrNotMember
	}
	if !m.Pinned {
		return nil, ErrNotPinned
	}

	m.Pinned = false
	m.PinnedBy = ""
	m.PinnedAt = nil
	m.PinOrder = 0

	ids := make([]string, 0, len(g.PinnedMessages))
	for _, id := range g.PinnedMessages {
		if id != m.ID {
			ids = append(ids, id)
		}
	}
	g.PinnedMessages = ids

	remaining := make([]*domain.Message, 0, len(pinned))
	for _, p := range pinned {
		if p.ID != m.ID {
			remaining = append(remaining, p)
		}
	}
	Resequence(remaining)
	return remaining, nil
}

// Resequence orders pinned by ascending pin time, ties broken by id, and
// assigns the dense orders 1..N.
func Resequence(pinned []*domain.Message) {
	sort.SliceStable(pinned, func(i, j int) bool {
		a, b := pinnedAt(pinned[i]), pinnedAt(pinned[j])
		if !a.Equal(b) {
			return a.Before(b)
		}
		return pinned[i].ID < pinned[j].ID
	})
	for i, p := range pinned {
		p.PinOrder = i + 1
	}
}

// PinnedOrder returns the ids of pinned ordered by PinOrder.
func PinnedOrder(pinned []*domain.Message) []string {
	sorted := make([]*domain.Message, len(pinned))
	copy(sorted, pinned)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PinOrder < sorted[j].PinOrder })

	ids := make([]string, len(sorted))
	for i, p := range sorted {
		ids[i] = p.ID
	}
	return ids
}

func pinnedAt(m *domain.Message) time.Time {
	if m.PinnedAt == nil {
		return time.Time{}
	}
	return *m.PinnedAt
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
