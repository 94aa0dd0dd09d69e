package live

import (
	"sort"
	"sync"

	"github.com/livemap/client/common"
	"github.com/livemap/client/logger"
	"github.com/livemap/client/network"
)

// LocalClientId is sent in outgoing cursor packets, the server replaces it
// with the id it assigned to this connection.
const LocalClientId uint32 = 77

// Presence broadcasts the local cursor and colour. Cursor moves go out on
// the quiet path since they fire on every mouse move.
type Presence struct {
	sync.Mutex
	sender sender
	color  common.Color
}

func NewPresence(s sender, color common.Color) *Presence {
	return &Presence{sender: s, color: color}
}

func (p *Presence) Color() common.Color {
	p.Lock()
	defer p.Unlock()
	return p.color
}

func (p *Presence) UpdateCursor(pos common.Position) error {
	if !p.sender.State().CanRequest() {
		return ErrNotReady
	}
	return p.sender.sendQuiet(&network.ClientUpdateCursor{Cursor: common.Cursor{
		Id:       LocalClientId,
		Position: pos,
		Color:    p.Color(),
	}})
}

func (p *Presence) SetColor(color common.Color) error {
	p.Lock()
	p.color = color
	p.Unlock()

	if !p.sender.State().CanRequest() {
		return nil
	}
	logger.Printf("live.Presence color %s\n", color)
	return p.sender.send(&network.ClientColorUpdate{ClientId: LocalClientId, Color: color})
}

// cursorMap holds the remote cursors of one session. It is only touched by
// the consumer goroutine.
type cursorMap map[uint32]*common.Cursor

func (m cursorMap) upsert(c common.Cursor) common.Cursor {
	old, found := m[c.Id]
	if !found {
		m[c.Id] = &c
		return c
	}
	if old.Color != c.Color {
		logger.Printf("live.Presence cursor %d color %s\n", c.Id, c.Color)
	}
	*old = c
	return c
}

func (m cursorMap) recolor(id uint32, color common.Color) common.Cursor {
	old, found := m[id]
	if !found {
		old = &common.Cursor{Id: id}
		m[id] = old
	}
	if old.Color != color {
		logger.Printf("live.Presence cursor %d color %s\n", id, color)
		old.Color = color
	}
	return *old
}

func (m cursorMap) ensureHost() {
	if _, found := m[common.HostClientId]; found {
		return
	}
	m[common.HostClientId] = &common.Cursor{Id: common.HostClientId, Color: common.HostColor}
}

func (m cursorMap) snapshot() []common.Cursor {
	cursors := make([]common.Cursor, 0, len(m))
	for _, c := range m {
		cursors = append(cursors, *c)
	}
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].Id < cursors[j].Id })
	return cursors
}
