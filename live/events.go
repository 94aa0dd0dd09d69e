package live

import (
	"context"

	"github.com/livemap/client/common"
	"github.com/livemap/client/logger"
)

type event interface{}

type mapInfoEvent struct {
	info MapInfo
}

type acceptedEvent struct{}

type versionEvent struct {
	version uint32
}

type chatEvent struct {
	speaker string
	message string
}

type nodesEvent struct {
	nodes []NodeUpdate
}

type cursorEvent struct {
	cursor common.Cursor
}

type colorEvent struct {
	id    uint32
	color common.Color
}

type operationEvent struct {
	label   string
	percent uint32
	start   bool
}

type queryEvent struct {
	reply chan *Status
}

type disconnectEvent struct{}

type Status struct {
	Session      string          `json:"session"`
	State        string          `json:"state"`
	Map          MapInfo         `json:"map"`
	Color        string          `json:"color"`
	Cursors      []common.Cursor `json:"cursors"`
	PendingNodes int             `json:"pending_nodes"`
}

// consume is the only goroutine that calls into the editor, notifier and
// renderer, and the only owner of the session's map info and cursors.
func (c *Client) consume(s *session) {
	defer close(s.done)

	for ev := range s.events {
		switch ev := ev.(type) {
		case *mapInfoEvent:
			s.info = ev.info
			c.editor.SetMapInfo(ev.info)
		case *acceptedEvent:
			s.cursors.ensureHost()
			err := c.editor.Accepted(s.info)
			if err != nil {
				logger.Printf("live.Client editor accept %s %v\n", s.id, err)
				c.closeSession(s, err)
				continue
			}
			err = c.sendReady(s)
			if err != nil {
				logger.Printf("live.Client ready %s %v\n", s.id, err)
			}
		case *versionEvent:
			logger.Printf("live.Client CHANGE_CLIENT_VERSION %s %d\n", s.id, ev.version)
			err := c.editor.ReloadVersion(ev.version)
			if err != nil {
				logger.Printf("live.Client editor reload %s %v\n", s.id, err)
				c.closeSession(s, err)
				continue
			}
			err = c.sendReady(s)
			if err != nil {
				logger.Printf("live.Client ready %s %v\n", s.id, err)
			}
		case *chatEvent:
			c.notifier.Chat(ev.speaker, ev.message)
		case *nodesEvent:
			c.editor.ApplyNodes(ev.nodes)
		case *cursorEvent:
			c.renderer.UpdateCursor(s.cursors.upsert(ev.cursor))
		case *colorEvent:
			c.renderer.UpdateCursor(s.cursors.recolor(ev.id, ev.color))
		case *operationEvent:
			if ev.start {
				c.notifier.StartOperation(ev.label)
			} else {
				c.notifier.UpdateOperation(ev.percent)
			}
		case *queryEvent:
			ev.reply <- &Status{
				Session:      s.id,
				State:        c.State().String(),
				Map:          s.info,
				Color:        c.presence.Color().String(),
				Cursors:      s.cursors.snapshot(),
				PendingNodes: c.nodes.Len(),
			}
		case *disconnectEvent:
			c.notifier.Disconnected(s.closeReason())
			return
		}
	}
}

// Snapshot asks the consumer for the current session status.
func (c *Client) Snapshot(ctx context.Context) (*Status, error) {
	s := c.current()
	if s == nil {
		return &Status{State: c.State().String(), Color: c.presence.Color().String()}, nil
	}
	q := &queryEvent{reply: make(chan *Status, 1)}
	select {
	case s.events <- q:
	case <-s.done:
		return c.closedStatus(s), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case st := <-q.reply:
		return st, nil
	case <-s.done:
		return c.closedStatus(s), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) closedStatus(s *session) *Status {
	return &Status{Session: s.id, State: c.State().String(), Color: c.presence.Color().String()}
}
