package live

import "github.com/livemap/client/common"

type MapInfo struct {
	Name   string `json:"name"`
	Width  uint16 `json:"width"`
	Height uint16 `json:"height"`
}

type NodeUpdate struct {
	Address common.NodeAddress
	Data    []byte
}

// Editor is the map model. Every call happens on the client's single
// consumer goroutine.
type Editor interface {
	SetMapInfo(info MapInfo)
	Accepted(info MapInfo) error
	ReloadVersion(version uint32) error
	// ApplyNodes receives all nodes of one frame as a single edit.
	ApplyNodes(nodes []NodeUpdate)
}

type Notifier interface {
	Status(text string)
	Chat(speaker, message string)
	StartOperation(label string)
	UpdateOperation(percent uint32)
	Disconnected(reason error)
}

type PresenceRenderer interface {
	UpdateCursor(cursor common.Cursor)
}

type Recorder interface {
	RecordFrame(session string, inbound bool, payload []byte) error
}
