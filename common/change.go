package common

import (
	"encoding/binary"
	"fmt"
)

type ChangeKind uint8

const (
	ChangeTile ChangeKind = iota + 1
	ChangeHouseExit
	ChangeWaypoint
)

const (
	NodeTypeChangeList = 0x00
	NodeTypeTile       = 0x05

	tileHeaderSize = 5
)

// Change references one entry of the editor dirty list. Tile holds the
// editor encoded tile attributes and items, the client never looks inside.
type Change struct {
	Kind     ChangeKind
	Position Position
	Tile     []byte
}

func (k ChangeKind) String() string {
	switch k {
	case ChangeTile:
		return "tile"
	case ChangeHouseExit:
		return "house-exit"
	case ChangeWaypoint:
		return "waypoint"
	}
	return fmt.Sprintf("change(%d)", uint8(k))
}

// EncodeTileChanges serializes the tile changes into one or more change list
// trees, each no longer than limit bytes. Other change kinds are skipped.
func EncodeTileChanges(changes []Change, limit int) ([][]byte, int, error) {
	var blobs [][]byte
	var current []byte
	var count int
	for _, c := range changes {
		if c.Kind != ChangeTile {
			continue
		}
		w := NewNodeWriter()
		w.StartNode(NodeTypeTile)
		w.WriteUint16(c.Position.X)
		w.WriteUint16(c.Position.Y)
		w.WriteUint8(c.Position.Z)
		w.Write(c.Tile)
		w.EndNode()
		tile := w.Bytes()
		if len(tile)+3 > limit {
			return nil, 0, fmt.Errorf("tile %s encodes to %d bytes over %d", c.Position, len(tile), limit)
		}
		if current != nil && len(current)+len(tile)+1 > limit {
			blobs = append(blobs, append(current, NodeEnd))
			current = nil
		}
		if current == nil {
			current = []byte{NodeStart, NodeTypeChangeList}
		}
		current = append(current, tile...)
		count++
	}
	if current != nil {
		blobs = append(blobs, append(current, NodeEnd))
	}
	return blobs, count, nil
}

func DecodeTileChanges(blob []byte) ([]Change, error) {
	root, err := ParseNodeTree(blob)
	if err != nil {
		return nil, err
	}
	if root.Type != NodeTypeChangeList {
		return nil, fmt.Errorf("change list root type %d: %w", root.Type, ErrNodeTreeMalformed)
	}
	changes := make([]Change, 0, len(root.Children))
	for _, n := range root.Children {
		if n.Type != NodeTypeTile || len(n.Props) < tileHeaderSize {
			return nil, fmt.Errorf("tile node type %d size %d: %w", n.Type, len(n.Props), ErrNodeTreeMalformed)
		}
		changes = append(changes, Change{
			Kind: ChangeTile,
			Position: Position{
				X: binary.LittleEndian.Uint16(n.Props[0:]),
				Y: binary.LittleEndian.Uint16(n.Props[2:]),
				Z: n.Props[4],
			},
			Tile: n.Props[tileHeaderSize:],
		})
	}
	return changes, nil
}
