package common

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	NodeStart  = 0xFE
	NodeEnd    = 0xFF
	NodeEscape = 0xFD
)

var ErrNodeTreeMalformed = errors.New("malformed node tree")

// NodeWriter produces the escaped node tree stream shared by change lists
// and node payloads. Every special byte inside node data is prefixed with
// NodeEscape.
type NodeWriter struct {
	buf   []byte
	depth int
}

func NewNodeWriter() *NodeWriter {
	return &NodeWriter{}
}

func (w *NodeWriter) StartNode(typ uint8) {
	w.buf = append(w.buf, NodeStart)
	w.WriteUint8(typ)
	w.depth++
}

func (w *NodeWriter) EndNode() error {
	if w.depth == 0 {
		return fmt.Errorf("end node at depth 0: %w", ErrNodeTreeMalformed)
	}
	w.buf = append(w.buf, NodeEnd)
	w.depth--
	return nil
}

func (w *NodeWriter) WriteUint8(v uint8) {
	w.Write([]byte{v})
}

func (w *NodeWriter) WriteUint16(v uint16) {
	var s [2]byte
	binary.LittleEndian.PutUint16(s[:], v)
	w.Write(s[:])
}

func (w *NodeWriter) WriteUint32(v uint32) {
	var s [4]byte
	binary.LittleEndian.PutUint32(s[:], v)
	w.Write(s[:])
}

func (w *NodeWriter) Write(p []byte) {
	for _, c := range p {
		switch c {
		case NodeStart, NodeEnd, NodeEscape:
			w.buf = append(w.buf, NodeEscape)
		}
		w.buf = append(w.buf, c)
	}
}

func (w *NodeWriter) Len() int {
	return len(w.buf)
}

func (w *NodeWriter) Bytes() []byte {
	return w.buf
}

type BinaryNode struct {
	Type     uint8
	Props    []byte
	Children []*BinaryNode
}

func ParseNodeTree(b []byte) (*BinaryNode, error) {
	node, n, err := parseNode(b, 0)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, fmt.Errorf("trailing %d bytes: %w", len(b)-n, ErrNodeTreeMalformed)
	}
	return node, nil
}

func parseNode(b []byte, i int) (*BinaryNode, int, error) {
	if i >= len(b) || b[i] != NodeStart {
		return nil, i, fmt.Errorf("node start at %d: %w", i, ErrNodeTreeMalformed)
	}
	i++
	if i < len(b) && b[i] == NodeEscape {
		i++
	}
	if i >= len(b) {
		return nil, i, fmt.Errorf("node type at %d: %w", i, ErrNodeTreeMalformed)
	}
	node := &BinaryNode{Type: b[i]}
	i++
	for i < len(b) {
		switch b[i] {
		case NodeEscape:
			if i+1 >= len(b) {
				return nil, i, fmt.Errorf("dangling escape at %d: %w", i, ErrNodeTreeMalformed)
			}
			node.Props = append(node.Props, b[i+1])
			i += 2
		case NodeStart:
			child, n, err := parseNode(b, i)
			if err != nil {
				return nil, n, err
			}
			node.Children = append(node.Children, child)
			i = n
		case NodeEnd:
			return node, i + 1, nil
		default:
			node.Props = append(node.Props, b[i])
			i++
		}
	}
	return nil, i, fmt.Errorf("node %d not terminated: %w", node.Type, ErrNodeTreeMalformed)
}
