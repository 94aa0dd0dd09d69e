package network

import (
	"errors"
	"fmt"

	"github.com/livemap/client/common"
)

const (
	PacketHelloFromClient    = 0x10
	PacketReadyClient        = 0x11
	PacketRequestNodes       = 0x20
	PacketChangeList         = 0x21
	PacketClientUpdateCursor = 0x30
	PacketClientTalk         = 0x31
	PacketClientColorUpdate  = 0x32

	PacketHelloFromServer     = 0x80
	PacketKick                = 0x81
	PacketAcceptedClient      = 0x82
	PacketChangeClientVersion = 0x83
	PacketServerTalk          = 0x84
	PacketColorUpdate         = 0x85
	PacketNode                = 0x90
	PacketCursorUpdate        = 0x91
	PacketStartOperation      = 0x92
	PacketUpdateOperation     = 0x93
)

var ErrUnknownOpcode = errors.New("unknown opcode")

var (
	clientOpcodes = map[uint8]string{
		PacketHelloFromClient:    "HELLO_FROM_CLIENT",
		PacketReadyClient:        "READY_CLIENT",
		PacketRequestNodes:       "REQUEST_NODES",
		PacketChangeList:         "CHANGE_LIST",
		PacketClientUpdateCursor: "CLIENT_UPDATE_CURSOR",
		PacketClientTalk:         "CLIENT_TALK",
		PacketClientColorUpdate:  "CLIENT_COLOR_UPDATE",
	}
	serverOpcodes = map[uint8]string{
		PacketHelloFromServer:     "HELLO_FROM_SERVER",
		PacketKick:                "KICK",
		PacketAcceptedClient:      "ACCEPTED_CLIENT",
		PacketChangeClientVersion: "CHANGE_CLIENT_VERSION",
		PacketServerTalk:          "SERVER_TALK",
		PacketColorUpdate:         "COLOR_UPDATE",
		PacketNode:                "NODE",
		PacketCursorUpdate:        "CURSOR_UPDATE",
		PacketStartOperation:      "START_OPERATION",
		PacketUpdateOperation:     "UPDATE_OPERATION",
	}
)

type Packet interface {
	Opcode() uint8
}

type HelloFromClient struct {
	EditorVersion   uint32
	ProtocolVersion uint32
	MapVersion      uint32
	Name            string
	Password        string
}

type ReadyClient struct{}

type RequestNodes struct {
	Nodes []common.NodeAddress
}

type ChangeList struct {
	Data []byte
}

type ClientUpdateCursor struct {
	Cursor common.Cursor
}

type ClientTalk struct {
	Message string
}

type ClientColorUpdate struct {
	ClientId uint32
	Color    common.Color
}

type HelloFromServer struct {
	MapName string
	Width   uint16
	Height  uint16
}

type Kick struct {
	Reason string
}

type AcceptedClient struct{}

type ChangeClientVersion struct {
	Version uint32
}

type ServerTalk struct {
	Speaker string
	Message string
}

type ColorUpdate struct {
	ClientId uint32
	Color    common.Color
}

type Node struct {
	Address common.NodeAddress
	Data    []byte
}

type CursorUpdate struct {
	Cursor common.Cursor
}

type StartOperation struct {
	Label string
}

type UpdateOperation struct {
	Percent uint32
}

func (*HelloFromClient) Opcode() uint8     { return PacketHelloFromClient }
func (*ReadyClient) Opcode() uint8         { return PacketReadyClient }
func (*RequestNodes) Opcode() uint8        { return PacketRequestNodes }
func (*ChangeList) Opcode() uint8          { return PacketChangeList }
func (*ClientUpdateCursor) Opcode() uint8  { return PacketClientUpdateCursor }
func (*ClientTalk) Opcode() uint8          { return PacketClientTalk }
func (*ClientColorUpdate) Opcode() uint8   { return PacketClientColorUpdate }
func (*HelloFromServer) Opcode() uint8     { return PacketHelloFromServer }
func (*Kick) Opcode() uint8                { return PacketKick }
func (*AcceptedClient) Opcode() uint8      { return PacketAcceptedClient }
func (*ChangeClientVersion) Opcode() uint8 { return PacketChangeClientVersion }
func (*ServerTalk) Opcode() uint8          { return PacketServerTalk }
func (*ColorUpdate) Opcode() uint8         { return PacketColorUpdate }
func (*Node) Opcode() uint8                { return PacketNode }
func (*CursorUpdate) Opcode() uint8        { return PacketCursorUpdate }
func (*StartOperation) Opcode() uint8      { return PacketStartOperation }
func (*UpdateOperation) Opcode() uint8     { return PacketUpdateOperation }

func PacketName(op uint8) string {
	if n, ok := clientOpcodes[op]; ok {
		return n
	}
	if n, ok := serverOpcodes[op]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(0x%02x)", op)
}

// MarshalPackets encodes the packets as consecutive records of one payload.
func MarshalPackets(packets ...Packet) ([]byte, error) {
	buf := common.NewBuffer(0)
	for _, p := range packets {
		err := EncodePacket(buf, p)
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func EncodePacket(buf *common.Buffer, p Packet) error {
	err := buf.WriteUint8(p.Opcode())
	if err != nil {
		return err
	}
	switch p := p.(type) {
	case *HelloFromClient:
		err = buf.WriteUint32(p.EditorVersion)
		if err != nil {
			return err
		}
		err = buf.WriteUint32(p.ProtocolVersion)
		if err != nil {
			return err
		}
		err = buf.WriteUint32(p.MapVersion)
		if err != nil {
			return err
		}
		err = buf.WriteString(p.Name)
		if err != nil {
			return err
		}
		return buf.WriteString(p.Password)
	case *ReadyClient, *AcceptedClient:
		return nil
	case *RequestNodes:
		err = buf.WriteUint32(uint32(len(p.Nodes)))
		if err != nil {
			return err
		}
		for _, n := range p.Nodes {
			err = buf.WriteUint32(uint32(n))
			if err != nil {
				return err
			}
		}
		return nil
	case *ChangeList:
		return buf.WriteBytes(p.Data)
	case *ClientUpdateCursor:
		return encodeCursor(buf, &p.Cursor)
	case *CursorUpdate:
		return encodeCursor(buf, &p.Cursor)
	case *ClientTalk:
		return buf.WriteString(p.Message)
	case *ClientColorUpdate:
		return encodeColorUpdate(buf, p.ClientId, p.Color)
	case *ColorUpdate:
		return encodeColorUpdate(buf, p.ClientId, p.Color)
	case *HelloFromServer:
		err = buf.WriteString(p.MapName)
		if err != nil {
			return err
		}
		err = buf.WriteUint16(p.Width)
		if err != nil {
			return err
		}
		return buf.WriteUint16(p.Height)
	case *Kick:
		return buf.WriteString(p.Reason)
	case *ChangeClientVersion:
		return buf.WriteUint32(p.Version)
	case *ServerTalk:
		err = buf.WriteString(p.Speaker)
		if err != nil {
			return err
		}
		return buf.WriteString(p.Message)
	case *Node:
		err = buf.WriteUint32(uint32(p.Address))
		if err != nil {
			return err
		}
		return buf.WriteBytes(p.Data)
	case *StartOperation:
		return buf.WriteString(p.Label)
	case *UpdateOperation:
		return buf.WriteUint32(p.Percent)
	}
	return fmt.Errorf("encode %s: %w", PacketName(p.Opcode()), ErrUnknownOpcode)
}

// ParseServerPayload decodes every record of a frame received by a client.
// Any opcode outside the client receive table fails the whole frame.
func ParseServerPayload(payload []byte) ([]Packet, error) {
	return parsePayload(payload, serverOpcodes)
}

// ParseClientPayload decodes a frame sent by a client.
func ParseClientPayload(payload []byte) ([]Packet, error) {
	return parsePayload(payload, clientOpcodes)
}

func parsePayload(payload []byte, table map[uint8]string) ([]Packet, error) {
	var packets []Packet
	buf := common.NewBufferFrom(payload)
	for buf.Remaining() > 0 {
		op, err := buf.ReadUint8()
		if err != nil {
			return nil, err
		}
		if _, ok := table[op]; !ok {
			return nil, fmt.Errorf("opcode 0x%02x at %d: %w", op, buf.Position()-1, ErrUnknownOpcode)
		}
		p, err := decodeRecord(op, buf)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", PacketName(op), err)
		}
		packets = append(packets, p)
	}
	return packets, nil
}

func decodeRecord(op uint8, buf *common.Buffer) (Packet, error) {
	var err error
	switch op {
	case PacketHelloFromClient:
		p := &HelloFromClient{}
		p.EditorVersion, err = buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		p.ProtocolVersion, err = buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		p.MapVersion, err = buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		p.Name, err = buf.ReadString()
		if err != nil {
			return nil, err
		}
		p.Password, err = buf.ReadString()
		return p, err
	case PacketReadyClient:
		return &ReadyClient{}, nil
	case PacketAcceptedClient:
		return &AcceptedClient{}, nil
	case PacketRequestNodes:
		count, err := buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		if uint64(count)*4 > uint64(buf.Remaining()) {
			return nil, fmt.Errorf("request nodes count %d remaining %d: %w", count, buf.Remaining(), common.ErrBufferUnderflow)
		}
		p := &RequestNodes{Nodes: make([]common.NodeAddress, count)}
		for i := range p.Nodes {
			id, err := buf.ReadUint32()
			if err != nil {
				return nil, err
			}
			p.Nodes[i] = common.NodeAddress(id)
		}
		return p, nil
	case PacketChangeList:
		p := &ChangeList{}
		p.Data, err = buf.ReadBytes()
		return p, err
	case PacketClientUpdateCursor:
		p := &ClientUpdateCursor{}
		p.Cursor, err = decodeCursor(buf)
		return p, err
	case PacketCursorUpdate:
		p := &CursorUpdate{}
		p.Cursor, err = decodeCursor(buf)
		return p, err
	case PacketClientTalk:
		p := &ClientTalk{}
		p.Message, err = buf.ReadString()
		return p, err
	case PacketClientColorUpdate:
		p := &ClientColorUpdate{}
		p.ClientId, p.Color, err = decodeColorUpdate(buf)
		return p, err
	case PacketColorUpdate:
		p := &ColorUpdate{}
		p.ClientId, p.Color, err = decodeColorUpdate(buf)
		return p, err
	case PacketHelloFromServer:
		p := &HelloFromServer{}
		p.MapName, err = buf.ReadString()
		if err != nil {
			return nil, err
		}
		p.Width, err = buf.ReadUint16()
		if err != nil {
			return nil, err
		}
		p.Height, err = buf.ReadUint16()
		return p, err
	case PacketKick:
		p := &Kick{}
		p.Reason, err = buf.ReadString()
		return p, err
	case PacketChangeClientVersion:
		p := &ChangeClientVersion{}
		p.Version, err = buf.ReadUint32()
		return p, err
	case PacketServerTalk:
		p := &ServerTalk{}
		p.Speaker, err = buf.ReadString()
		if err != nil {
			return nil, err
		}
		p.Message, err = buf.ReadString()
		return p, err
	case PacketNode:
		id, err := buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		p := &Node{Address: common.NodeAddress(id)}
		p.Data, err = buf.ReadBytes()
		return p, err
	case PacketStartOperation:
		p := &StartOperation{}
		p.Label, err = buf.ReadString()
		return p, err
	case PacketUpdateOperation:
		p := &UpdateOperation{}
		p.Percent, err = buf.ReadUint32()
		return p, err
	}
	return nil, fmt.Errorf("opcode 0x%02x: %w", op, ErrUnknownOpcode)
}

func encodeCursor(buf *common.Buffer, c *common.Cursor) error {
	err := buf.WriteUint32(c.Id)
	if err != nil {
		return err
	}
	err = buf.WriteUint16(c.Position.X)
	if err != nil {
		return err
	}
	err = buf.WriteUint16(c.Position.Y)
	if err != nil {
		return err
	}
	err = buf.WriteUint8(c.Position.Z)
	if err != nil {
		return err
	}
	return buf.Write([]byte{c.Color.R, c.Color.G, c.Color.B, c.Color.A})
}

func decodeCursor(buf *common.Buffer) (common.Cursor, error) {
	var c common.Cursor
	var err error
	c.Id, err = buf.ReadUint32()
	if err != nil {
		return c, err
	}
	c.Position.X, err = buf.ReadUint16()
	if err != nil {
		return c, err
	}
	c.Position.Y, err = buf.ReadUint16()
	if err != nil {
		return c, err
	}
	c.Position.Z, err = buf.ReadUint8()
	if err != nil {
		return c, err
	}
	c.Color, err = decodeColor(buf)
	return c, err
}

func encodeColorUpdate(buf *common.Buffer, id uint32, color common.Color) error {
	err := buf.WriteUint32(id)
	if err != nil {
		return err
	}
	return buf.Write([]byte{color.R, color.G, color.B, color.A})
}

func decodeColorUpdate(buf *common.Buffer) (uint32, common.Color, error) {
	id, err := buf.ReadUint32()
	if err != nil {
		return 0, common.Color{}, err
	}
	color, err := decodeColor(buf)
	return id, color, err
}

func decodeColor(buf *common.Buffer) (common.Color, error) {
	p, err := buf.ReadExact(4)
	if err != nil {
		return common.Color{}, err
	}
	return common.Color{R: p[0], G: p[1], B: p[2], A: p[3]}, nil
}
