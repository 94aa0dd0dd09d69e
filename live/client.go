package live

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/livemap/client/common"
	"github.com/livemap/client/config"
	"github.com/livemap/client/logger"
	"github.com/livemap/client/network"
)

const EventQueueSize = 1024

var (
	ErrNotReady       = errors.New("session not ready")
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyRunning = errors.New("session already running")
	ErrClosed         = errors.New("closed by user")
)

type KickError struct {
	Reason string
}

func (e *KickError) Error() string {
	return "kicked: " + e.Reason
}

type sender interface {
	State() SessionState
	send(packets ...network.Packet) error
	sendQuiet(packets ...network.Packet) error
}

type Client struct {
	custom   *config.Custom
	manager  *network.Manager
	maxFrame uint32
	editor   Editor
	notifier Notifier
	renderer PresenceRenderer
	recorder Recorder

	state    *stateMachine
	changes  *ChangeTracker
	nodes    *NodeRequestQueue
	presence *Presence

	mutex   sync.Mutex
	session *session
}

type session struct {
	sync.Mutex
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	conn    net.Conn
	reader  *network.FrameReader
	writer  *network.FrameWriter
	events  chan event
	done    chan struct{}
	once    sync.Once
	reason  error
	info    MapInfo
	cursors cursorMap
}

func NewClient(custom *config.Custom, cc *network.ConnectionContext, editor Editor, notifier Notifier, renderer PresenceRenderer) (*Client, error) {
	color, err := common.ParseColor(custom.Client.Color)
	if err != nil {
		return nil, err
	}
	c := &Client{
		custom:   custom,
		manager:  network.NewManager(cc),
		maxFrame: cc.MaxFrameSize,
		editor:   editor,
		notifier: notifier,
		renderer: renderer,
		state:    &stateMachine{},
	}
	if c.maxFrame == 0 {
		c.maxFrame = config.DefaultMaxFrameSize
	}
	c.changes = NewChangeTracker(c)
	c.nodes = NewNodeRequestQueue(c)
	c.presence = NewPresence(c, color)
	return c, nil
}

func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

func (c *Client) State() SessionState {
	return c.state.State()
}

func (c *Client) Changes() *ChangeTracker {
	return c.changes
}

func (c *Client) Nodes() *NodeRequestQueue {
	return c.nodes
}

func (c *Client) Presence() *Presence {
	return c.presence
}

// Connect resolves and dials the server, sends the handshake and starts the
// read and consumer goroutines. Failures are returned and also reported to
// the notifier. Nothing reconnects automatically.
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mutex.Lock()
	if c.session != nil && !c.session.closed() {
		c.mutex.Unlock()
		return ErrAlreadyRunning
	}
	err := c.state.begin()
	if err != nil {
		c.mutex.Unlock()
		return err
	}
	s := newSession(ctx)
	c.session = s
	c.mutex.Unlock()
	c.nodes.reset()

	logger.Verbosef("live.Client.Connect %s %s:%d\n", s.id, host, port)
	endpoints, err := c.manager.Resolve(s.ctx, host, port)
	if err != nil {
		return c.fail(s, err)
	}
	err = c.transition(s, StateConnecting)
	if err != nil {
		return c.fail(s, err)
	}
	conn, err := c.manager.Connect(s.ctx, endpoints)
	if err != nil {
		return c.fail(s, err)
	}
	if !s.attach(conn, c.maxFrame) {
		conn.Close()
		return c.fail(s, s.closeReason())
	}

	err = c.write(s, false, &network.HelloFromClient{
		EditorVersion:   c.custom.Client.EditorVersion,
		ProtocolVersion: c.custom.Client.ProtocolVersion,
		MapVersion:      c.custom.Client.MapVersion,
		Name:            c.custom.Client.Name,
		Password:        c.custom.Client.Password,
	})
	if err != nil {
		return c.fail(s, err)
	}
	err = c.transition(s, StateHandshakeSent)
	if err != nil {
		return c.fail(s, err)
	}
	c.notifier.Status(fmt.Sprintf("Connected to %s", conn.RemoteAddr()))

	go c.consume(s)
	go c.readLoop(s)
	return nil
}

// fail ends a session whose consumer never started.
func (c *Client) fail(s *session, err error) error {
	c.closeSession(s, err)
	close(s.done)
	reason := s.closeReason()
	c.notifier.Disconnected(reason)
	return reason
}

// Close tears down the current session. It is safe to call at any time and
// more than once.
func (c *Client) Close() error {
	s := c.current()
	if s == nil {
		return nil
	}
	c.closeSession(s, ErrClosed)
	return nil
}

func (c *Client) closeSession(s *session, reason error) {
	if !s.close(reason) {
		return
	}
	prev := c.state.close()
	logger.Printf("live.Client close %s in state %s %v\n", s.id, prev, reason)
}

func (c *Client) current() *session {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.session
}

func (c *Client) Talk(message string) error {
	if !c.State().CanRequest() {
		return ErrNotReady
	}
	return c.send(&network.ClientTalk{Message: message})
}

func (c *Client) RequestNode(x, y int, underground bool) bool {
	return c.nodes.Add(x, y, underground)
}

func (c *Client) FlushNodeRequests() error {
	return c.nodes.Flush()
}

func (c *Client) SendChanges(changes []common.Change) error {
	return c.changes.Send(changes)
}

func (c *Client) UpdateCursor(pos common.Position) error {
	return c.presence.UpdateCursor(pos)
}

func (c *Client) SetColor(color common.Color) error {
	return c.presence.SetColor(color)
}

func (c *Client) send(packets ...network.Packet) error {
	s := c.current()
	if s == nil {
		return ErrNotConnected
	}
	return c.write(s, false, packets...)
}

func (c *Client) sendQuiet(packets ...network.Packet) error {
	s := c.current()
	if s == nil {
		return ErrNotConnected
	}
	return c.write(s, true, packets...)
}

func (c *Client) write(s *session, quiet bool, packets ...network.Packet) error {
	w := s.frameWriter()
	if w == nil || s.closed() {
		return ErrNotConnected
	}
	payload, err := network.MarshalPackets(packets...)
	if err != nil {
		return err
	}
	if !quiet {
		logger.Verbosef("live.Client send %s %s %d\n", s.id, packetNames(packets), len(payload))
	}
	err = w.WriteFrame(payload)
	if err != nil {
		return err
	}
	c.record(s, false, payload)
	return nil
}

func (c *Client) record(s *session, inbound bool, payload []byte) {
	if c.recorder == nil {
		return
	}
	err := c.recorder.RecordFrame(s.id, inbound, payload)
	if err != nil {
		logger.Verbosef("live.Client record %s %v\n", s.id, err)
	}
}

func (c *Client) readLoop(s *session) {
	var err error
	for {
		payload, rerr := s.reader.ReadFrame()
		if rerr != nil {
			err = rerr
			break
		}
		c.record(s, true, payload)
		packets, perr := network.ParseServerPayload(payload)
		if perr != nil {
			logger.Printf("live.Client protocol violation %s %v\n", s.id, perr)
			err = perr
			break
		}
		err = c.dispatch(s, packets)
		if err != nil {
			break
		}
	}
	if network.IsPeerClosed(err) {
		logger.Verbosef("live.Client peer closed %s %v\n", s.id, err)
	}
	c.closeSession(s, err)
	s.events <- &disconnectEvent{}
}

// dispatch runs on the read goroutine. It only moves the session state and
// posts events, the editor and UI are left to the consumer. Records are posted
// in frame order, each run of consecutive NODE records as one batch.
func (c *Client) dispatch(s *session, packets []network.Packet) error {
	var nodes []NodeUpdate
	flush := func() {
		if len(nodes) > 0 {
			s.events <- &nodesEvent{nodes: nodes}
			nodes = nil
		}
	}
	defer flush()

	for _, p := range packets {
		if n, ok := p.(*network.Node); ok {
			nodes = append(nodes, NodeUpdate{Address: n.Address, Data: n.Data})
			continue
		}
		flush()
		switch p := p.(type) {
		case *network.HelloFromServer:
			logger.Verbosef("live.Client HELLO_FROM_SERVER %s %dx%d\n", p.MapName, p.Width, p.Height)
			s.events <- &mapInfoEvent{info: MapInfo{Name: p.MapName, Width: p.Width, Height: p.Height}}
		case *network.Kick:
			return &KickError{Reason: p.Reason}
		case *network.AcceptedClient:
			err := c.transition(s, StateAccepted)
			if err != nil {
				return err
			}
			s.events <- &acceptedEvent{}
		case *network.ChangeClientVersion:
			if !c.State().CanRequest() {
				logger.Verbosef("live.Client ignore CHANGE_CLIENT_VERSION %d in %s\n", p.Version, c.State())
				continue
			}
			s.events <- &versionEvent{version: p.Version}
		case *network.ServerTalk:
			s.events <- &chatEvent{speaker: p.Speaker, message: p.Message}
		case *network.CursorUpdate:
			s.events <- &cursorEvent{cursor: p.Cursor}
		case *network.ColorUpdate:
			s.events <- &colorEvent{id: p.ClientId, color: p.Color}
		case *network.StartOperation:
			s.events <- &operationEvent{label: p.Label, start: true}
		case *network.UpdateOperation:
			s.events <- &operationEvent{percent: p.Percent}
		default:
			return fmt.Errorf("dispatch %s: %w", network.PacketName(p.Opcode()), network.ErrUnknownOpcode)
		}
	}
	return nil
}

// transition moves the shared state machine on behalf of s. A session that
// was closed or replaced by a newer Connect can no longer move it.
func (c *Client) transition(s *session, to SessionState) error {
	if s != c.current() || s.closed() {
		return ErrClosed
	}
	return c.state.transition(to)
}

func (c *Client) sendReady(s *session) error {
	err := c.write(s, false, &network.ReadyClient{})
	if err != nil {
		return err
	}
	if c.State() == StateAccepted {
		err = c.transition(s, StateReady)
		if err != nil {
			return err
		}
		c.notifier.Status("Ready")
	}
	return nil
}

func newSession(parent context.Context) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:      uuid.Must(uuid.NewV4()).String(),
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan event, EventQueueSize),
		done:    make(chan struct{}),
		cursors: make(cursorMap),
	}
}

func (s *session) attach(conn net.Conn, maxFrame uint32) bool {
	s.Lock()
	defer s.Unlock()
	if s.reason != nil {
		return false
	}
	s.conn = conn
	s.reader = network.NewFrameReader(conn, maxFrame)
	s.writer = network.NewFrameWriter(conn)
	return true
}

func (s *session) frameWriter() *network.FrameWriter {
	s.Lock()
	defer s.Unlock()
	return s.writer
}

func (s *session) closed() bool {
	s.Lock()
	defer s.Unlock()
	return s.reason != nil
}

// close records the first reason, cancels pending resolve or dial work and
// closes the socket. It reports whether this call did the closing.
func (s *session) close(reason error) bool {
	if reason == nil {
		reason = ErrClosed
	}
	closed := false
	s.once.Do(func() {
		s.Lock()
		defer s.Unlock()
		s.reason = reason
		s.cancel()
		if s.conn != nil {
			s.conn.Close()
		}
		closed = true
	})
	return closed
}

func packetNames(packets []network.Packet) string {
	names := make([]string, len(packets))
	for i, p := range packets {
		names[i] = network.PacketName(p.Opcode())
	}
	return strings.Join(names, ",")
}

func (s *session) closeReason() error {
	s.Lock()
	defer s.Unlock()
	return s.reason
}
