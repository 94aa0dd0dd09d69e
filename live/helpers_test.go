package live

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/livemap/client/common"
	"github.com/livemap/client/config"
	"github.com/livemap/client/network"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 3 * time.Second

type fakeServer struct {
	conn   net.Conn
	writer *network.FrameWriter
	frames chan []network.Packet
	errs   chan error
}

func newFakeServer(conn net.Conn) *fakeServer {
	f := &fakeServer{
		conn:   conn,
		writer: network.NewFrameWriter(conn),
		frames: make(chan []network.Packet, 4096),
		errs:   make(chan error, 1),
	}
	go func() {
		reader := network.NewFrameReader(conn, config.DefaultMaxFrameSize)
		for {
			payload, err := reader.ReadFrame()
			if err != nil {
				f.errs <- err
				close(f.frames)
				return
			}
			packets, err := network.ParseClientPayload(payload)
			if err != nil {
				f.errs <- err
				close(f.frames)
				return
			}
			f.frames <- packets
		}
	}()
	return f
}

func (f *fakeServer) send(t *testing.T, packets ...network.Packet) {
	payload, err := network.MarshalPackets(packets...)
	require.Nil(t, err)
	require.Nil(t, f.writer.WriteFrame(payload))
}

func (f *fakeServer) expect(t *testing.T) []network.Packet {
	select {
	case packets, ok := <-f.frames:
		require.True(t, ok, "client connection closed")
		return packets
	case <-time.After(waitTimeout):
		t.Fatal("no frame from client")
	}
	return nil
}

func (f *fakeServer) expectNone(t *testing.T, wait time.Duration) {
	select {
	case packets, ok := <-f.frames:
		if ok {
			t.Fatalf("unexpected frame %v", packets)
		}
	case <-time.After(wait):
	}
}

type pipeDialer struct {
	servers chan *fakeServer
	err     error
}

func (d *pipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	client, server := net.Pipe()
	d.servers <- newFakeServer(server)
	return client, nil
}

type staticResolver struct{}

func (staticResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return []string{"127.0.0.1"}, nil
}

type fakeUI struct {
	sync.Mutex
	infos       []MapInfo
	accepted    int
	acceptErr   error
	versions    []uint32
	nodes       [][]NodeUpdate
	chats       []string
	statuses    []string
	operations  []string
	cursors     []common.Cursor
	disconnects []error
	calls       []string
	closed      chan error
}

func newFakeUI() *fakeUI {
	return &fakeUI{closed: make(chan error, 16)}
}

func (u *fakeUI) SetMapInfo(info MapInfo) {
	u.Lock()
	defer u.Unlock()
	u.infos = append(u.infos, info)
}

func (u *fakeUI) Accepted(info MapInfo) error {
	u.Lock()
	defer u.Unlock()
	u.accepted++
	return u.acceptErr
}

func (u *fakeUI) ReloadVersion(version uint32) error {
	u.Lock()
	defer u.Unlock()
	u.versions = append(u.versions, version)
	u.calls = append(u.calls, "reload")
	return nil
}

func (u *fakeUI) ApplyNodes(nodes []NodeUpdate) {
	u.Lock()
	defer u.Unlock()
	u.nodes = append(u.nodes, nodes)
	for _, n := range nodes {
		u.calls = append(u.calls, "node:"+n.Address.String())
	}
}

func (u *fakeUI) Status(text string) {
	u.Lock()
	defer u.Unlock()
	u.statuses = append(u.statuses, text)
}

func (u *fakeUI) Chat(speaker, message string) {
	u.Lock()
	defer u.Unlock()
	u.chats = append(u.chats, speaker+": "+message)
	u.calls = append(u.calls, "chat")
}

func (u *fakeUI) StartOperation(label string) {
	u.Lock()
	defer u.Unlock()
	u.operations = append(u.operations, label)
}

func (u *fakeUI) UpdateOperation(percent uint32) {
	u.Lock()
	defer u.Unlock()
	u.operations = append(u.operations, strings.Repeat("#", int(percent/10)))
	u.calls = append(u.calls, "progress")
}

func (u *fakeUI) callLog() []string {
	u.Lock()
	defer u.Unlock()
	return append([]string(nil), u.calls...)
}

func (u *fakeUI) UpdateCursor(cursor common.Cursor) {
	u.Lock()
	defer u.Unlock()
	u.cursors = append(u.cursors, cursor)
}

func (u *fakeUI) Disconnected(reason error) {
	u.Lock()
	u.disconnects = append(u.disconnects, reason)
	u.Unlock()
	u.closed <- reason
}

func (u *fakeUI) disconnectCount() int {
	u.Lock()
	defer u.Unlock()
	return len(u.disconnects)
}

func (u *fakeUI) waitClosed(t *testing.T) error {
	select {
	case err := <-u.closed:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("client never disconnected")
	}
	return nil
}

type lockedBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Lines() int {
	b.Lock()
	defer b.Unlock()
	return strings.Count(b.buf.String(), "\n")
}

func (b *lockedBuffer) String() string {
	b.Lock()
	defer b.Unlock()
	return b.buf.String()
}

func testClient(t *testing.T, maxFrame uint32) (*Client, *fakeUI, *pipeDialer) {
	custom, err := config.Initialize("")
	require.Nil(t, err)
	custom.Client.Name = "alice"
	custom.Client.Password = "secret"
	custom.Client.MapVersion = 1098

	dialer := &pipeDialer{servers: make(chan *fakeServer, 1)}
	cc := &network.ConnectionContext{
		Resolver:     staticResolver{},
		Dialer:       dialer,
		MaxFrameSize: maxFrame,
	}
	ui := newFakeUI()
	client, err := NewClient(custom, cc, ui, ui, ui)
	require.Nil(t, err)
	return client, ui, dialer
}

// connectReady runs the full handshake and returns the server side.
func connectReady(t *testing.T, client *Client, dialer *pipeDialer) *fakeServer {
	require := require.New(t)

	err := client.Connect(context.Background(), "localhost", 31313)
	require.Nil(err)
	server := <-dialer.servers
	require.Equal(StateHandshakeSent, client.State())

	packets := server.expect(t)
	require.Len(packets, 1)
	hello, ok := packets[0].(*network.HelloFromClient)
	require.True(ok)
	require.Equal("alice", hello.Name)

	server.send(t, &network.HelloFromServer{MapName: "forgotten", Width: 2048, Height: 2048}, &network.AcceptedClient{})
	packets = server.expect(t)
	require.Len(packets, 1)
	require.IsType(&network.ReadyClient{}, packets[0])
	require.Eventually(func() bool { return client.State() == StateReady }, waitTimeout, 5*time.Millisecond)
	return server
}
