package live

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/livemap/client/common"
	"github.com/livemap/client/logger"
	"github.com/livemap/client/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	sync.Mutex
	inbound  int
	outbound int
}

func (r *memoryRecorder) RecordFrame(session string, inbound bool, payload []byte) error {
	r.Lock()
	defer r.Unlock()
	if inbound {
		r.inbound++
	} else {
		r.outbound++
	}
	return nil
}

func (r *memoryRecorder) counts() (int, int) {
	r.Lock()
	defer r.Unlock()
	return r.inbound, r.outbound
}

func shutdown(t *testing.T, client *Client, ui *fakeUI) {
	client.Close()
	require.Eventually(t, func() bool { return ui.disconnectCount() > 0 }, waitTimeout, 5*time.Millisecond)
}

func TestClientHandshake(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	recorder := &memoryRecorder{}
	client.SetRecorder(recorder)
	require.Equal(StateDisconnected, client.State())
	require.Equal(ErrNotReady, client.Talk("too early"))

	server := connectReady(t, client, dialer)
	defer shutdown(t, client, ui)

	require.Eventually(func() bool {
		ui.Lock()
		defer ui.Unlock()
		return ui.accepted == 1 && len(ui.statuses) == 2
	}, waitTimeout, 5*time.Millisecond)
	ui.Lock()
	require.Equal([]MapInfo{{Name: "forgotten", Width: 2048, Height: 2048}}, ui.infos)
	require.Equal("Ready", ui.statuses[1])
	ui.Unlock()

	in, out := recorder.counts()
	require.Equal(1, in)
	require.Equal(2, out)

	require.Nil(client.Talk("hello"))
	packets := server.expect(t)
	require.Equal(&network.ClientTalk{Message: "hello"}, packets[0])

	require.True(client.RequestNode(100, 200, false))
	require.False(client.RequestNode(100, 200, false))
	require.True(client.RequestNode(400, 200, true))
	require.Nil(client.FlushNodeRequests())
	packets = server.expect(t)
	require.Len(packets, 1)
	require.Equal([]common.NodeAddress{
		common.NewNodeAddress(100, 200, false),
		common.NewNodeAddress(400, 200, true),
	}, packets[0].(*network.RequestNodes).Nodes)
	require.Nil(client.FlushNodeRequests())
	server.expectNone(t, 50*time.Millisecond)

	status, err := client.Snapshot(context.Background())
	require.Nil(err)
	require.Equal("ready", status.State)
	require.Equal("forgotten", status.Map.Name)
	require.Equal("#00ff00ff", status.Color)
	require.Len(status.Cursors, 1)
	require.Equal(common.HostColor, status.Cursors[0].Color)

	require.Equal(ErrAlreadyRunning, client.Connect(context.Background(), "localhost", 31313))
}

func TestClientChangesGated(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	require.Nil(client.Connect(context.Background(), "localhost", 31313))
	server := <-dialer.servers
	defer shutdown(t, client, ui)
	require.IsType(&network.HelloFromClient{}, server.expect(t)[0])

	changes := []common.Change{{Kind: common.ChangeTile, Position: common.Position{X: 10, Y: 20, Z: 7}, Tile: []byte{0x33}}}
	require.Equal(ErrNotReady, client.SendChanges(changes))
	require.Equal(ErrNotReady, client.UpdateCursor(common.Position{X: 1, Y: 1, Z: 7}))
	server.expectNone(t, 50*time.Millisecond)

	server.send(t, &network.HelloFromServer{MapName: "m", Width: 16, Height: 16}, &network.ChangeClientVersion{Version: 5}, &network.AcceptedClient{})
	packets := server.expect(t)
	require.Len(packets, 1)
	require.IsType(&network.ReadyClient{}, packets[0])
	require.Eventually(func() bool { return client.State() == StateReady }, waitTimeout, 5*time.Millisecond)
	ui.Lock()
	require.Len(ui.versions, 0)
	ui.Unlock()

	require.Nil(client.SendChanges(changes))
	packets = server.expect(t)
	require.Len(packets, 1)
	decoded, err := common.DecodeTileChanges(packets[0].(*network.ChangeList).Data)
	require.Nil(err)
	require.Len(decoded, 1)
	require.Equal(changes[0].Position, decoded[0].Position)
	require.Equal(changes[0].Tile, decoded[0].Tile)
}

func TestClientVersionChange(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	server := connectReady(t, client, dialer)
	defer shutdown(t, client, ui)

	server.send(t, &network.ChangeClientVersion{Version: 1099})
	packets := server.expect(t)
	require.IsType(&network.ReadyClient{}, packets[0])
	require.Equal(StateReady, client.State())
	ui.Lock()
	require.Equal([]uint32{1099}, ui.versions)
	ui.Unlock()
}

func TestClientNodesBatch(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	server := connectReady(t, client, dialer)
	defer shutdown(t, client, ui)

	a := common.NewNodeAddress(4, 4, false)
	b := common.NewNodeAddress(8, 4, false)
	c := common.NewNodeAddress(8, 8, true)
	server.send(t,
		&network.Node{Address: a, Data: []byte{1}},
		&network.Node{Address: b, Data: []byte{2, 2}},
		&network.ServerTalk{Speaker: "host", Message: "hi"},
		&network.Node{Address: c, Data: []byte{3, 3, 3}},
	)
	server.send(t, &network.StartOperation{Label: "Loading"}, &network.UpdateOperation{Percent: 50})

	require.Eventually(func() bool {
		ui.Lock()
		defer ui.Unlock()
		return len(ui.operations) == 2
	}, waitTimeout, 5*time.Millisecond)
	ui.Lock()
	defer ui.Unlock()
	require.Len(ui.nodes, 2)
	require.Equal([]NodeUpdate{
		{Address: a, Data: []byte{1}},
		{Address: b, Data: []byte{2, 2}},
	}, ui.nodes[0])
	require.Equal([]NodeUpdate{{Address: c, Data: []byte{3, 3, 3}}}, ui.nodes[1])
	require.Equal([]string{"host: hi"}, ui.chats)
	require.Equal([]string{"Loading", "#####"}, ui.operations)
	require.Equal([]string{"node:" + a.String(), "node:" + b.String(), "chat", "node:" + c.String(), "progress"}, ui.calls)
}

func TestClientRecordOrder(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	server := connectReady(t, client, dialer)
	defer shutdown(t, client, ui)

	a := common.NewNodeAddress(4, 4, false)
	server.send(t,
		&network.Node{Address: a, Data: []byte{1}},
		&network.UpdateOperation{Percent: 50},
		&network.ChangeClientVersion{Version: 1099},
	)
	packets := server.expect(t)
	require.IsType(&network.ReadyClient{}, packets[0])
	require.Eventually(func() bool { return len(ui.callLog()) == 3 }, waitTimeout, 5*time.Millisecond)
	require.Equal([]string{"node:node(4,4,false)", "progress", "reload"}, ui.callLog())
}

func TestClientKickAfterNodes(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	server := connectReady(t, client, dialer)

	a := common.NewNodeAddress(4, 4, false)
	server.send(t, &network.Node{Address: a, Data: []byte{1}}, &network.Kick{Reason: "bye"})
	reason := ui.waitClosed(t)
	var kick *KickError
	require.True(errors.As(reason, &kick))
	require.Equal([]string{"node:" + a.String()}, ui.callLog())
}

func TestClientPresence(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	server := connectReady(t, client, dialer)
	defer shutdown(t, client, ui)

	out := &lockedBuffer{}
	logger.SetOutput(out)
	defer logger.SetOutput(os.Stderr)
	level := logger.Level()
	logger.SetLevel(logger.INFO)
	defer logger.SetLevel(level)

	for i := 0; i < 1000; i++ {
		require.Nil(client.UpdateCursor(common.Position{X: uint16(i), Y: 10, Z: 7}))
	}
	for i := 0; i < 1000; i++ {
		packets := server.expect(t)
		require.Len(packets, 1)
		cursor := packets[0].(*network.ClientUpdateCursor).Cursor
		require.Equal(uint16(i), cursor.Position.X)
	}
	require.Equal(0, out.Lines(), out.String())

	color := common.Color{R: 10, G: 20, B: 30, A: 255}
	require.Nil(client.SetColor(color))
	packets := server.expect(t)
	require.Equal(&network.ClientColorUpdate{ClientId: LocalClientId, Color: color}, packets[0])
	require.Equal(1, out.Lines(), out.String())
	require.Contains(out.String(), "live.Presence color "+color.String())

	red := common.Color{R: 255, A: 255}
	blue := common.Color{B: 255, A: 255}
	server.send(t, &network.CursorUpdate{Cursor: common.Cursor{Id: 5, Position: common.Position{X: 1, Y: 1, Z: 7}, Color: red}})
	server.send(t, &network.CursorUpdate{Cursor: common.Cursor{Id: 5, Position: common.Position{X: 2, Y: 1, Z: 7}, Color: red}})
	server.send(t, &network.CursorUpdate{Cursor: common.Cursor{Id: 5, Position: common.Position{X: 3, Y: 1, Z: 7}, Color: blue}})
	server.send(t, &network.ColorUpdate{ClientId: 5, Color: blue})
	require.Eventually(func() bool {
		ui.Lock()
		defer ui.Unlock()
		return len(ui.cursors) == 4
	}, waitTimeout, 5*time.Millisecond)
	require.Equal(2, out.Lines(), out.String())

	status, err := client.Snapshot(context.Background())
	require.Nil(err)
	require.Equal(color.String(), status.Color)
	require.Len(status.Cursors, 2)
	require.Equal(uint32(5), status.Cursors[1].Id)
	require.Equal(common.Position{X: 3, Y: 1, Z: 7}, status.Cursors[1].Position)
	require.Equal(blue, status.Cursors[1].Color)
}

func TestClientKick(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	server := connectReady(t, client, dialer)

	server.send(t, &network.Kick{Reason: "map closed"})
	reason := ui.waitClosed(t)
	var kick *KickError
	require.True(errors.As(reason, &kick))
	require.Equal("map closed", kick.Reason)
	require.Equal(StateClosed, client.State())
	require.Equal(ErrNotReady, client.Talk("gone"))
	require.Equal(1, ui.disconnectCount())
}

func TestClientUnknownOpcode(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	server := connectReady(t, client, dialer)

	require.Nil(server.writer.WriteFrame([]byte{0xee, 0x01, 0x02}))
	reason := ui.waitClosed(t)
	require.True(errors.Is(reason, network.ErrUnknownOpcode))
	require.Equal(StateClosed, client.State())

	err := server.writer.WriteFrame([]byte{network.PacketAcceptedClient})
	require.NotNil(err)
	time.Sleep(50 * time.Millisecond)
	require.Equal(1, ui.disconnectCount())

	client.Close()
	time.Sleep(20 * time.Millisecond)
	require.Equal(1, ui.disconnectCount())
}

func TestClientFrameTooLarge(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 1024)
	server := connectReady(t, client, dialer)

	header := make([]byte, network.FrameHeaderSize)
	binary.LittleEndian.PutUint32(header, 1025)
	_, err := server.conn.Write(header)
	require.Nil(err)

	reason := ui.waitClosed(t)
	require.True(errors.Is(reason, network.ErrFrameTooLarge))
	require.Equal(1, ui.disconnectCount())
	ui.Lock()
	require.Len(ui.nodes, 0)
	ui.Unlock()
}

func TestClientConnectFailure(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	dialer.err = syscall.ECONNREFUSED
	err := client.Connect(context.Background(), "localhost", 31313)
	require.NotNil(err)
	require.True(errors.Is(err, syscall.ECONNREFUSED))
	require.Equal(StateClosed, client.State())
	require.Equal(1, ui.disconnectCount())

	status, err := client.Snapshot(context.Background())
	require.Nil(err)
	require.Equal("closed", status.State)

	dialer.err = nil
	connectReady(t, client, dialer)
	shutdown(t, client, ui)
	require.Equal(2, ui.disconnectCount())
}

func TestClientClose(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	connectReady(t, client, dialer)

	require.Nil(client.Close())
	reason := ui.waitClosed(t)
	assert.Equal(ErrClosed, reason)
	require.Nil(client.Close())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(1, ui.disconnectCount())
	assert.Equal(StateClosed, client.State())
	assert.Equal(ErrNotConnected, client.send(&network.ReadyClient{}))
}

type failingConn struct {
	net.Conn
}

func (failingConn) Write(p []byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestClientRecordAfterWrite(t *testing.T) {
	require := require.New(t)

	client, _, _ := testClient(t, 0)
	recorder := &memoryRecorder{}
	client.SetRecorder(recorder)

	s := newSession(context.Background())
	require.True(s.attach(failingConn{}, 1024))
	err := client.write(s, false, &network.ReadyClient{})
	require.True(errors.Is(err, io.ErrClosedPipe))
	in, out := recorder.counts()
	require.Equal(0, in)
	require.Equal(0, out)

	conn, peer := net.Pipe()
	defer peer.Close()
	go io.Copy(io.Discard, peer)
	s = newSession(context.Background())
	require.True(s.attach(conn, 1024))
	require.Nil(client.write(s, false, &network.ReadyClient{}))
	_, out = recorder.counts()
	require.Equal(1, out)
	conn.Close()
}

func TestClientStaleSession(t *testing.T) {
	require := require.New(t)

	client, ui, dialer := testClient(t, 0)
	connectReady(t, client, dialer)
	stale := client.current()
	require.Nil(client.Close())
	ui.waitClosed(t)

	require.Nil(client.Connect(context.Background(), "localhost", 31313))
	server := <-dialer.servers
	defer shutdown(t, client, ui)
	require.IsType(&network.HelloFromClient{}, server.expect(t)[0])
	require.Equal(StateHandshakeSent, client.State())

	err := client.dispatch(stale, []network.Packet{&network.AcceptedClient{}})
	require.Equal(ErrClosed, err)
	require.Equal(StateHandshakeSent, client.State())
	require.Equal(ErrClosed, client.transition(stale, StateReady))
	require.Equal(StateHandshakeSent, client.State())
}
