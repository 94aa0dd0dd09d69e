package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livemap/client/common"
	"github.com/livemap/client/config"
	"github.com/livemap/client/live"
	"github.com/livemap/client/logger"
	"github.com/livemap/client/network"
	"github.com/livemap/client/rpc"
	"github.com/livemap/client/storage"
	"github.com/urfave/cli/v2"
)

func connectCmd(c *cli.Context) error {
	level, err := logger.ParseLevel(c.String("log"))
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	err = logger.SetFilter(c.String("filter"))
	if err != nil {
		return err
	}

	custom, err := config.Initialize(c.String("config"))
	if err != nil {
		return err
	}
	err = applyFlags(c, custom)
	if err != nil {
		return err
	}

	out := newConsole(os.Stdout)
	client, err := live.NewClient(custom, network.NewConnectionContext(custom), out, out, out)
	if err != nil {
		return err
	}

	var store storage.Store
	if dir := custom.Recorder.Dir; dir != "" {
		bs, err := storage.NewBadgerStore(dir)
		if err != nil {
			return err
		}
		defer bs.Close()
		client.SetRecorder(bs)
		store = bs
	}

	if p := custom.RPC.Port; p > 0 {
		go func() {
			err := rpc.StartHTTP(client, store, p)
			if err != nil {
				logger.Printf("rpc.StartHTTP %d %v\n", p, err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = client.Connect(ctx, custom.Network.Host, custom.Network.Port)
	if err != nil {
		return err
	}
	go relayInput(os.Stdin, client, stop)

	select {
	case <-out.done:
	case <-ctx.Done():
		client.Close()
		<-out.done
	}
	return out.Err()
}

func applyFlags(c *cli.Context, custom *config.Custom) error {
	if c.IsSet("host") {
		custom.Network.Host = c.String("host")
	}
	if c.IsSet("port") {
		custom.Network.Port = c.Int("port")
	}
	if c.IsSet("name") {
		custom.Client.Name = c.String("name")
	}
	if c.IsSet("password") {
		custom.Client.Password = c.String("password")
	}
	if c.IsSet("color") {
		custom.Client.Color = c.String("color")
	}
	if c.IsSet("transport") {
		custom.Network.Transport = c.String("transport")
	}
	if c.IsSet("rpc-port") {
		custom.RPC.Port = c.Int("rpc-port")
	}
	if c.IsSet("record") {
		custom.Recorder.Dir = c.String("record")
	}
	return custom.Validate()
}

func listSessionsCmd(c *cli.Context) error {
	store, err := storage.NewBadgerStore(c.String("dir"))
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions()
	if err != nil {
		return err
	}
	for _, s := range sessions {
		started := time.Unix(0, s.Started).UTC().Format(time.RFC3339)
		fmt.Printf("%s\t%s\t%d\n", s.Id, started, s.Frames)
	}
	return nil
}

func replayCmd(c *cli.Context) error {
	store, err := storage.NewBadgerStore(c.String("dir"))
	if err != nil {
		return err
	}
	defer store.Close()

	offset, remaining := c.Uint64("offset"), c.Uint64("count")
	for remaining > 0 {
		count := remaining
		if count > storage.MaxFramesPerRead {
			count = storage.MaxFramesPerRead
		}
		frames, err := store.ReadFrames(c.String("session"), offset, count)
		if err != nil {
			return err
		}
		for _, f := range frames {
			line, err := describeFrame(f)
			if err != nil {
				return err
			}
			fmt.Println(line)
		}
		if uint64(len(frames)) < count {
			return nil
		}
		offset = frames[len(frames)-1].Sequence + 1
		remaining -= count
	}
	return nil
}

func describeFrame(f *storage.Frame) (string, error) {
	direction, parse := "<-", network.ParseServerPayload
	if !f.Inbound {
		direction, parse = "->", network.ParseClientPayload
	}
	ts := time.Unix(0, f.Timestamp).UTC().Format("15:04:05.000")
	packets, err := parse(f.Payload)
	if err != nil {
		return fmt.Sprintf("%d\t%s\t%s\tmalformed %d bytes: %v", f.Sequence, ts, direction, len(f.Payload), err), nil
	}
	var buf bytes.Buffer
	for i, p := range packets {
		data, err := json.Marshal(p)
		if err != nil {
			return "", err
		}
		if i > 0 {
			buf.WriteString(" ")
		}
		fmt.Fprintf(&buf, "%s%s", network.PacketName(p.Opcode()), data)
	}
	return fmt.Sprintf("%d\t%s\t%s\t%s", f.Sequence, ts, direction, buf.String()), nil
}

func nodeIdCmd(c *cli.Context) error {
	if c.IsSet("id") {
		id := c.Uint64("id")
		if id > 0xffffffff {
			return fmt.Errorf("invalid node id %d", id)
		}
		a := common.NodeAddress(id)
		x, y, underground := a.Tile()
		fmt.Printf("x:\t%d\ny:\t%d\nunderground:\t%v\n", x, y, underground)
		return nil
	}
	a := common.NewNodeAddress(c.Int("x"), c.Int("y"), c.Bool("underground"))
	fmt.Printf("id:\t%d\nhex:\t%08x\nnode:\t%s\n", uint32(a), uint32(a), a)
	return nil
}

func getInfoCmd(c *cli.Context) error {
	data, err := callRPC(c.String("node"), "getinfo", []interface{}{})
	if data != nil {
		fmt.Println(string(data))
	}
	return err
}

func sayCmd(c *cli.Context) error {
	_, err := callRPC(c.String("node"), "talk", []interface{}{c.String("message")})
	return err
}

var httpClient *http.Client

func callRPC(node, method string, params []interface{}) ([]byte, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	body, err := json.Marshal(map[string]interface{}{
		"method": method,
		"params": params,
	})
	if err != nil {
		panic(err)
	}
	req, err := http.NewRequest("POST", "http://"+node, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Close = true
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil {
		return nil, err
	}
	if e, found := result["error"]; found {
		return nil, fmt.Errorf("ERROR %s", e)
	}
	return json.MarshalIndent(result, "", "  ")
}
