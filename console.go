package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/livemap/client/common"
	"github.com/livemap/client/live"
	"github.com/livemap/client/logger"
)

// console is the editor, notifier and renderer of the headless client. Nodes
// are counted, not kept, since there is no map model behind it.
type console struct {
	mutex  sync.Mutex
	out    io.Writer
	info   live.MapInfo
	nodes  int
	done   chan struct{}
	once   sync.Once
	reason error
}

func newConsole(out io.Writer) *console {
	return &console{out: out, done: make(chan struct{})}
}

func (c *console) printf(format string, v ...interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	fmt.Fprintf(c.out, format, v...)
}

func (c *console) SetMapInfo(info live.MapInfo) {
	c.info = info
	c.printf("map %s %dx%d\n", info.Name, info.Width, info.Height)
}

func (c *console) Accepted(info live.MapInfo) error {
	c.printf("accepted into %s\n", info.Name)
	return nil
}

func (c *console) ReloadVersion(version uint32) error {
	c.printf("map version %d\n", version)
	return nil
}

func (c *console) ApplyNodes(nodes []live.NodeUpdate) {
	c.nodes += len(nodes)
	for _, n := range nodes {
		logger.Debugf("console.ApplyNodes %s %d\n", n.Address, len(n.Data))
	}
	c.printf("received %d nodes, %d total\n", len(nodes), c.nodes)
}

func (c *console) Status(text string) {
	c.printf("* %s\n", text)
}

func (c *console) Chat(speaker, message string) {
	c.printf("<%s> %s\n", speaker, message)
}

func (c *console) StartOperation(label string) {
	c.printf("%s...\n", label)
}

func (c *console) UpdateOperation(percent uint32) {
	c.printf("%d%%\n", percent)
}

func (c *console) UpdateCursor(cursor common.Cursor) {
	logger.Debugf("console.UpdateCursor %d %s %s\n", cursor.Id, cursor.Position, cursor.Color)
}

func (c *console) Disconnected(reason error) {
	c.printf("disconnected: %v\n", reason)
	c.once.Do(func() {
		c.mutex.Lock()
		c.reason = reason
		c.mutex.Unlock()
		close(c.done)
	})
}

func (c *console) Err() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.reason == live.ErrClosed {
		return nil
	}
	return c.reason
}

type commander interface {
	Talk(message string) error
	RequestNode(x, y int, underground bool) bool
	FlushNodeRequests() error
	SetColor(color common.Color) error
}

// relayInput turns stdin lines into chat messages. Lines starting with a
// slash are commands: /node x y [u], /color #rrggbb, /quit.
func relayInput(in io.Reader, client commander, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		err := handleInput(line, client)
		if err == errQuit {
			quit()
			return
		}
		if err != nil {
			logger.Printf("console %s %v\n", line, err)
		}
	}
}

var errQuit = fmt.Errorf("quit")

func handleInput(line string, client commander) error {
	if !strings.HasPrefix(line, "/") {
		return client.Talk(line)
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return errQuit
	case "/color":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /color #rrggbb")
		}
		color, err := common.ParseColor(fields[1])
		if err != nil {
			return err
		}
		return client.SetColor(color)
	case "/node":
		if len(fields) < 3 || len(fields) > 4 {
			return fmt.Errorf("usage: /node x y [u]")
		}
		x, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil {
			return err
		}
		y, err := strconv.ParseUint(fields[2], 10, 16)
		if err != nil {
			return err
		}
		underground := len(fields) == 4 && fields[3] == "u"
		client.RequestNode(int(x), int(y), underground)
		return client.FlushNodeRequests()
	}
	return fmt.Errorf("unknown command %s", fields[0])
}
