package rpc

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/livemap/client/common"
	"github.com/livemap/client/live"
	"github.com/livemap/client/storage"
)

// Client is the part of live.Client driven over rpc.
type Client interface {
	Snapshot(ctx context.Context) (*live.Status, error)
	Talk(message string) error
	RequestNode(x, y int, underground bool) bool
	FlushNodeRequests() error
	SetColor(color common.Color) error
}

func talk(client Client, params []interface{}) error {
	if len(params) != 1 {
		return errors.New("invalid params count")
	}
	message := fmt.Sprint(params[0])
	if message == "" {
		return errors.New("empty message")
	}
	if len(message) > common.MaximumStringLength {
		return common.ErrStringTooLong
	}
	return client.Talk(message)
}

func requestNode(client Client, params []interface{}) (bool, error) {
	if len(params) != 3 {
		return false, errors.New("invalid params count")
	}
	x, err := strconv.ParseUint(fmt.Sprint(params[0]), 10, 16)
	if err != nil {
		return false, err
	}
	y, err := strconv.ParseUint(fmt.Sprint(params[1]), 10, 16)
	if err != nil {
		return false, err
	}
	underground, err := strconv.ParseBool(fmt.Sprint(params[2]))
	if err != nil {
		return false, err
	}
	return client.RequestNode(int(x), int(y), underground), nil
}

func setColor(client Client, params []interface{}) (string, error) {
	if len(params) != 1 {
		return "", errors.New("invalid params count")
	}
	color, err := common.ParseColor(fmt.Sprint(params[0]))
	if err != nil {
		return "", err
	}
	return color.String(), client.SetColor(color)
}

func listSessions(store storage.Store) ([]map[string]interface{}, error) {
	if store == nil {
		return nil, errors.New("recorder disabled")
	}
	sessions, err := store.ListSessions()
	if err != nil {
		return nil, err
	}
	list := make([]map[string]interface{}, len(sessions))
	for i, s := range sessions {
		list[i] = map[string]interface{}{
			"id":      s.Id,
			"started": s.Started,
			"frames":  s.Frames,
		}
	}
	return list, nil
}

func listFrames(store storage.Store, params []interface{}) ([]map[string]interface{}, error) {
	if store == nil {
		return nil, errors.New("recorder disabled")
	}
	if len(params) != 3 {
		return nil, errors.New("invalid params count")
	}
	offset, err := strconv.ParseUint(fmt.Sprint(params[1]), 10, 64)
	if err != nil {
		return nil, err
	}
	count, err := strconv.ParseUint(fmt.Sprint(params[2]), 10, 64)
	if err != nil {
		return nil, err
	}
	frames, err := store.ReadFrames(fmt.Sprint(params[0]), offset, count)
	if err != nil {
		return nil, err
	}
	list := make([]map[string]interface{}, len(frames))
	for i, f := range frames {
		list[i] = map[string]interface{}{
			"sequence":  f.Sequence,
			"inbound":   f.Inbound,
			"timestamp": f.Timestamp,
			"payload":   f.Payload,
		}
	}
	return list, nil
}
