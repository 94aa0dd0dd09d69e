package rpc

import (
	"context"
	"time"

	"github.com/livemap/client/config"
)

const snapshotTimeout = 3 * time.Second

func getInfo(ctx context.Context, client Client) (map[string]interface{}, error) {
	info := map[string]interface{}{
		"version":  config.BuildVersion,
		"protocol": config.ProtocolVersion,
	}
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	status, err := client.Snapshot(ctx)
	if err != nil {
		return info, err
	}
	info["session"] = status.Session
	info["state"] = status.State
	info["map"] = status.Map
	info["color"] = status.Color
	info["cursors"] = status.Cursors
	info["nodes"] = map[string]interface{}{
		"pending": status.PendingNodes,
	}
	return info, nil
}
