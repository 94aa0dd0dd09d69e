package live

import (
	"github.com/livemap/client/common"
	"github.com/livemap/client/logger"
	"github.com/livemap/client/network"
)

// ChangeTracker turns a batch of dirty tiles into one CHANGE_LIST frame.
// Batches offered before the session is ready are dropped, not queued.
type ChangeTracker struct {
	sender sender
}

func NewChangeTracker(s sender) *ChangeTracker {
	return &ChangeTracker{sender: s}
}

func (t *ChangeTracker) Send(changes []common.Change) error {
	if st := t.sender.State(); !st.CanSendChanges() {
		logger.Printf("live.ChangeTracker drop %d changes in state %s\n", len(changes), st)
		return ErrNotReady
	}
	blobs, count, err := common.EncodeTileChanges(changes, common.MaximumStringLength)
	if err != nil {
		return err
	}
	if count < len(changes) {
		logger.Debugf("live.ChangeTracker skip %d non tile changes\n", len(changes)-count)
	}
	if count == 0 {
		return nil
	}
	packets := make([]network.Packet, len(blobs))
	for i, b := range blobs {
		packets[i] = &network.ChangeList{Data: b}
	}
	return t.sender.send(packets...)
}
