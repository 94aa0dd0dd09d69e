package live

import (
	"encoding/binary"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/livemap/client/common"
	"github.com/livemap/client/logger"
	"github.com/livemap/client/network"
)

const NodeCacheSize = 32 * 1024 * 1024

// NodeRequestQueue batches node fetches into one REQUEST_NODES frame per
// flush. Nodes already requested in this session are not queued again until
// they are invalidated.
type NodeRequestQueue struct {
	sync.Mutex
	sender    sender
	pending   []common.NodeAddress
	queued    map[common.NodeAddress]bool
	requested *fastcache.Cache
}

func NewNodeRequestQueue(s sender) *NodeRequestQueue {
	return &NodeRequestQueue{
		sender:    s,
		queued:    make(map[common.NodeAddress]bool),
		requested: fastcache.New(NodeCacheSize),
	}
}

func (q *NodeRequestQueue) Add(x, y int, underground bool) bool {
	return q.AddAddress(common.NewNodeAddress(x, y, underground))
}

func (q *NodeRequestQueue) AddAddress(a common.NodeAddress) bool {
	q.Lock()
	defer q.Unlock()

	if q.queued[a] || q.requested.Has(nodeKey(a)) {
		return false
	}
	q.queued[a] = true
	q.pending = append(q.pending, a)
	return true
}

func (q *NodeRequestQueue) Len() int {
	q.Lock()
	defer q.Unlock()
	return len(q.pending)
}

func (q *NodeRequestQueue) Flush() error {
	q.Lock()
	defer q.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	if st := q.sender.State(); !st.CanRequest() {
		return ErrNotReady
	}
	err := q.sender.send(&network.RequestNodes{Nodes: q.pending})
	if err != nil {
		return err
	}
	logger.Debugf("live.NodeRequestQueue flush %d\n", len(q.pending))
	for _, a := range q.pending {
		q.requested.Set(nodeKey(a), []byte{1})
	}
	q.pending = nil
	q.queued = make(map[common.NodeAddress]bool)
	return nil
}

// Invalidate allows the node to be requested again.
func (q *NodeRequestQueue) Invalidate(a common.NodeAddress) {
	q.requested.Del(nodeKey(a))
}

func (q *NodeRequestQueue) reset() {
	q.Lock()
	defer q.Unlock()

	q.pending = nil
	q.queued = make(map[common.NodeAddress]bool)
	q.requested.Reset()
}

func nodeKey(a common.NodeAddress) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(a))
	return key
}
