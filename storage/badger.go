package storage

import (
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/livemap/client/logger"
)

type BadgerStore struct {
	mutex     sync.Mutex
	recordsDB *badger.DB
	sequences map[string]uint64
	closing   bool
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	db, err := openDB(dir+"/records", false)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{
		recordsDB: db,
		sequences: make(map[string]uint64),
	}, nil
}

func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closing {
		return nil
	}
	s.closing = true
	return s.recordsDB.Close()
}

func openDB(dir string, sync bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	opts = opts.WithSyncWrites(sync)
	opts = opts.WithCompression(options.None)
	opts = opts.WithBlockCacheSize(0)
	opts = opts.WithIndexCacheSize(0)
	opts = opts.WithMetricsEnabled(false)
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	lsm, vlog := db.Size()
	logger.Verbosef("storage.openDB %s LSM %d VLOG %d\n", dir, lsm, vlog)
	return db, nil
}
