package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
)

const (
	recordPrefixSession = "SESSION"
	recordPrefixFrame   = "FRAME"

	MaxFramesPerRead = 1000
)

type Session struct {
	Id      string `msgpack:"i"`
	Started int64  `msgpack:"s"`
	Frames  uint64 `msgpack:"-"`
}

type Frame struct {
	Sequence  uint64 `msgpack:"-"`
	Inbound   bool   `msgpack:"d"`
	Timestamp int64  `msgpack:"t"`
	Payload   []byte `msgpack:"p"`
}

// RecordFrame appends one frame payload to the session log. Sequences start
// at zero and are only unique within one store instance.
func (s *BadgerStore) RecordFrame(session string, inbound bool, payload []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closing {
		return fmt.Errorf("store closed")
	}

	seq, found := s.sequences[session]
	now := time.Now().UnixNano()
	frame := &Frame{Inbound: inbound, Timestamp: now, Payload: payload}
	err := s.recordsDB.Update(func(txn *badger.Txn) error {
		if !found {
			val := msgpackMarshalPanic(&Session{Id: session, Started: now})
			err := txn.Set(sessionKey(session), val)
			if err != nil {
				return err
			}
		}
		return txn.Set(frameKey(session, seq), compressMsgpackMarshalPanic(frame))
	})
	if err != nil {
		return err
	}
	s.sequences[session] = seq + 1
	return nil
}

func (s *BadgerStore) ListSessions() ([]*Session, error) {
	txn := s.recordsDB.NewTransaction(false)
	defer txn.Discard()

	sessions, err := readSessions(txn)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		session.Frames = countFrames(txn, session.Id)
	}
	return sessions, nil
}

func readSessions(txn *badger.Txn) ([]*Session, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(recordPrefixSession)
	it := txn.NewIterator(opts)
	defer it.Close()

	var sessions []*Session
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		var session Session
		err = msgpackUnmarshal(v, &session)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

func (s *BadgerStore) ReadFrames(session string, offset, count uint64) ([]*Frame, error) {
	if count > MaxFramesPerRead {
		return nil, fmt.Errorf("count %d too large, the maximum is %d", count, MaxFramesPerRead)
	}
	txn := s.recordsDB.NewTransaction(false)
	defer txn.Discard()

	prefix := framePrefix(session)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var frames []*Frame
	for it.Seek(frameKey(session, offset)); it.ValidForPrefix(prefix); it.Next() {
		if uint64(len(frames)) == count {
			break
		}
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		var frame Frame
		err = decompressMsgpackUnmarshal(v, &frame)
		if err != nil {
			return nil, err
		}
		frame.Sequence = frameSequence(item.Key())
		frames = append(frames, &frame)
	}
	return frames, nil
}

func countFrames(txn *badger.Txn, session string) uint64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = framePrefix(session)
	it := txn.NewIterator(opts)
	defer it.Close()

	var count uint64
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		count++
	}
	return count
}

func sessionKey(session string) []byte {
	return append([]byte(recordPrefixSession), session...)
}

func framePrefix(session string) []byte {
	key := append([]byte(recordPrefixFrame), session...)
	return append(key, ':')
}

func frameKey(session string, seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return append(framePrefix(session), buf...)
}

func frameSequence(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
