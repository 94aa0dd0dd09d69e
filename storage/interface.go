package storage

type Store interface {
	Close() error

	RecordFrame(session string, inbound bool, payload []byte) error
	ListSessions() ([]*Session, error)
	ReadFrames(session string, offset, count uint64) ([]*Frame, error)
}
