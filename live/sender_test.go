package live

import (
	"sync"

	"github.com/livemap/client/network"
)

type fakeSender struct {
	sync.Mutex
	state SessionState
	err   error
	sent  [][]network.Packet
	quiet [][]network.Packet
}

func (s *fakeSender) State() SessionState {
	s.Lock()
	defer s.Unlock()
	return s.state
}

func (s *fakeSender) setState(st SessionState) {
	s.Lock()
	defer s.Unlock()
	s.state = st
}

func (s *fakeSender) send(packets ...network.Packet) error {
	s.Lock()
	defer s.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, packets)
	return nil
}

func (s *fakeSender) sendQuiet(packets ...network.Packet) error {
	s.Lock()
	defer s.Unlock()
	if s.err != nil {
		return s.err
	}
	s.quiet = append(s.quiet, packets)
	return nil
}
