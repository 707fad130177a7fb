package link

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/feedrelay/internal/domain"
)

const (
	maxLineBytes = 1 << 20
	writeTimeout = 5 * time.Second
)

type pendingSend struct {
	done  func(error)
	timer *time.Timer
}

// session is one connected device. Sends are matched to acks by seq.
type session struct {
	id   string
	conn net.Conn

	wmu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]*pendingSend
	closed  bool
	done    chan struct{}
}

func newSession(conn net.Conn) *session {
	id := uuid.NewString()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7.String()
	}
	return &session{
		id:      id,
		conn:    conn,
		pending: make(map[uint64]*pendingSend),
		done:    make(chan struct{}),
	}
}

// send registers done under seq and writes the message. done runs on
// another goroutine once the device answers, the ack timeout fires, or the
// session ends.
func (s *session) send(seq uint64, fields domain.Fields, ackTimeout time.Duration, done func(error)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		go done(domain.ErrLinkClosed)
		return
	}
	p := &pendingSend{done: done}
	p.timer = time.AfterFunc(ackTimeout, func() {
		s.resolve(seq, domain.ErrAckTimeout)
	})
	s.pending[seq] = p
	s.mu.Unlock()

	if err := s.write(wireMessage{Type: typeSend, Seq: seq, Fields: fields}); err != nil {
		go s.resolve(seq, fmt.Errorf("%w: %v", domain.ErrSend, err))
	}
}

func (s *session) write(m wireMessage) error {
	line, err := json.Marshal(m)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = s.conn.Write(line)
	return err
}

// resolve completes the send seq, if still pending.
func (s *session) resolve(seq uint64, err error) {
	s.mu.Lock()
	p, ok := s.pending[seq]
	delete(s.pending, seq)
	s.mu.Unlock()

	if !ok {
		return
	}
	p.timer.Stop()
	p.done(err)
}

// close ends the session and fails every pending send.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.pending
	s.pending = nil
	close(s.done)
	s.mu.Unlock()

	_ = s.conn.Close()
	for _, p := range pending {
		p.timer.Stop()
		p.done(domain.ErrLinkClosed)
	}
}

// read decodes inbound lines until the connection fails. Acks resolve
// sends; everything else goes to handle.
func (s *session) read(handle func(wireMessage), invalid func(error)) error {
	sc := bufio.NewScanner(s.conn)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var m wireMessage
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil {
			invalid(err)
			continue
		}
		switch m.Type {
		case typeAck:
			s.resolve(m.Seq, nil)
		case typeNack:
			s.resolve(m.Seq, fmt.Errorf("%w: %s", domain.ErrSend, m.Error))
		default:
			handle(m)
		}
	}
	return sc.Err()
}
