package websocket

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
)

// Frame opcodes.
const (
	OpcodeText   byte = 0x1
	OpcodeBinary byte = 0x2
	opcodeClose  byte = 0x8
	opcodePing   byte = 0x9
	opcodePong   byte = 0xA

	finBit  byte = 0x80
	maskBit byte = 0x80
)

// ErrClosed is returned for operations on a closed session.
var ErrClosed = errors.New("session closed")

// defaultReadLimit bounds a single message payload.
const defaultReadLimit = 1 << 20

// Session is one managed duplex websocket connection.
type Session struct {
	id   string
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool

	readLimit int64
}

func newSession(id string, conn net.Conn, br *bufio.Reader, bw *bufio.Writer) *Session {
	return &Session{
		id:        id,
		conn:      conn,
		br:        br,
		bw:        bw,
		readLimit: defaultReadLimit,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// WriteMessage sends one unfragmented message with the given opcode.
func (s *Session) WriteMessage(opcode byte, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.writeFrame(opcode, payload)
}

// writeFrame writes a single server-to-client frame (unmasked, per RFC
// 6455). Callers must hold writeMu.
func (s *Session) writeFrame(opcode byte, payload []byte) error {
	header := []byte{finBit | opcode}
	length := len(payload)
	switch {
	case length < 126:
		header = append(header, byte(length))
	case length <= 0xFFFF:
		header = append(header, 126, byte(length>>8), byte(length))
	default:
		header = append(header, 127)
		header = binary.BigEndian.AppendUint64(header, uint64(length))
	}
	if _, err := s.bw.Write(header); err != nil {
		return err
	}
	if _, err := s.bw.Write(payload); err != nil {
		return err
	}
	return s.bw.Flush()
}

// ReadMessage reads the next data message, transparently answering pings
// and handling close frames. It returns the opcode and payload.
func (s *Session) ReadMessage() (byte, []byte, error) {
	var message []byte
	var messageOp byte
	for {
		fin, opcode, payload, err := s.readFrame()
		if err != nil {
			return 0, nil, err
		}
		switch opcode {
		case opcodePing:
			s.writeMu.Lock()
			err := s.writeFrame(opcodePong, payload)
			s.writeMu.Unlock()
			if err != nil {
				return 0, nil, err
			}
			continue
		case opcodePong:
			continue
		case opcodeClose:
			s.Close()
			return 0, nil, ErrClosed
		case OpcodeText, OpcodeBinary:
			messageOp = opcode
			message = payload
		default:
			// continuation
			message = append(message, payload...)
		}
		if int64(len(message)) > s.readLimit {
			s.Close()
			return 0, nil, errors.New("message exceeds read limit")
		}
		if fin {
			return messageOp, message, nil
		}
	}
}

// readFrame reads and unmasks one client frame.
func (s *Session) readFrame() (fin bool, opcode byte, payload []byte, err error) {
	var head [2]byte
	if _, err = io.ReadFull(s.br, head[:]); err != nil {
		return
	}
	fin = head[0]&finBit != 0
	opcode = head[0] & 0x0F
	masked := head[1]&maskBit != 0
	length := int64(head[1] & 0x7F)

	switch length {
	case 126:
		var ext [2]byte
		if _, err = io.ReadFull(s.br, ext[:]); err != nil {
			return
		}
		length = int64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err = io.ReadFull(s.br, ext[:]); err != nil {
			return
		}
		length = int64(binary.BigEndian.Uint64(ext[:]))
	}
	if length > s.readLimit {
		err = errors.New("frame exceeds read limit")
		return
	}

	var maskKey [4]byte
	if masked {
		if _, err = io.ReadFull(s.br, maskKey[:]); err != nil {
			return
		}
	}
	payload = make([]byte, length)
	if _, err = io.ReadFull(s.br, payload); err != nil {
		return
	}
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}
	return
}

// Close sends a close frame on a best-effort basis and closes the
// underlying connection.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.writeFrame(opcodeClose, nil)
		s.closed = true
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// Registry tracks live sessions by ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session.
func (g *Registry) Add(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[s.ID()] = s
}

// Remove unregisters a session.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, id)
}

// Get returns the session with the given ID.
func (g *Registry) Get(id string) (*Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.sessions[id]
	return s, ok
}

// Len reports the number of live sessions.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// Broadcast sends a text message to every session; write failures close
// the failing session and remove it from the registry.
func (g *Registry) Broadcast(payload []byte) {
	g.mu.RLock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.RUnlock()
	for _, s := range sessions {
		if err := s.WriteMessage(OpcodeText, payload); err != nil {
			s.Close()
			g.Remove(s.ID())
		}
	}
}
