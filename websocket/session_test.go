package websocket

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func pipeSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	s := newSession("test", server, bufio.NewReader(server), bufio.NewWriter(server))
	return s, client
}

// maskedTextFrame builds a client-to-server text frame (clients must mask).
func maskedTextFrame(payload []byte) []byte {
	mask := [4]byte{0x11, 0x22, 0x33, 0x44}
	frame := []byte{finBit | OpcodeText, maskBit | byte(len(payload))}
	frame = append(frame, mask[:]...)
	for i, b := range payload {
		frame = append(frame, b^mask[i%4])
	}
	return frame
}

func TestReadMaskedMessage(t *testing.T) {
	s, client := pipeSession(t)

	go client.Write(maskedTextFrame([]byte("hello")))

	opcode, payload, err := s.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if opcode != OpcodeText || string(payload) != "hello" {
		t.Fatalf("got opcode %x payload %q", opcode, payload)
	}
}

func TestWriteMessageFrame(t *testing.T) {
	s, client := pipeSession(t)

	go func() {
		if err := s.WriteMessage(OpcodeText, []byte("hi")); err != nil {
			t.Error(err)
		}
	}()

	buf := make([]byte, 4)
	client.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := client.Read(buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != finBit|OpcodeText || buf[1] != 2 || string(buf[2:]) != "hi" {
		t.Fatalf("frame is % x", buf)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	s, _ := pipeSession(t)

	reg.Add(s)
	if reg.Len() != 1 {
		t.Fatalf("registry holds %d sessions", reg.Len())
	}
	if got, ok := reg.Get("test"); !ok || got != s {
		t.Fatal("session not found by id")
	}

	reg.Remove("test")
	if reg.Len() != 0 {
		t.Fatal("session not removed")
	}
}

func TestWriteAfterClose(t *testing.T) {
	s, client := pipeSession(t)
	// drain the close frame so Close does not block on the pipe
	go func() {
		buf := make([]byte, 16)
		client.Read(buf)
	}()
	s.Close()
	if err := s.WriteMessage(OpcodeText, []byte("late")); err != ErrClosed {
		t.Fatalf("error is %v", err)
	}
}
