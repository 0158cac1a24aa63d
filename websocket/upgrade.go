// Package websocket provides the upgrade handshake and session management
// for edge handlers: given a request, it validates the RFC 6455 upgrade
// headers and hands back a managed duplex connection tracked in a registry.
package websocket

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var (
	// ErrNotWebSocket is returned when the request is not a websocket
	// upgrade request.
	ErrNotWebSocket = errors.New("not a websocket upgrade request")
	// ErrBadVersion is returned for an unsupported Sec-WebSocket-Version.
	ErrBadVersion = errors.New("unsupported websocket version")
	// ErrMissingKey is returned when Sec-WebSocket-Key is absent.
	ErrMissingKey = errors.New("missing Sec-WebSocket-Key")
	// ErrHijackUnsupported is returned when the server does not allow
	// taking over the connection.
	ErrHijackUnsupported = errors.New("connection cannot be hijacked")
)

// IsUpgrade reports whether the request asks for a websocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return headerContainsToken(r.Header, "Connection", "upgrade") &&
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// ValidateUpgrade checks the upgrade headers of the request.
func ValidateUpgrade(r *http.Request) error {
	if r.Method != http.MethodGet || !IsUpgrade(r) {
		return ErrNotWebSocket
	}
	if r.Header.Get("Sec-WebSocket-Version") != "13" {
		return ErrBadVersion
	}
	if r.Header.Get("Sec-WebSocket-Key") == "" {
		return ErrMissingKey
	}
	return nil
}

// AcceptKey computes the Sec-WebSocket-Accept value for a client key.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Upgrade validates the handshake, hijacks the connection, completes the
// 101 response and returns a managed session.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if err := ValidateUpgrade(r); err != nil {
		return nil, err
	}
	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, ErrHijackUnsupported
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		return nil, err
	}

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + AcceptKey(r.Header.Get("Sec-WebSocket-Key")) + "\r\n\r\n"
	if _, err := rw.WriteString(response); err != nil {
		conn.Close()
		return nil, err
	}
	if err := rw.Flush(); err != nil {
		conn.Close()
		return nil, err
	}

	return newSession(uuid.NewString(), conn, rw.Reader, bufio.NewWriter(conn)), nil
}

func headerContainsToken(h http.Header, name, token string) bool {
	for _, value := range h.Values(name) {
		for _, part := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
