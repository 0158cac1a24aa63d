package httpcache

import (
	"bufio"
	"bytes"
	"net"
	"net/http"

	"github.com/edgekit/edgekit/store"
)

// recorder is an http.ResponseWriter wrapper that tees the response to the
// client while capturing it as a store.Record for the write path.
type recorder struct {
	rw          http.ResponseWriter
	header      http.Header
	buf         bytes.Buffer
	status      int
	wroteHeader bool
	hijacked    bool
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{
		rw:     w,
		header: make(http.Header),
	}
}

func (t *recorder) Header() http.Header {
	return t.header
}

func (t *recorder) WriteHeader(statusCode int) {
	if t.wroteHeader {
		return
	}
	t.wroteHeader = true
	t.status = statusCode
	copyHeader(t.rw.Header(), t.header)
	t.rw.WriteHeader(statusCode)
}

func (t *recorder) Write(b []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	t.buf.Write(b)
	return t.rw.Write(b)
}

// Flush passes streaming writes through to the client.
func (t *recorder) Flush() {
	if f, ok := t.rw.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection over (e.g. for a WebSocket upgrade); the
// response is then no longer recordable.
func (t *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := t.rw.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	t.hijacked = true
	return hj.Hijack()
}

// record returns the captured response, or nil if the connection was
// hijacked.
func (t *recorder) record() *store.Record {
	if t.hijacked {
		return nil
	}
	status := t.status
	if status == 0 {
		status = http.StatusOK
	}
	return &store.Record{
		StatusCode: status,
		Header:     t.header,
		Body:       t.buf.Bytes(),
	}
}
