package store

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
)

// Record is the HTTP-response-shaped value the cache stores: status code,
// header multimap and body bytes. Records are immutable once written to a
// store; updates are full overwrites under the same key.
type Record struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
	}
	if r.Body != nil {
		c.Body = make([]byte, len(r.Body))
		copy(c.Body, r.Body)
	}
	return c
}

// EncodeRecord serializes a record to its HTTP/1.1 wire representation.
func EncodeRecord(rec *Record) ([]byte, error) {
	res := http.Response{
		StatusCode:    rec.StatusCode,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        rec.Header,
		Body:          io.NopCloser(bytes.NewReader(rec.Body)),
		ContentLength: int64(len(rec.Body)),
	}
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRecord parses a record from its HTTP/1.1 wire representation.
func DecodeRecord(b []byte) (*Record, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Record{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}, nil
}
