package store

import (
	"net/http"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain")
	header.Add("Vary", "Origin")
	header.Add("Vary", "X-Lang")
	rec := &Record{StatusCode: 200, Header: header, Body: []byte("hello")}

	b, err := EncodeRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeRecord(b)
	if err != nil {
		t.Fatal(err)
	}

	if decoded.StatusCode != 200 || string(decoded.Body) != "hello" {
		t.Fatalf("decoded %+v", decoded)
	}
	if got := decoded.Header.Values("Vary"); len(got) != 2 {
		t.Fatalf("vary headers are %v", got)
	}
}

func TestRecordClone(t *testing.T) {
	rec := &Record{StatusCode: 200, Header: make(http.Header), Body: []byte("body")}
	rec.Header.Set("ETag", "v1")

	clone := rec.Clone()
	clone.Header.Set("ETag", "v2")
	clone.Body[0] = 'x'

	if rec.Header.Get("ETag") != "v1" || string(rec.Body) != "body" {
		t.Fatal("clone shares state with the original")
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := DecodeRecord([]byte("not an http response")); err == nil {
		t.Fatal("expected decode error")
	}
}
