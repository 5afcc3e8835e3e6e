package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	frame := EncodeFrame([]string{"hello", "world"})
	fields, err := DecodeFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(fields) != 2 || fields[0] != "hello" || fields[1] != "world" {
		t.Fatalf("got %v", fields)
	}
}

func TestEncodeFrameEmpty(t *testing.T) {
	frame := EncodeFrame(nil)
	fields, err := DecodeFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}

func TestDecodeFrameShortRead(t *testing.T) {
	if _, err := DecodeFrame(bytes.NewReader([]byte{0, 0})); err == nil {
		t.Fatal("expected error on truncated length prefix")
	}
}

func TestEncodeHandshakeStartsWithAPIPrefix(t *testing.T) {
	msg := EncodeHandshake()
	if !bytes.HasPrefix(msg, []byte("API\x00")) {
		t.Fatalf("handshake does not start with API\\0: %x", msg)
	}
	n := binary.BigEndian.Uint32(msg[4:8])
	if int(n) != len(msg)-8 {
		t.Fatalf("length prefix mismatch: n=%d remaining=%d", n, len(msg)-8)
	}
}

func TestDecodeHandshakeReply(t *testing.T) {
	raw := "176\x0020260731 10:00:00 EST\x00"
	version, serverTime, err := DecodeHandshakeReply(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("DecodeHandshakeReply: %v", err)
	}
	if version != "176" {
		t.Fatalf("version = %q", version)
	}
	if serverTime != "20260731 10:00:00 EST" {
		t.Fatalf("serverTime = %q", serverTime)
	}
}

func TestEncodeStartAPIIsLengthPrefixed(t *testing.T) {
	msg := EncodeStartAPI(7)
	n := binary.BigEndian.Uint32(msg[:4])
	if len(msg) != 4+int(n) {
		t.Fatalf("length mismatch: n=%d len=%d", n, len(msg))
	}
	fields, err := DecodeFrame(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if fields[0] != "71" || fields[2] != "7" {
		t.Fatalf("got %v", fields)
	}
}

func TestNonfatalErrorsContainsKnown(t *testing.T) {
	if !NonfatalErrors[162] || !NonfatalErrors[502] {
		t.Fatal("expected 162 and 502 to be nonfatal")
	}
	if NonfatalErrors[999] {
		t.Fatal("999 should not be nonfatal")
	}
}
