// Package wire implements the TWS API's length-prefixed, null-terminated
// field encoding: [4-byte big-endian length][field]\0[field]\0...
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeFrame joins fields with null terminators and prefixes the result
// with its big-endian uint32 length.
func EncodeFrame(fields []string) []byte {
	var payload []byte
	for _, f := range fields {
		payload = append(payload, []byte(f)...)
		payload = append(payload, 0)
	}
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// DecodeFrame reads one length-prefixed frame from r and splits its payload
// on null bytes into fields.
func DecodeFrame(r io.Reader) ([]string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	var fields []string
	start := 0
	for i, b := range payload {
		if b == 0 {
			fields = append(fields, string(payload[start:i]))
			start = i + 1
		}
	}
	return fields, nil
}

// handshakeVersionRange is advertised to the server on connect; TWS replies
// with the server version and time it actually negotiated.
const handshakeVersionRange = "v100..176"

// EncodeHandshake builds the initial "API\0" + version-range message. Unlike
// EncodeFrame's fields, this one frame is not null-terminated internally.
func EncodeHandshake() []byte {
	version := []byte(handshakeVersionRange)
	out := make([]byte, 0, 4+4+len(version))
	out = append(out, 'A', 'P', 'I', 0)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(version)))
	out = append(out, lenBuf...)
	out = append(out, version...)
	return out
}

// DecodeHandshakeReply reads the two raw null-terminated ASCII tokens TWS
// sends immediately after the handshake: server version, then server time.
// These are not length-prefixed frames.
func DecodeHandshakeReply(r *bufio.Reader) (serverVersion, serverTime string, err error) {
	serverVersion, err = readNullTerminated(r)
	if err != nil {
		return "", "", fmt.Errorf("read server version: %w", err)
	}
	serverTime, err = readNullTerminated(r)
	if err != nil {
		return "", "", fmt.Errorf("read server time: %w", err)
	}
	return serverVersion, serverTime, nil
}

func readNullTerminated(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

// EncodeStartAPI builds the START_API frame sent once the handshake reply
// has been read, pinning the client id we authenticate as.
func EncodeStartAPI(clientID int) []byte {
	return EncodeFrame([]string{"71", "2", fmt.Sprintf("%d", clientID), ""})
}
