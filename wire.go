package sp

import (
	"encoding/binary"
	"fmt"
	"io"
)

const handshakeSize = 8
const lengthPrefixSize = 8

// idHeaderSize is the width of the request/survey correlation header
// Req/Rep/Surveyor/Respondent prepend to the payload (spec §3 "Message").
const idHeaderSize = 4

// encodeID packs a request or survey id as a 4-byte big-endian header.
func encodeID(id uint32) []byte {
	b := make([]byte, idHeaderSize)
	b[0] = byte(id >> 24)
	b[1] = byte(id >> 16)
	b[2] = byte(id >> 8)
	b[3] = byte(id)
	return b
}

// decodeID reads back a 4-byte big-endian header, or ok=false if b is
// too short to contain one.
func decodeID(b []byte) (id uint32, ok bool) {
	if len(b) < idHeaderSize {
		return 0, false
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}

// splitID peels a 4-byte id header off a received payload. Req/Rep and
// Surveyor/Respondent headers travel inside Message.Body on the wire
// (the pipe's framing layer is header-agnostic), so the receiving
// policy is the one that separates them back out.
func splitID(body []byte) (id uint32, rest []byte, ok bool) {
	id, ok = decodeID(body)
	if !ok {
		return 0, nil, false
	}
	return id, body[idHeaderSize:], true
}

// buildHandshake returns the fixed 8-byte SP preamble for proto, per
// spec §6: 00 53 50 00 PP PP 00 00. Grounded on the wire layout used by
// the mangos reference pipes in the example pack (connHeader / the raw
// []byte{0,'S','P',0,0,0,0,0} handshake buffer).
func buildHandshake(proto SocketType) []byte {
	h := make([]byte, handshakeSize)
	h[0] = 0x00
	h[1] = 'S'
	h[2] = 'P'
	h[3] = 0x00
	binary.BigEndian.PutUint16(h[4:6], uint16(proto))
	h[6] = 0x00
	h[7] = 0x00
	return h
}

// verifyHandshake checks a received 8-byte frame against the expected
// peer protocol id. Byte-for-byte equality, per spec §4.1.
func verifyHandshake(got []byte, peer SocketType) error {
	if len(got) != handshakeSize {
		return fmt.Errorf("%w: short handshake", ErrInvalidData)
	}
	if got[0] != 0x00 || got[1] != 'S' || got[2] != 'P' || got[3] != 0x00 || got[6] != 0x00 || got[7] != 0x00 {
		return fmt.Errorf("%w: bad handshake preamble", ErrInvalidData)
	}
	gotProto := SocketType(binary.BigEndian.Uint16(got[4:6]))
	if gotProto != peer {
		return fmt.Errorf("%w: peer protocol mismatch (got %s, want %s)", ErrInvalidData, gotProto, peer)
	}
	return nil
}

// encodeLength writes the 8-byte big-endian length prefix for n bytes.
func encodeLength(n int) []byte {
	b := make([]byte, lengthPrefixSize)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

// decodeLength reads back a length prefix, rejecting anything over max
// (spec §9's required configurable cap against hostile prefixes).
func decodeLength(b []byte, max uint64) (int, error) {
	n := binary.BigEndian.Uint64(b)
	if n > max {
		return 0, fmt.Errorf("%w: payload length %d exceeds limit %d", ErrInvalidData, n, max)
	}
	return int(n), nil
}

// readFull is io.ReadFull with the spec's zero-byte-first-read carve
// out already satisfied by io.ReadFull's semantics: it only returns
// io.EOF if zero bytes were read before hitting end of stream, and
// io.ErrUnexpectedEOF for a partial frame — both are transport errors
// that kill the pipe per spec §4.1.
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
