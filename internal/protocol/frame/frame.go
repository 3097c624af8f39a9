package frame

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/link"
	"github.com/danmuck/inspectctl/internal/protocol"
)

const (
	Marker     byte = 0x00
	TrailerLen      = 4
	Overhead        = 1 + TrailerLen
)

var (
	ErrInvalidChecksumFraming = errors.New("frame: invalid checksum framing")
	ErrChecksumMismatch       = errors.New("frame: checksum mismatch")
)

// Checksum computes the integrity tag over marker+payload bytes. It is a
// compatibility tag, not a security property.
func Checksum(head []byte, payloadLen int) uint32 {
	crc := crc32.ChecksumIEEE(head)
	return (crc & 0xFFFF) ^ (uint32(payloadLen) * crc)
}

// Seal wraps payload as [marker][payload][checksum big-endian].
func Seal(payload []byte) []byte {
	buf := make([]byte, len(payload)+Overhead)
	buf[0] = Marker
	copy(buf[1:], payload)
	head := buf[:len(payload)+1]
	binary.BigEndian.PutUint32(buf[len(head):], Checksum(head, len(payload)))
	return buf
}

// Open strips marker and trailer. The checksum is not checked.
func Open(buf []byte) ([]byte, error) {
	if len(buf) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidChecksumFraming, len(buf))
	}
	return buf[1 : len(buf)-TrailerLen], nil
}

// Verify recomputes the trailer checksum. Decode never calls it.
func Verify(buf []byte) error {
	payload, err := Open(buf)
	if err != nil {
		return err
	}
	want := binary.BigEndian.Uint32(buf[len(buf)-TrailerLen:])
	if got := Checksum(buf[:len(buf)-TrailerLen], len(payload)); got != want {
		return fmt.Errorf("%w: got=%08X want=%08X", ErrChecksumMismatch, got, want)
	}
	return nil
}

// EncodeHex serializes r and returns the framed buffer as uppercase hex.
func EncodeHex(r item.Record) string {
	return strings.ToUpper(hex.EncodeToString(Seal(protocol.EncodeItem(r))))
}

// Encode returns the canonical masked inspect link for r.
func Encode(r item.Record) string {
	return link.FormatMasked(EncodeHex(r))
}

// DecodeBytes parses a raw framed buffer.
func DecodeBytes(buf []byte) (item.Record, error) {
	payload, err := Open(buf)
	if err != nil {
		return item.Record{}, err
	}
	return protocol.DecodeItem(payload)
}

// Decode parses a hex payload (either case) produced by EncodeHex.
func Decode(hexPayload string) (item.Record, error) {
	buf, err := hex.DecodeString(strings.TrimSpace(hexPayload))
	if err != nil {
		return item.Record{}, fmt.Errorf("%w: %v", ErrInvalidChecksumFraming, err)
	}
	return DecodeBytes(buf)
}
