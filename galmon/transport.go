package galmon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
)

var magic = []byte("bert")

const headerBytes = 6 // 4-byte magic plus 2-byte frame length

// ReadTransport reads Galmon packets from a byte stream. Each packet is
// a 4-byte magic value, a big-endian 2-byte frame length and a navmon
// protobuf frame.
type ReadTransport struct {
	r   io.Reader
	buf []byte
}

// NewReadTransport creates a transport reader over r.
func NewReadTransport(r io.Reader) *ReadTransport {
	return &ReadTransport{r: r, buf: make([]byte, 2048)}
}

// ReadPacket reads and decodes the next packet. At the end of the stream
// it returns io.EOF.
func (t *ReadTransport) ReadPacket() (*NavMonMessage, error) {
	if _, err := io.ReadFull(t.r, t.buf[:headerBytes]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("galmon: could not read packet header: %w", err)
	}
	if !bytes.Equal(t.buf[:4], magic) {
		return nil, fmt.Errorf("galmon: incorrect magic value %02x", t.buf[:4])
	}
	size := int(binary.BigEndian.Uint16(t.buf[4:headerBytes]))
	if size > len(t.buf) {
		slog.Debug("resizing galmon buffer", "size", size)
		t.buf = make([]byte, size)
	}
	if _, err := io.ReadFull(t.r, t.buf[:size]); err != nil {
		return nil, fmt.Errorf("galmon: could not read protobuf frame: %w", err)
	}
	frame, err := decodeNavMon(t.buf[:size])
	if err != nil {
		return nil, err
	}
	return frame, nil
}
