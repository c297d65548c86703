package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"visualizer/internal/spectrum"
)

/*
UDP Packet Structure (BigEndian) - See visual diagram below

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Snapshot Seq (low bits) |
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Flags             | uint8          | 1            | Bit 0: fresh spectrum   |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Smoothed magnitudes     |
+-----------------------------------------------------------------------------+

Visual Layout:

|<-- 4 Bytes -->|<---- 8 Bytes ---->|<1>|<-- 2 -->|<----- N * 4 Bytes ----->|
+---------------+-------------------+---+---------+-------------------------+
|   Sequence    |     Timestamp     | F |  Count  |       Magnitudes        |
|   (uint32)    |      (int64)      |   | (uint16)|      (N * float32)      |
+---------------+-------------------+---+---------+-------------------------+
*/

// HeaderSize is the number of bytes before the magnitudes.
const HeaderSize = 4 + 8 + 1 + 2

// MaxDatagram is the largest UDP payload over IPv4.
const MaxDatagram = 65507

// MaxMagnitudes is the largest spectrum a single datagram can carry.
const MaxMagnitudes = (MaxDatagram - HeaderSize) / 4

const flagFresh = 1 << 0

// ErrShortPacket is returned when a packet is smaller than its header says.
var ErrShortPacket = errors.New("udp: short packet")

// Packet is a decoded spectrum packet.
type Packet struct {
	Seq        uint32
	Timestamp  time.Time
	Fresh      bool
	Magnitudes []float32
}

// AppendPacket appends the encoding of snap to dst and returns the extended
// slice. Passing a reused dst[:0] keeps the hot path allocation free.
func AppendPacket(dst []byte, snap *spectrum.Snapshot) ([]byte, error) {
	n := snap.Len()
	if n > MaxMagnitudes {
		return dst, fmt.Errorf("udp: %d magnitudes exceed packet limit %d", n, MaxMagnitudes)
	}

	var flags byte
	if snap.Fresh {
		flags |= flagFresh
	}

	dst = binary.BigEndian.AppendUint32(dst, uint32(snap.Seq))
	dst = binary.BigEndian.AppendUint64(dst, uint64(snap.At.UnixNano()))
	dst = append(dst, flags)
	dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	for _, v := range snap.Values {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst, nil
}

// DecodePacket parses a packet produced by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrShortPacket, len(b), HeaderSize)
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:]))),
		Fresh:     b[12]&flagFresh != 0,
	}
	n := int(binary.BigEndian.Uint16(b[13:]))
	body := b[HeaderSize:]
	if len(body) < n*4 {
		return Packet{}, fmt.Errorf("%w: %d magnitudes need %d bytes, have %d", ErrShortPacket, n, n*4, len(body))
	}
	p.Magnitudes = make([]float32, n)
	for i := range p.Magnitudes {
		p.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
	}
	return p, nil
}
