package autoaim

import (
	"encoding/binary"
	"math"
)

// Wire protocol constants: both directions are fixed-layout packed byte
// frames, little-endian IEEE-754 floats, no padding between fields.
const (
	recvStartByte byte = 0x3A
	recvTailByte  byte = 0xAA
	recvFrameSize      = 18 // start + 3*float32 + 4*u8 + tail

	sendStartByte byte = 0xA3
	sendTailByte  byte = 0xAA
	sendFrameSize      = 15 // start + 2*float32 + 5*u8 + tail
)

// Framer scans a byte stream for valid recv frames. It resynchronizes on
// a tail-byte mismatch by advancing exactly one byte, and on a match by
// advancing a full frame, so it can never rescan the same buffer slot
// forever.
type Framer struct {
	buf []byte
}

// NewFramer creates an empty framer.
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, recvFrameSize*4)}
}

// Feed appends newly read bytes to the framer's internal buffer.
func (f *Framer) Feed(b []byte) {
	f.buf = append(f.buf, b...)
}

// Next extracts at most one complete, validated IMUSample from the
// buffered bytes. It returns ok=false when no complete frame is available
// yet; callers should call Next repeatedly until it returns false.
func (f *Framer) Next() (sample IMUSample, ok bool) {
	for {
		start := -1
		for i, b := range f.buf {
			if b == recvStartByte {
				start = i
				break
			}
		}
		if start < 0 {
			f.buf = f.buf[:0]
			return IMUSample{}, false
		}
		if start > 0 {
			f.buf = f.buf[start:]
		}

		if len(f.buf) < recvFrameSize {
			return IMUSample{}, false
		}

		if f.buf[recvFrameSize-1] != recvTailByte {
			// Resync by advancing exactly one byte past the failed start.
			f.buf = f.buf[1:]
			continue
		}

		frame := f.buf[:recvFrameSize]
		f.buf = f.buf[recvFrameSize:]
		return decodeIMUFrame(frame), true
	}
}

func decodeIMUFrame(frame []byte) IMUSample {
	roll := math.Float32frombits(binary.LittleEndian.Uint32(frame[1:5]))
	pitch := math.Float32frombits(binary.LittleEndian.Uint32(frame[5:9]))
	yaw := math.Float32frombits(binary.LittleEndian.Uint32(frame[9:13]))
	return IMUSample{
		Roll:          float64(roll),
		Pitch:         float64(pitch),
		Yaw:           float64(yaw),
		AllyColor:     frame[13],
		AimMode:       frame[14],
		ShootDecision: ShootDecision(frame[15]),
		RemainingHP:   frame[16],
	}
}

// EncodeFireCommand packs cmd into the fixed 15-byte send frame.
func EncodeFireCommand(cmd FireCommand) []byte {
	frame := make([]byte, sendFrameSize)
	frame[0] = sendStartByte
	binary.LittleEndian.PutUint32(frame[1:5], math.Float32bits(cmd.Pitch))
	binary.LittleEndian.PutUint32(frame[5:9], math.Float32bits(cmd.Yaw))
	frame[9] = boolByte(cmd.Found)
	frame[10] = boolByte(cmd.Fire)
	frame[11] = boolByte(cmd.DoneFitting)
	frame[12] = boolByte(cmd.Patrolling)
	frame[13] = boolByte(cmd.HasUpdated)
	frame[14] = sendTailByte
	return frame
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
