/*
Copyright © 2025 Logicos Software

frame.go implements the wire format of the OTP feature-report protocol:
slot frames, packetization, and the CRC the device uses to delimit and
verify payloads.

A slot write is a 70-byte frame: 64 payload bytes, the slot command,
the CRC-16 of the payload (little-endian), and 3 filler bytes. The
frame crosses the wire in ten 7-byte packets, each tagged with its
sequence number and the write flag. Responses stream back in 7-byte
chunks, zero-padded to a chunk boundary, with the payload followed by
its complemented CRC-16; the check value over payload+CRC is the
fixed residual.
*/
package otphid

const (
	payloadSize = 7  // data bytes per feature report
	frameSize   = 70 // 64 payload + 1 command + 2 CRC + 3 filler

	framePayloadSize = 64
	frameCmdOffset   = 64
	frameCRCOffset   = 65

	framePackets = frameSize / payloadSize

	// crcResidual is the check value of crc16 over payload+CRC.
	crcResidual = 0xf0b8
)

// crc16 computes the CRC-16 used by the OTP protocol (polynomial
// 0x8408, initial value 0xffff, no final XOR).
func crc16(b []byte) uint16 {
	crc := uint16(0xffff)
	for _, c := range b {
		crc ^= uint16(c)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// buildFrame assembles the 70-byte slot frame for a command with up to
// 64 payload bytes.
func buildFrame(cmd byte, payload []byte) []byte {
	frame := make([]byte, frameSize)
	copy(frame, payload)
	frame[frameCmdOffset] = cmd
	crc := crc16(frame[:framePayloadSize])
	frame[frameCRCOffset] = byte(crc)
	frame[frameCRCOffset+1] = byte(crc >> 8)
	return frame
}

// packetPayload returns the seq-th 7-byte slice of a frame.
func packetPayload(frame []byte, seq int) []byte {
	return frame[seq*payloadSize : (seq+1)*payloadSize]
}

// packetWanted reports whether the seq-th packet of a frame must be
// written. All-zero interior packets are skipped; the first and last
// packets always go out so the device sees the frame boundaries.
func packetWanted(frame []byte, seq int) bool {
	if seq == 0 || seq == framePackets-1 {
		return true
	}
	for _, b := range packetPayload(frame, seq) {
		if b != 0 {
			return true
		}
	}
	return false
}

// splitResponse extracts the payload from a response stream. The
// device zero-pads the stream to a 7-byte boundary, so the payload
// length is recovered by locating the CRC: the longest prefix whose
// crc16 equals the residual ends with the payload's complemented
// CRC-16.
func splitResponse(stream []byte) ([]byte, bool) {
	for l := len(stream); l >= 3; l-- {
		if crc16(stream[:l]) == crcResidual {
			return stream[:l-2], true
		}
	}
	return nil, false
}
