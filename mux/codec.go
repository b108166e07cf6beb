package mux

import (
	"bytes"
	"encoding/binary"
)

// pooled is set on frames decoded off the wire whose Payload backs onto a
// buffer borrowed from defaultBufferPool, so the stream endpoint can return
// it once fully consumed. Frames built locally (SYN/ACK/FIN/PUSH via the
// message helpers) never set this.
type decodedFrame struct {
	Frame
	pooled *[]byte
}

// encodeFrame serializes header then payload into buf, in the order
// version, cmd, stream_id, payload_len (both 16-bit fields big-endian),
// payload. It fails if the payload exceeds the wire limit.
func encodeFrame(buf *bytes.Buffer, f Frame) error {
	if len(f.Payload) > maxPayload {
		return newErr(KindPayloadTooLong, "")
	}

	buf.Grow(headerLength + len(f.Payload))

	var hdr [headerLength]byte
	hdr[0] = f.Version
	hdr[1] = byte(f.Cmd)
	binary.BigEndian.PutUint16(hdr[2:4], f.StreamID)
	binary.BigEndian.PutUint16(hdr[4:6], uint16(len(f.Payload)))

	buf.Write(hdr[:])
	buf.Write(f.Payload)
	return nil
}

// FrameDecoder decodes frames out of a byte stream that may deliver partial
// frames. It is stateless between frames: bytes are never consumed from buf
// until a complete frame is available.
type FrameDecoder struct {
	buf bytes.Buffer
}

// feed appends newly-read bytes to the decoder's internal buffer.
func (d *FrameDecoder) feed(p []byte) {
	d.buf.Write(p)
}

// next attempts to decode one frame from the buffered bytes. ok is false
// when more bytes are needed (the decoder has consumed nothing in that
// case); err is non-nil only for a malformed header.
func (d *FrameDecoder) next() (frame decodedFrame, ok bool, err error) {
	raw := d.buf.Bytes()
	if len(raw) < headerLength {
		return decodedFrame{}, false, nil
	}

	version := raw[0]
	if version != version0 {
		return decodedFrame{}, false, newErr(KindInvalidVersion, byteHex(version))
	}

	cmd := Cmd(raw[1])
	if !cmd.valid() {
		return decodedFrame{}, false, newErr(KindInvalidCmd, byteHex(raw[1]))
	}

	streamID := binary.BigEndian.Uint16(raw[2:4])
	payloadLen := binary.BigEndian.Uint16(raw[4:6])

	frameLen := headerLength + int(payloadLen)
	if len(raw) < frameLen {
		d.buf.Grow(frameLen - len(raw))
		return decodedFrame{}, false, nil
	}

	d.buf.Next(headerLength)

	var payload *[]byte
	var payloadBytes []byte
	if payloadLen > 0 {
		payload = defaultBufferPool.get(int(payloadLen))
		copy(*payload, d.buf.Next(int(payloadLen)))
		payloadBytes = *payload
	}

	return decodedFrame{
		Frame: Frame{
			Version:  version,
			Cmd:      cmd,
			StreamID: streamID,
			Payload:  payloadBytes,
		},
		pooled: payload,
	}, true, nil
}

func byteHex(b byte) string {
	const hexDigits = "0123456789abcdef"
	return "0x" + string([]byte{hexDigits[b>>4], hexDigits[b&0xf]})
}
