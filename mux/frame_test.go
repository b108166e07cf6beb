package mux

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Frame{
		newSYN(1),
		newACK(2),
		newFIN(3),
		newPUSH(5, []byte("hello, stream")),
		newPUSH(7, nil),
	}

	for _, want := range cases {
		var buf bytes.Buffer
		if err := encodeFrame(&buf, want); err != nil {
			t.Fatalf("encodeFrame(%v): %v", want, err)
		}

		dec := &FrameDecoder{}
		dec.feed(buf.Bytes())

		got, ok, err := dec.next()
		if err != nil {
			t.Fatalf("next(): %v", err)
		}
		if !ok {
			t.Fatalf("next() reported not-ok for a complete frame")
		}
		if got.Version != want.Version || got.Cmd != want.Cmd || got.StreamID != want.StreamID {
			t.Fatalf("header mismatch: got %+v, want %+v", got.Frame, want)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Fatalf("payload mismatch: got %q, want %q", got.Payload, want.Payload)
		}
	}
}

func TestDecoderWaitsForPartialFrame(t *testing.T) {
	dec := &FrameDecoder{}
	var buf bytes.Buffer
	if err := encodeFrame(&buf, newPUSH(1, []byte("split me"))); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()

	// Feed one byte at a time; next() must report not-ok until the last byte
	// lands, and must never consume bytes from an incomplete frame.
	for i := 0; i < len(full)-1; i++ {
		dec.feed(full[i : i+1])
		if _, ok, err := dec.next(); ok || err != nil {
			t.Fatalf("next() resolved early at byte %d (ok=%v err=%v)", i, ok, err)
		}
	}
	dec.feed(full[len(full)-1:])

	f, ok, err := dec.next()
	if err != nil || !ok {
		t.Fatalf("next() after full feed: ok=%v err=%v", ok, err)
	}
	if string(f.Payload) != "split me" {
		t.Fatalf("payload = %q", f.Payload)
	}
}

func TestDecoderMultipleFramesInOneFeed(t *testing.T) {
	dec := &FrameDecoder{}
	var buf bytes.Buffer
	encodeFrame(&buf, newPUSH(1, []byte("a")))
	encodeFrame(&buf, newPUSH(2, []byte("bb")))
	dec.feed(buf.Bytes())

	f1, ok, err := dec.next()
	if err != nil || !ok || f1.StreamID != 1 || string(f1.Payload) != "a" {
		t.Fatalf("first frame: %+v ok=%v err=%v", f1.Frame, ok, err)
	}
	f2, ok, err := dec.next()
	if err != nil || !ok || f2.StreamID != 2 || string(f2.Payload) != "bb" {
		t.Fatalf("second frame: %+v ok=%v err=%v", f2.Frame, ok, err)
	}
	if _, ok, _ := dec.next(); ok {
		t.Fatalf("next() reported ok with no bytes left")
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	dec := &FrameDecoder{}
	dec.feed([]byte{0x01, byte(CmdPUSH), 0, 1, 0, 0})
	if _, _, err := dec.next(); KindOf1(err) != KindInvalidVersion {
		t.Fatalf("expected KindInvalidVersion, got %v", err)
	}
}

func TestDecodeInvalidCmd(t *testing.T) {
	dec := &FrameDecoder{}
	dec.feed([]byte{version0, 0xFF, 0, 1, 0, 0})
	if _, _, err := dec.next(); KindOf1(err) != KindInvalidCmd {
		t.Fatalf("expected KindInvalidCmd, got %v", err)
	}
}

func TestEncodePayloadTooLong(t *testing.T) {
	var buf bytes.Buffer
	big := make([]byte, maxPayload+1)
	if err := encodeFrame(&buf, newPUSH(1, big)); KindOf1(err) != KindPayloadTooLong {
		t.Fatalf("expected KindPayloadTooLong, got %v", err)
	}
}

// KindOf1 is a small test helper so assertions read as one expression.
func KindOf1(err error) Kind {
	k, ok := KindOf(err)
	if !ok {
		return -1
	}
	return k
}
