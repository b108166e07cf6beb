package pipe

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"
)

func TestPipeBidirectional(t *testing.T) {
	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()

	done := make(chan struct{})
	go func() {
		Pipe(a2, b2, 0)
		close(done)
	}()

	go func() {
		io.Copy(io.Discard, b1)
	}()

	msg := []byte("alice to bob, through the pipe bridge")
	writeDone := make(chan error, 1)
	go func() {
		_, err := a1.Write(msg)
		writeDone <- err
	}()

	got := make([]byte, len(msg))
	if _, err := io.ReadFull(b1, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if err := <-writeDone; err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("mismatch: got %q want %q", got, msg)
	}

	reply := []byte("bob to alice, back through the same bridge")
	go func() {
		_, err := b1.Write(reply)
		writeDone <- err
	}()

	gotReply := make([]byte, len(reply))
	if _, err := io.ReadFull(a1, gotReply); err != nil {
		t.Fatalf("ReadFull reply: %v", err)
	}
	if err := <-writeDone; err != nil {
		t.Fatalf("reply write: %v", err)
	}
	if !bytes.Equal(gotReply, reply) {
		t.Fatalf("reply mismatch: got %q want %q", gotReply, reply)
	}

	a1.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Pipe did not tear down after one side closed")
	}
}

func TestPipeClosesBothSidesAfterCloseWait(t *testing.T) {
	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()
	defer b1.Close()

	go io.Copy(io.Discard, b1)

	done := make(chan struct{})
	go func() {
		Pipe(a2, b2, 30*time.Millisecond)
		close(done)
	}()

	a1.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Pipe did not close both sides within closeWait")
	}

	// a2's read side already ended; b2 should now be closed too, so a write
	// to it fails.
	if _, err := b2.Write([]byte("x")); err == nil {
		t.Fatalf("expected b2 to be closed once Pipe finished")
	}
}
