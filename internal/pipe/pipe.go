// Package pipe bridges two io.ReadWriteClosers bidirectionally, the way a
// mux stream gets bridged to whatever local or upstream connection it
// represents.
package pipe

import (
	"io"
	"sync"
	"time"
)

const copyBufSize = 4096

// copy avoids an extra allocation/copy when either side already knows how
// to move bytes itself.
func copy(dst io.Writer, src io.Reader) (int64, error) {
	if wt, ok := src.(io.WriterTo); ok {
		return wt.WriteTo(dst)
	}
	if rt, ok := dst.(io.ReaderFrom); ok {
		return rt.ReadFrom(src)
	}
	buf := make([]byte, copyBufSize)
	return io.CopyBuffer(dst, src, buf)
}

// Pipe copies alice->bob and bob->alice concurrently. Once either direction
// ends, it waits closeWait before closing both sides, giving the still-open
// direction a last chance to drain before the whole pipe is torn down.
func Pipe(alice, bob io.ReadWriteCloser, closeWait time.Duration) (errAlice, errBob error) {
	var closeOnce sync.Once
	closeBoth := func() {
		if closeWait > 0 {
			time.Sleep(closeWait)
		}
		closeOnce.Do(func() {
			alice.Close()
			bob.Close()
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, errAlice = copy(bob, alice)
		closeBoth()
	}()
	go func() {
		defer wg.Done()
		_, errBob = copy(alice, bob)
		closeBoth()
	}()

	wg.Wait()
	return
}
