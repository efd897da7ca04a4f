package usecase

import (
	"errors"
	"io"
	"io/fs"
	"time"
)

const (
	defaultReadSize      = 4096
	defaultChunkInterval = 100 * time.Millisecond
)

// pumpTimedChunks forwards everything read from r as one chunk per interval,
// plus a final chunk with whatever is left when the stream ends.
func pumpTimedChunks(r io.Reader, readSize int, interval time.Duration, deliver func([]byte)) error {
	if readSize < 256 {
		readSize = defaultReadSize
	}
	if interval <= 0 {
		interval = defaultChunkInterval
	}

	reads := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go func() {
		defer close(reads)
		buf := make([]byte, readSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				reads <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []byte
	for {
		select {
		case data, ok := <-reads:
			if !ok {
				if len(pending) > 0 {
					deliver(pending)
				}
				return normalizeReadErr(<-readErr)
			}
			pending = append(pending, data...)
		case <-ticker.C:
			if len(pending) > 0 {
				deliver(pending)
				pending = nil
			}
		}
	}
}

// pumpGated copies r into w until the stream ends.
func pumpGated(r io.Reader, w io.Writer, readSize int) error {
	if readSize < 256 {
		readSize = defaultReadSize
	}
	buf := make([]byte, readSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return normalizeReadErr(err)
		}
	}
}

// normalizeReadErr treats the errors a stopped recorder produces as a clean end.
func normalizeReadErr(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
