package usecase

import (
	"sync"

	"interviewmic/internal/ports"
)

const defaultSendQueueSize = 64

type outboundFrame struct {
	kind    ports.MessageKind
	payload []byte
}

// frameWriter drains queued frames to one channel on its own goroutine, so a
// stalled socket never blocks the connection loop. Closing the channel
// unblocks a pending write.
type frameWriter struct {
	conn     ports.Conn
	frames   chan outboundFrame
	done     chan struct{}
	stopOnce sync.Once

	onSent   func(frame outboundFrame)
	onFailed func(frame outboundFrame, err error)
}

func newFrameWriter(
	conn ports.Conn,
	size int,
	onSent func(frame outboundFrame),
	onFailed func(frame outboundFrame, err error),
) *frameWriter {
	if size <= 0 {
		size = defaultSendQueueSize
	}
	w := &frameWriter{
		conn:     conn,
		frames:   make(chan outboundFrame, size),
		done:     make(chan struct{}),
		onSent:   onSent,
		onFailed: onFailed,
	}
	go w.run()
	return w
}

// enqueue reports false when the queue is full.
func (w *frameWriter) enqueue(frame outboundFrame) bool {
	select {
	case w.frames <- frame:
		return true
	default:
		return false
	}
}

func (w *frameWriter) stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *frameWriter) run() {
	for {
		select {
		case <-w.done:
			return
		case frame := <-w.frames:
			var err error
			if frame.kind == ports.TextMessage {
				err = w.conn.WriteText(frame.payload)
			} else {
				err = w.conn.WriteBinary(frame.payload)
			}
			if err != nil {
				select {
				case <-w.done:
				default:
					w.onFailed(frame, err)
				}
				return
			}
			w.onSent(frame)
		}
	}
}
