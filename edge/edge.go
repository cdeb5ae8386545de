package edge

import (
	"sync"
)

// Edge carries the messages of one record stream from a parent node to a child node.
// Messages flow in one direction and the edge is safe for concurrent use.
type Edge interface {
	// Collect queues m, blocking while the buffer is full.
	Collect(m Message) error
	// Emit blocks for the next message.
	// It returns false once the edge is closed and drained or aborted.
	Emit() (Message, bool)
	// Close ends the stream, buffered messages are still emitted.
	// Collect must not be called after Close.
	Close() error
	// Abort drops buffered messages and fails later Collect calls with ErrAborted.
	Abort()
}

type channelEdge struct {
	messages chan Message
	aborted  chan struct{}

	mu        sync.Mutex
	closed    bool
	abortOnce sync.Once
}

// NewChannelEdge returns an edge buffering size messages in a channel.
func NewChannelEdge(size int) Edge {
	return &channelEdge{
		messages: make(chan Message, size),
		aborted:  make(chan struct{}),
	}
}

func (e *channelEdge) Collect(m Message) error {
	select {
	case e.messages <- m:
		return nil
	case <-e.aborted:
		return ErrAborted
	}
}

func (e *channelEdge) Emit() (Message, bool) {
	select {
	case m, ok := <-e.messages:
		return m, ok
	case <-e.aborted:
		return nil, false
	}
}

func (e *channelEdge) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.closed:
		return ErrClosed
	case e.isAborted():
		return ErrAborted
	}
	close(e.messages)
	e.closed = true
	return nil
}

func (e *channelEdge) isAborted() bool {
	select {
	case <-e.aborted:
		return true
	default:
		return false
	}
}

func (e *channelEdge) Abort() {
	e.abortOnce.Do(func() { close(e.aborted) })
}
