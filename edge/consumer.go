package edge

import (
	"fmt"
)

// Consumer reads messages off an edge and passes them to a receiver.
type Consumer interface {
	// Consume reads messages off an edge until the edge is closed or aborted.
	// An error is returned if either the edge or receiver errors.
	Consume() error
}

// Receiver handles messages as they arrive via a consumer.
type Receiver interface {
	Format(f FormatMessage) error
	Record(r RecordMessage) error
	EndOfStream(e EndOfStreamMessage) error

	// Done is called once the receiver will no longer receive any messages.
	Done()
}

type consumer struct {
	edge Edge
	r    Receiver
}

// NewConsumerWithReceiver creates a new consumer for the edge e and receiver r.
func NewConsumerWithReceiver(e Edge, r Receiver) Consumer {
	return &consumer{
		edge: e,
		r:    r,
	}
}

func (ec *consumer) Consume() error {
	defer ec.r.Done()
	for msg, ok := ec.edge.Emit(); ok; msg, ok = ec.edge.Emit() {
		if err := Receive(ec.r, msg); err != nil {
			return err
		}
	}
	return nil
}

// Receive dispatches msg to the matching method of r.
func Receive(r Receiver, msg Message) error {
	switch m := msg.(type) {
	case FormatMessage:
		return r.Format(m)
	case RecordMessage:
		return r.Record(m)
	case EndOfStreamMessage:
		return r.EndOfStream(m)
	default:
		return fmt.Errorf("unexpected message of type %T", msg)
	}
}
