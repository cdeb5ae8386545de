package edge

import (
	"sync"
)

// Broadcaster delivers messages to a set of subscribed receivers.
// Publish calls every receiver synchronously in subscription order.
// Subscribing or unsubscribing while a publish is in flight affects only later publishes.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	r  Receiver
}

// Subscribe adds r and returns an id that can be passed to Unsubscribe.
func (b *Broadcaster) Subscribe(r Receiver) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscription{id: b.nextID, r: r})
	return b.nextID
}

// Unsubscribe removes the receiver with the given id.
// It reports whether the id was subscribed.
func (b *Broadcaster) Unsubscribe(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			subs := make([]subscription, 0, len(b.subs)-1)
			subs = append(subs, b.subs[:i]...)
			b.subs = append(subs, b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) snapshot() []subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs
}

// Publish passes msg to every subscriber and returns the first error.
func (b *Broadcaster) Publish(msg Message) error {
	for _, s := range b.snapshot() {
		if err := Receive(s.r, msg); err != nil {
			return err
		}
	}
	return nil
}

// Broadcaster is itself a Receiver so it can be the target of a consumer.

func (b *Broadcaster) Format(f FormatMessage) error {
	return b.Publish(f)
}

func (b *Broadcaster) Record(r RecordMessage) error {
	return b.Publish(r)
}

func (b *Broadcaster) EndOfStream(e EndOfStreamMessage) error {
	return b.Publish(e)
}

// Done calls Done on every subscriber.
func (b *Broadcaster) Done() {
	for _, s := range b.snapshot() {
		s.r.Done()
	}
}

type publishingForwardReceiver struct {
	b *Broadcaster
	r ForwardReceiver
}

// NewPublishingForwardReceiver creates a forward receiver which publishes every message r returns to b.
func NewPublishingForwardReceiver(b *Broadcaster, r ForwardReceiver) ForwardReceiver {
	return &publishingForwardReceiver{
		b: b,
		r: r,
	}
}

func (pr *publishingForwardReceiver) Format(f FormatMessage) (Message, error) {
	return pr.publish(pr.r.Format(f))
}

func (pr *publishingForwardReceiver) Record(r RecordMessage) (Message, error) {
	return pr.publish(pr.r.Record(r))
}

func (pr *publishingForwardReceiver) EndOfStream(e EndOfStreamMessage) (Message, error) {
	return pr.publish(pr.r.EndOfStream(e))
}

func (pr *publishingForwardReceiver) Done() {
	pr.r.Done()
	pr.b.Done()
}

func (pr *publishingForwardReceiver) publish(m Message, err error) (Message, error) {
	if err != nil || m == nil {
		return m, err
	}
	if err := pr.b.Publish(m); err != nil {
		return nil, err
	}
	return m, nil
}
