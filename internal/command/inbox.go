package command

import "fmt"

// Message is one inbound MQTT message.
type Message struct {
	Topic   string
	Payload []byte
}

// Inbox is the bounded queue between MQTT delivery and the Router.
type Inbox struct {
	ch chan Message
}

// NewInbox creates an inbox holding up to size messages (minimum 1).
func NewInbox(size int) *Inbox {
	if size < 1 {
		size = 1
	}
	return &Inbox{ch: make(chan Message, size)}
}

// Deliver enqueues a message without blocking. Its signature matches
// mqtt.MessageHandler so it can be passed to Subscribe directly.
//
// Returns:
//   - error: ErrInboxFull if the router is not keeping up (message dropped)
func (in *Inbox) Deliver(topic string, payload []byte) error {
	msg := Message{
		Topic:   topic,
		Payload: append([]byte(nil), payload...),
	}
	select {
	case in.ch <- msg:
		return nil
	default:
		return fmt.Errorf("%w: dropped message on %s", ErrInboxFull, topic)
	}
}

// C returns the receive side of the queue.
func (in *Inbox) C() <-chan Message {
	return in.ch
}

// Len returns the number of queued messages.
func (in *Inbox) Len() int {
	return len(in.ch)
}
