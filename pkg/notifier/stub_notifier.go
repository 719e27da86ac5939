package notifier

import (
	"context"
	"sync"
	"time"
)

type StubNotifier struct {
	mu   sync.Mutex
	sent []Message
	// Fail makes every call return the given error.
	Fail  error
	Delay time.Duration
}

func NewStubNotifier() *StubNotifier {
	return &StubNotifier{}
}

func (n *StubNotifier) Send(ctx context.Context, msg Message) error {
	n.mu.Lock()
	fail, delay := n.Fail, n.Delay
	n.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail != nil {
		return fail
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *StubNotifier) Sent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message{}, n.sent...)
}
