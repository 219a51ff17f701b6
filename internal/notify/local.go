package notify

import (
	"context"
	"sync"
)

// LocalNotifier is an in-process fan-out used when Redis is not configured.
// Events reach subscribers in this process only.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Envelope
	next int
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[string]map[int]chan Envelope)}
}

func (n *LocalNotifier) Publish(_ context.Context, caseID, event string, payload any) error {
	env, err := envelope(caseID, event, payload)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[caseID] {
		// Slow subscribers drop events rather than block the publisher.
		select {
		case ch <- env:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Subscribe(_ context.Context, caseID string) (<-chan Envelope, func(), error) {
	ch := make(chan Envelope, 16)

	n.mu.Lock()
	if n.subs[caseID] == nil {
		n.subs[caseID] = make(map[int]chan Envelope)
	}
	id := n.next
	n.next++
	n.subs[caseID][id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[caseID], id)
			if len(n.subs[caseID]) == 0 {
				delete(n.subs, caseID)
			}
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}
